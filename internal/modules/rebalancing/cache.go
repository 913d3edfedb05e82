package rebalancing

import (
	"time"

	"github.com/aristath/rebalancer/internal/cache"
	"github.com/aristath/rebalancer/internal/modules/allocation"
)

// ProposalKey identifies cached proposals for an account ("" means every account)
type ProposalKey struct {
	AccountID string
}

// DriftKey identifies a cached drift report
type DriftKey struct {
	AccountID string
	ModelID   string
}

// Caches holds the read-through caches of computed results
type Caches struct {
	Proposals *cache.TTLCache[ProposalKey, *ProposalSet]
	Drift     *cache.TTLCache[DriftKey, *allocation.DriftReport]
}

// NewCaches creates empty caches sharing one TTL and clock
func NewCaches(ttl time.Duration, now func() time.Time) *Caches {
	if now == nil {
		now = time.Now
	}
	return &Caches{
		Proposals: cache.NewTTLCache[ProposalKey, *ProposalSet](ttl).WithClock(now),
		Drift:     cache.NewTTLCache[DriftKey, *allocation.DriftReport](ttl).WithClock(now),
	}
}

// Invalidate drops every entry touching accountID, plus all-account aggregates
func (c *Caches) Invalidate(accountID string) int {
	c.Proposals.Invalidate(ProposalKey{AccountID: accountID})
	c.Proposals.Invalidate(ProposalKey{})
	return c.Drift.InvalidateWhere(func(k DriftKey) bool {
		return k.AccountID == accountID || k.AccountID == ""
	})
}

// Clear drops everything
func (c *Caches) Clear() {
	c.Proposals.Clear()
	c.Drift.Clear()
}

// PurgeExpired removes expired entries and returns how many were dropped
func (c *Caches) PurgeExpired() int {
	return c.Proposals.PurgeExpired() + c.Drift.PurgeExpired()
}

// Len returns the number of cached entries
func (c *Caches) Len() int {
	return c.Proposals.Len() + c.Drift.Len()
}
