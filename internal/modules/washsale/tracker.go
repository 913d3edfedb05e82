package washsale

import (
	"sort"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
)

// Tracker answers restriction lookups against a fixed point in time
type Tracker struct {
	now    time.Time
	active map[string]Restriction
}

// NewTracker builds a tracker from restriction records.
// Expired records are filtered here; when a ticker has several active records the
// one with the latest BlockedUntil wins.
func NewTracker(restrictions []Restriction, now time.Time) *Tracker {
	active := make(map[string]Restriction)
	for _, r := range restrictions {
		if !r.IsActive(now) {
			continue
		}
		ticker := domain.NormalizeTicker(r.Ticker)
		if existing, ok := active[ticker]; ok && !r.BlockedUntil.After(existing.BlockedUntil) {
			continue
		}
		active[ticker] = r
	}

	return &Tracker{now: now, active: active}
}

// Now returns the reference time of the tracker
func (t *Tracker) Now() time.Time {
	return t.now
}

// IsRestricted reports whether ticker is blocked from repurchase
func (t *Tracker) IsRestricted(ticker string) bool {
	if t == nil {
		return false
	}
	_, ok := t.active[domain.NormalizeTicker(ticker)]
	return ok
}

// Restriction returns the governing active restriction for ticker
func (t *Tracker) Restriction(ticker string) (Restriction, bool) {
	if t == nil {
		return Restriction{}, false
	}
	r, ok := t.active[domain.NormalizeTicker(ticker)]
	return r, ok
}

// DaysToUnblock returns the unblock countdown for ticker, 0 when unrestricted
func (t *Tracker) DaysToUnblock(ticker string) int {
	r, ok := t.Restriction(ticker)
	if !ok {
		return 0
	}
	return r.DaysToUnblock(t.now)
}

// Active returns all active restrictions sorted by ticker
func (t *Tracker) Active() []Restriction {
	if t == nil {
		return nil
	}
	result := make([]Restriction, 0, len(t.active))
	for _, r := range t.active {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})
	return result
}
