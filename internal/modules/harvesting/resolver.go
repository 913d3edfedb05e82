package harvesting

import (
	"fmt"
	"strings"

	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
)

// BlockKind classifies why a SELL cannot execute
type BlockKind string

const (
	// BlockAllRestricted means every other sleeve member is wash-sale restricted
	BlockAllRestricted BlockKind = "ALL_RESTRICTED"
	// BlockAllInactive means every other sleeve member is inactive
	BlockAllInactive BlockKind = "ALL_INACTIVE"
	// BlockSingleMember means the sleeve has no member besides the sold ticker
	BlockSingleMember BlockKind = "SINGLE_MEMBER"
	// BlockMixed means the other members are ineligible for a mix of reasons
	BlockMixed BlockKind = "MIXED"
	// BlockSleeveNotFound means the held ticker belongs to no sleeve
	BlockSleeveNotFound BlockKind = "SLEEVE_NOT_FOUND"
	// BlockLegacyHolding means the held ticker is a legacy member and must not be sold
	BlockLegacyHolding BlockKind = "LEGACY_HOLDING"
)

// RestrictedTicker is a sleeve member blocked by a wash-sale restriction
type RestrictedTicker struct {
	Ticker        string `json:"ticker"`
	DaysToUnblock int    `json:"days_to_unblock"`
}

func (r RestrictedTicker) String() string {
	unit := "days"
	if r.DaysToUnblock == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s (unblocks in %d %s)", r.Ticker, r.DaysToUnblock, unit)
}

// Resolution is the outcome of looking for a replacement
type Resolution struct {
	Replacement *sleeves.Member    `json:"replacement,omitempty"`
	Kind        BlockKind          `json:"kind,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Restricted  []RestrictedTicker `json:"restricted,omitempty"`
	Inactive    []string           `json:"inactive,omitempty"`
	Legacy      []string           `json:"legacy,omitempty"`
}

// Resolved reports whether a replacement was found
func (r Resolution) Resolved() bool {
	return r.Replacement != nil
}

// Resolver picks replacement securities within a sleeve
type Resolver struct {
	tracker *washsale.Tracker
}

// NewResolver creates a resolver over the given restriction tracker
func NewResolver(tracker *washsale.Tracker) *Resolver {
	return &Resolver{tracker: tracker}
}

// Resolve returns the best replacement for soldTicker in sleeve.
// Eligible members are active, not legacy, not restricted, and not the sold ticker itself.
// The lowest rank wins; equal ranks fall back to ticker order.
func (r *Resolver) Resolve(sleeve sleeves.Sleeve, soldTicker string) Resolution {
	var others []sleeves.Member
	for _, m := range sleeve.RankedMembers() {
		if strings.EqualFold(m.Ticker, soldTicker) {
			continue
		}
		others = append(others, m)
	}

	for _, m := range others {
		if m.IsActive && !m.IsLegacy && !r.tracker.IsRestricted(m.Ticker) {
			replacement := m
			return Resolution{Replacement: &replacement}
		}
	}

	return r.classify(sleeve, soldTicker, others)
}

func (r *Resolver) classify(sleeve sleeves.Sleeve, soldTicker string, others []sleeves.Member) Resolution {
	if len(others) == 0 {
		return Resolution{
			Kind:   BlockSingleMember,
			Reason: fmt.Sprintf("No replacement available: %s is the only member of sleeve %s", soldTicker, sleeve.Name),
		}
	}

	res := Resolution{}
	for _, m := range others {
		switch {
		case r.tracker.IsRestricted(m.Ticker):
			res.Restricted = append(res.Restricted, RestrictedTicker{
				Ticker:        m.Ticker,
				DaysToUnblock: r.tracker.DaysToUnblock(m.Ticker),
			})
		case !m.IsActive:
			res.Inactive = append(res.Inactive, m.Ticker)
		default:
			res.Legacy = append(res.Legacy, m.Ticker)
		}
	}

	switch {
	case len(res.Restricted) == len(others):
		res.Kind = BlockAllRestricted
		res.Reason = fmt.Sprintf("All replacements in sleeve %s are wash-sale restricted: %s",
			sleeve.Name, joinRestricted(res.Restricted))
	case len(res.Inactive) == len(others):
		res.Kind = BlockAllInactive
		res.Reason = fmt.Sprintf("All replacements in sleeve %s are inactive: %s",
			sleeve.Name, strings.Join(res.Inactive, ", "))
	default:
		var parts []string
		if len(res.Restricted) > 0 {
			parts = append(parts, "wash-sale restricted: "+joinRestricted(res.Restricted))
		}
		if len(res.Inactive) > 0 {
			parts = append(parts, "inactive: "+strings.Join(res.Inactive, ", "))
		}
		if len(res.Legacy) > 0 {
			parts = append(parts, "legacy: "+strings.Join(res.Legacy, ", "))
		}
		res.Kind = BlockMixed
		res.Reason = fmt.Sprintf("No eligible replacement in sleeve %s; %s", sleeve.Name, strings.Join(parts, "; "))
	}

	return res
}

func joinRestricted(restricted []RestrictedTicker) string {
	parts := make([]string, 0, len(restricted))
	for _, r := range restricted {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}
