package harvesting

import (
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restrictedFor(ticker string, days int) washsale.Restriction {
	return washsale.Restriction{
		Ticker:       ticker,
		BlockedUntil: testNow.Add(time.Duration(days) * 24 * time.Hour),
	}
}

func TestResolver_LowestRankWins(t *testing.T) {
	sleeve := sleeves.Sleeve{Name: "US", Members: []sleeves.Member{
		{Ticker: "VTI", Rank: 1, IsActive: true},
		{Ticker: "SCHB", Rank: 3, IsActive: true},
		{Ticker: "ITOT", Rank: 2, IsActive: true},
	}}

	res := NewResolver(washsale.NewTracker(nil, testNow)).Resolve(sleeve, "VTI")
	require.True(t, res.Resolved())
	assert.Equal(t, "ITOT", res.Replacement.Ticker)
}

func TestResolver_RankTieBreaksByTicker(t *testing.T) {
	sleeve := sleeves.Sleeve{Name: "US", Members: []sleeves.Member{
		{Ticker: "VTI", Rank: 1, IsActive: true},
		{Ticker: "SCHB", Rank: 2, IsActive: true},
		{Ticker: "ITOT", Rank: 2, IsActive: true},
	}}

	res := NewResolver(washsale.NewTracker(nil, testNow)).Resolve(sleeve, "VTI")
	require.True(t, res.Resolved())
	assert.Equal(t, "ITOT", res.Replacement.Ticker)
}

func TestResolver_SkipsIneligibleMembers(t *testing.T) {
	sleeve := sleeves.Sleeve{Name: "US", Members: []sleeves.Member{
		{Ticker: "VTI", Rank: 1, IsActive: true},
		{Ticker: "ITOT", Rank: 2, IsActive: true},
		{Ticker: "SCHB", Rank: 3, IsActive: false},
		{Ticker: "SPTM", Rank: 4, IsActive: true, IsLegacy: true},
		{Ticker: "VOO", Rank: 5, IsActive: true},
	}}
	tracker := washsale.NewTracker([]washsale.Restriction{restrictedFor("ITOT", 5)}, testNow)

	res := NewResolver(tracker).Resolve(sleeve, "VTI")
	require.True(t, res.Resolved())
	assert.Equal(t, "VOO", res.Replacement.Ticker)
}

func TestResolver_Classification(t *testing.T) {
	testCases := []struct {
		name         string
		members      []sleeves.Member
		restrictions []washsale.Restriction
		kind         BlockKind
		contains     []string
	}{
		{
			name:    "single member",
			members: []sleeves.Member{{Ticker: "VTI", Rank: 1, IsActive: true}},
			kind:    BlockSingleMember,
			contains: []string{
				"VTI is the only member of sleeve US",
			},
		},
		{
			name: "all restricted",
			members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "ITOT", Rank: 2, IsActive: true},
				{Ticker: "SCHB", Rank: 3, IsActive: true},
			},
			restrictions: []washsale.Restriction{restrictedFor("ITOT", 1), restrictedFor("SCHB", 30)},
			kind:         BlockAllRestricted,
			contains:     []string{"ITOT (unblocks in 1 day)", "SCHB (unblocks in 30 days)"},
		},
		{
			name: "all inactive",
			members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "ITOT", Rank: 2},
				{Ticker: "SCHB", Rank: 3},
			},
			kind:     BlockAllInactive,
			contains: []string{"inactive: ITOT, SCHB"},
		},
		{
			name: "restricted inactive and legacy",
			members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "ITOT", Rank: 2, IsActive: true},
				{Ticker: "SCHB", Rank: 3},
				{Ticker: "SPTM", Rank: 4, IsActive: true, IsLegacy: true},
			},
			restrictions: []washsale.Restriction{restrictedFor("ITOT", 12)},
			kind:         BlockMixed,
			contains:     []string{"ITOT (unblocks in 12 days)", "inactive: SCHB", "legacy: SPTM"},
		},
		{
			name: "inactive restricted member counts as restricted",
			members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "ITOT", Rank: 2},
			},
			restrictions: []washsale.Restriction{restrictedFor("ITOT", 3)},
			kind:         BlockAllRestricted,
			contains:     []string{"ITOT (unblocks in 3 days)"},
		},
		{
			name: "all legacy",
			members: []sleeves.Member{
				{Ticker: "VTI", Rank: 1, IsActive: true},
				{Ticker: "SPTM", Rank: 2, IsActive: true, IsLegacy: true},
			},
			kind:     BlockMixed,
			contains: []string{"legacy: SPTM"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sleeve := sleeves.Sleeve{Name: "US", Members: tc.members}
			res := NewResolver(washsale.NewTracker(tc.restrictions, testNow)).Resolve(sleeve, "VTI")

			assert.False(t, res.Resolved())
			assert.Equal(t, tc.kind, res.Kind)
			for _, s := range tc.contains {
				assert.Contains(t, res.Reason, s)
			}
		})
	}
}
