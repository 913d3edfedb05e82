package washsale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_FiltersExpiredAtRead(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	restrictions := []Restriction{
		{Ticker: "VTI", BlockedUntil: now.Add(10 * 24 * time.Hour)},
		{Ticker: "ITOT", BlockedUntil: now.Add(-time.Hour)},
		{Ticker: "SCHB", BlockedUntil: now},
	}

	tracker := NewTracker(restrictions, now)

	assert.True(t, tracker.IsRestricted("VTI"))
	assert.True(t, tracker.IsRestricted("vti"), "lookups are case-insensitive")
	assert.False(t, tracker.IsRestricted("ITOT"))
	assert.False(t, tracker.IsRestricted("SCHB"))
	assert.False(t, tracker.IsRestricted("VOO"))
	assert.Equal(t, 10, tracker.DaysToUnblock("VTI"))
	assert.Equal(t, 0, tracker.DaysToUnblock("ITOT"))
}

func TestTracker_LatestBlockedUntilWins(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	restrictions := []Restriction{
		{ID: 1, Ticker: "VTI", BlockedUntil: now.Add(5 * 24 * time.Hour)},
		{ID: 2, Ticker: "VTI", BlockedUntil: now.Add(20 * 24 * time.Hour)},
		{ID: 3, Ticker: "VTI", BlockedUntil: now.Add(12 * 24 * time.Hour)},
	}

	tracker := NewTracker(restrictions, now)

	r, ok := tracker.Restriction("VTI")
	require.True(t, ok)
	assert.Equal(t, int64(2), r.ID)
	assert.Equal(t, 20, tracker.DaysToUnblock("VTI"))
}

func TestTracker_ActiveSortedByTicker(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker([]Restriction{
		{Ticker: "VXUS", BlockedUntil: now.Add(time.Hour)},
		{Ticker: "BND", BlockedUntil: now.Add(time.Hour)},
		{Ticker: "IXUS", BlockedUntil: now.Add(-time.Hour)},
		{Ticker: "AGG", BlockedUntil: now.Add(time.Hour)},
	}, now)

	active := tracker.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "AGG", active[0].Ticker)
	assert.Equal(t, "BND", active[1].Ticker)
	assert.Equal(t, "VXUS", active[2].Ticker)
}

func TestTracker_NilIsUnrestricted(t *testing.T) {
	var tracker *Tracker
	assert.False(t, tracker.IsRestricted("VTI"))
	assert.Equal(t, 0, tracker.DaysToUnblock("VTI"))
	assert.Nil(t, tracker.Active())
}
