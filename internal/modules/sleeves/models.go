// Package sleeves holds the sleeve registry: named groups of substitutable
// securities ranked by replacement preference.
package sleeves

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
)

var (
	// ErrSleeveNotFound is returned when a sleeve id does not exist
	ErrSleeveNotFound = errors.New("sleeve not found")
	// ErrMissingName is returned when a sleeve has no name
	ErrMissingName = errors.New("sleeve name is required")
	// ErrNoMembers is returned when a sleeve has no members
	ErrNoMembers = errors.New("sleeve must have at least one member")
	// ErrEmptyTicker is returned when a member has a blank ticker
	ErrEmptyTicker = errors.New("sleeve member ticker is required")
	// ErrDuplicateTicker is returned when a ticker appears twice in one sleeve
	ErrDuplicateTicker = errors.New("duplicate ticker within sleeve")
	// ErrInvalidRank is returned for negative ranks
	ErrInvalidRank = errors.New("sleeve member rank must not be negative")
)

// Member is one security in a sleeve.
// Lower Rank is preferred as a replacement. Legacy members must never be sold.
type Member struct {
	Ticker   string `json:"ticker"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"is_active"`
	IsLegacy bool   `json:"is_legacy"`
}

// Sleeve is a ranked group of substitutable securities
type Sleeve struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize upper-cases member tickers and trims the name
func (s *Sleeve) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	for i := range s.Members {
		s.Members[i].Ticker = domain.NormalizeTicker(s.Members[i].Ticker)
	}
}

// Validate checks the sleeve definition. It must be called before any write.
func (s Sleeve) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrMissingName
	}
	if len(s.Members) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMembers, s.Name)
	}

	seen := make(map[string]bool, len(s.Members))
	for _, m := range s.Members {
		ticker := domain.NormalizeTicker(m.Ticker)
		if ticker == "" {
			return fmt.Errorf("%w: sleeve %s", ErrEmptyTicker, s.Name)
		}
		if seen[ticker] {
			return fmt.Errorf("%w: %s in sleeve %s", ErrDuplicateTicker, ticker, s.Name)
		}
		if m.Rank < 0 {
			return fmt.Errorf("%w: %s has rank %d", ErrInvalidRank, ticker, m.Rank)
		}
		seen[ticker] = true
	}
	return nil
}

// Member looks up a member by ticker
func (s Sleeve) Member(ticker string) (Member, bool) {
	ticker = domain.NormalizeTicker(ticker)
	for _, m := range s.Members {
		if domain.NormalizeTicker(m.Ticker) == ticker {
			return m, true
		}
	}
	return Member{}, false
}

// RankedMembers returns members ordered by rank, ties by ticker
func (s Sleeve) RankedMembers() []Member {
	ranked := make([]Member, len(s.Members))
	copy(ranked, s.Members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank < ranked[j].Rank
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})
	return ranked
}

// ActiveMembers returns active members in rank order
func (s Sleeve) ActiveMembers() []Member {
	var active []Member
	for _, m := range s.RankedMembers() {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active
}
