// Package allocation computes drift between current holdings and a target
// allocation model expressed in basis points per sleeve.
//
// Nothing here consults wash-sale state. Rebalance trades derived from drift
// are therefore never safe for tax-loss harvesting.
package allocation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TotalBasisPoints is the required sum of active member weights
const TotalBasisPoints = 10000

var (
	// ErrModelNotFound is returned when a model id does not exist
	ErrModelNotFound = errors.New("allocation model not found")
	// ErrMissingName is returned when a model has no name
	ErrMissingName = errors.New("allocation model name is required")
	// ErrNoActiveMembers is returned when a model has no active members
	ErrNoActiveMembers = errors.New("allocation model must have at least one active member")
	// ErrWeightSum is returned when active weights do not sum to 10000 basis points
	ErrWeightSum = errors.New("active target weights must sum to 10000 basis points")
	// ErrNegativeWeight is returned for weights below zero
	ErrNegativeWeight = errors.New("target weight must not be negative")
	// ErrDuplicateSleeve is returned when a sleeve appears twice in one model
	ErrDuplicateSleeve = errors.New("duplicate sleeve within allocation model")
	// ErrUnknownSleeve is returned when a member references a sleeve that does not exist
	ErrUnknownSleeve = errors.New("allocation model references unknown sleeve")
)

// Member assigns a target weight to a sleeve
type Member struct {
	SleeveID       string `json:"sleeve_id"`
	TargetWeightBP int    `json:"target_weight_bp"`
	IsActive       bool   `json:"is_active"`
}

// Model is a target allocation across sleeves
type Model struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveMembers returns members with IsActive set, in stored order
func (m Model) ActiveMembers() []Member {
	var active []Member
	for _, member := range m.Members {
		if member.IsActive {
			active = append(active, member)
		}
	}
	return active
}

// Weight returns the effective target weight of a sleeve; inactive members weigh zero
func (m Model) Weight(sleeveID string) int {
	for _, member := range m.Members {
		if member.SleeveID == sleeveID && member.IsActive {
			return member.TargetWeightBP
		}
	}
	return 0
}

// Validate checks names, duplicates and the exact 10000 basis point sum
func (m Model) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMissingName
	}

	seen := make(map[string]bool, len(m.Members))
	sum, active := 0, 0
	for _, member := range m.Members {
		if seen[member.SleeveID] {
			return fmt.Errorf("%w: %s", ErrDuplicateSleeve, member.SleeveID)
		}
		seen[member.SleeveID] = true

		if member.TargetWeightBP < 0 {
			return fmt.Errorf("%w: sleeve %s has %d", ErrNegativeWeight, member.SleeveID, member.TargetWeightBP)
		}
		if member.IsActive {
			sum += member.TargetWeightBP
			active++
		}
	}

	if active == 0 {
		return ErrNoActiveMembers
	}
	if sum != TotalBasisPoints {
		return fmt.Errorf("%w: got %d", ErrWeightSum, sum)
	}
	return nil
}

// ValidateSleeves checks that every member references a known sleeve
func (m Model) ValidateSleeves(exists func(sleeveID string) bool) error {
	for _, member := range m.Members {
		if !exists(member.SleeveID) {
			return fmt.Errorf("%w: %s", ErrUnknownSleeve, member.SleeveID)
		}
	}
	return nil
}

// FillEqualWeights assigns equal weights to active members when none carry an
// explicit weight. It reports whether weights were filled.
func (m *Model) FillEqualWeights() bool {
	active := 0
	for _, member := range m.Members {
		if !member.IsActive {
			continue
		}
		if member.TargetWeightBP != 0 {
			return false
		}
		active++
	}
	if active == 0 {
		return false
	}

	weights := EqualWeights(active)
	i := 0
	for j := range m.Members {
		if !m.Members[j].IsActive {
			continue
		}
		m.Members[j].TargetWeightBP = weights[i]
		i++
	}
	return true
}
