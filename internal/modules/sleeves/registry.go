package sleeves

import (
	"sort"

	"github.com/aristath/rebalancer/internal/domain"
)

// Registry indexes sleeves by id and by member ticker
type Registry struct {
	byID     map[string]Sleeve
	byTicker map[string]string
	ordered  []Sleeve
}

// NewRegistry builds a registry from sleeve definitions.
// A ticker listed in more than one sleeve maps to the sleeve with the lowest id.
func NewRegistry(sleeves []Sleeve) *Registry {
	r := &Registry{
		byID:     make(map[string]Sleeve, len(sleeves)),
		byTicker: make(map[string]string),
	}

	for _, s := range sleeves {
		r.byID[s.ID] = s
		for _, m := range s.Members {
			ticker := domain.NormalizeTicker(m.Ticker)
			if existing, ok := r.byTicker[ticker]; ok && existing <= s.ID {
				continue
			}
			r.byTicker[ticker] = s.ID
		}
	}

	r.ordered = make([]Sleeve, 0, len(r.byID))
	for _, s := range r.byID {
		r.ordered = append(r.ordered, s)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		if r.ordered[i].Name != r.ordered[j].Name {
			return r.ordered[i].Name < r.ordered[j].Name
		}
		return r.ordered[i].ID < r.ordered[j].ID
	})

	return r
}

// Get returns the sleeve with the given id
func (r *Registry) Get(id string) (Sleeve, bool) {
	if r == nil {
		return Sleeve{}, false
	}
	s, ok := r.byID[id]
	return s, ok
}

// SleeveFor returns the sleeve that holds ticker
func (r *Registry) SleeveFor(ticker string) (Sleeve, bool) {
	if r == nil {
		return Sleeve{}, false
	}
	id, ok := r.byTicker[domain.NormalizeTicker(ticker)]
	if !ok {
		return Sleeve{}, false
	}
	return r.byID[id], true
}

// All returns every sleeve sorted by name
func (r *Registry) All() []Sleeve {
	if r == nil {
		return nil
	}
	return r.ordered
}

// Len returns the number of sleeves
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}
