package kpi

import (
	"fmt"
	"sort"

	"github.com/ethanolivertroy/kpi-checker/internal/dataset"
)

// Tendency is the direction of a KPI between two dates
type Tendency string

const (
	Increasing Tendency = "increasing"
	Decreasing Tendency = "decreasing"
	Unchanged  Tendency = "unchanged"
)

// Symbol returns the short form of the tendency
func (t Tendency) Symbol() string {
	switch t {
	case Increasing:
		return "+"
	case Decreasing:
		return "-"
	}
	return "="
}

func tendencyOf(from, to float64) Tendency {
	switch {
	case to > from:
		return Increasing
	case to < from:
		return Decreasing
	}
	return Unchanged
}

// Comparator holds the evolution between an earlier and a later KPI
type Comparator struct {
	Earlier  *KPI
	Later    *KPI
	From     float64
	To       float64
	Tendency Tendency
}

// Compare computes the tendency from a to b. Both must share a perimeter.
func Compare(a, b *KPI) (Comparator, error) {
	if a.Perimeter() != b.Perimeter() {
		return Comparator{}, fmt.Errorf("%w: %q and %q", dataset.ErrPerimeterMismatch, a.Perimeter(), b.Perimeter())
	}
	from, err := a.Value()
	if err != nil {
		return Comparator{}, err
	}
	to, err := b.Value()
	if err != nil {
		return Comparator{}, err
	}
	return Comparator{
		Earlier:  a,
		Later:    b,
		From:     from,
		To:       to,
		Tendency: tendencyOf(from, to),
	}, nil
}

// History is a series of KPIs sharing one name
type History struct {
	name        string
	kpis        []*KPI
	sorted      []*KPI
	comparators []Comparator
}

// NewHistory creates a history and adds kpis to it
func NewHistory(name string, kpis ...*KPI) (*History, error) {
	h := &History{name: name}
	for _, k := range kpis {
		if err := h.Add(k); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Name returns the history name
func (h *History) Name() string { return h.name }

// Add appends a KPI. Its name must be the history name.
func (h *History) Add(k *KPI) error {
	if k.Name() != h.name {
		return fmt.Errorf("%w: %q added to history %q", ErrNameMismatch, k.Name(), h.name)
	}
	h.kpis = append(h.kpis, k)
	return nil
}

// KPIs returns the KPIs in insertion order
func (h *History) KPIs() []*KPI { return h.kpis }

// Sorted returns the KPIs by ascending date, as of the last Build
func (h *History) Sorted() []*KPI { return h.sorted }

// Build sorts the KPIs by date and compares each consecutive pair. Every call
// recomputes from the current KPIs.
func (h *History) Build() error {
	sorted := make([]*KPI, len(h.kpis))
	copy(sorted, h.kpis)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date().Before(sorted[j].Date())
	})

	var comparators []Comparator
	for i := 0; i+1 < len(sorted); i++ {
		c, err := Compare(sorted[i], sorted[i+1])
		if err != nil {
			return fmt.Errorf("history %q: %w", h.name, err)
		}
		comparators = append(comparators, c)
	}

	h.sorted = sorted
	h.comparators = comparators
	return nil
}

// Comparators returns the pairwise comparisons of the last Build
func (h *History) Comparators() []Comparator { return h.comparators }
