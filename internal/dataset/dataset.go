// Package dataset provides scopes: named, filtered views over record sets
// that can be chained and merged.
package dataset

import (
	"errors"
	"fmt"

	"github.com/ethanolivertroy/kpi-checker/internal/filter"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

var (
	// ErrPerimeterMismatch is returned when combining sets of different perimeters
	ErrPerimeterMismatch = errors.New("perimeter mismatch")

	// ErrNoInput is returned when a set is read before it has an input
	ErrNoInput = errors.New("no input data")

	// ErrNothingToMerge is returned when merging an empty list of sets
	ErrNothingToMerge = errors.New("nothing to merge")
)

// Input is the raw data of a set: either Records or another *DataSet, in
// which case the parent filtered output is used
type Input interface {
	data() ([]models.Record, error)
}

// Records is a plain record collection used as a set input
type Records []models.Record

func (r Records) data() ([]models.Record, error) {
	return r, nil
}

type cacheState int

const (
	dirty cacheState = iota
	clean
)

// DataSet is a named scope over a perimeter. Its filtered output is computed
// on first read and kept until SetInput or SetFilters is called. Changes made
// to a parent set are not seen by a child that already cached its output.
type DataSet struct {
	name        string
	perimeter   string
	description string
	input       Input
	filters     []filter.Condition

	state  cacheState
	cached []models.Record
}

// New creates a set. input may be nil and set later.
func New(name, perimeter string, input Input, filters ...filter.Condition) *DataSet {
	return &DataSet{
		name:      name,
		perimeter: perimeter,
		input:     input,
		filters:   filters,
	}
}

// Name returns the set name
func (d *DataSet) Name() string { return d.name }

// Perimeter returns the set perimeter
func (d *DataSet) Perimeter() string { return d.perimeter }

// Description returns the set description
func (d *DataSet) Description() string { return d.description }

// SetDescription sets the description
func (d *DataSet) SetDescription(desc string) { d.description = desc }

// Input returns the input the set reads from
func (d *DataSet) Input() Input { return d.input }

// InputName returns the name of the parent set, or "" when the input is plain records
func (d *DataSet) InputName() string {
	if parent, ok := d.input.(*DataSet); ok && parent != nil {
		return parent.name
	}
	return ""
}

// Filters returns the set conditions
func (d *DataSet) Filters() []filter.Condition { return d.filters }

// SetInput replaces the input and drops the cached output
func (d *DataSet) SetInput(input Input) {
	d.input = input
	d.invalidate()
}

// SetFilters replaces the conditions and drops the cached output
func (d *DataSet) SetFilters(filters ...filter.Condition) {
	d.filters = filters
	d.invalidate()
}

func (d *DataSet) invalidate() {
	d.state = dirty
	d.cached = nil
}

// InputData returns the records before filtering
func (d *DataSet) InputData() ([]models.Record, error) {
	if d.input == nil {
		return nil, fmt.Errorf("%w: set %q", ErrNoInput, d.name)
	}
	if parent, ok := d.input.(*DataSet); ok && parent == nil {
		return nil, fmt.Errorf("%w: set %q", ErrNoInput, d.name)
	}
	return d.input.data()
}

// FilteredData returns the records satisfying every condition
func (d *DataSet) FilteredData() ([]models.Record, error) {
	if d.state == clean {
		return d.cached, nil
	}

	records, err := d.InputData()
	if err != nil {
		return nil, err
	}
	out, err := filter.Apply(records, d.filters)
	if err != nil {
		return nil, fmt.Errorf("set %q: %w", d.name, err)
	}

	d.cached = out
	d.state = clean
	return out, nil
}

func (d *DataSet) data() ([]models.Record, error) {
	return d.FilteredData()
}

// Merge concatenates the filtered output of sets, in order, into a new
// unfiltered set. Every set must share the same perimeter.
func Merge(name string, sets ...*DataSet) (*DataSet, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNothingToMerge, name)
	}

	for i, s := range sets {
		if s == nil {
			return nil, fmt.Errorf("%w: merge %q: set #%d is nil", ErrNoInput, name, i)
		}
	}

	perimeter := sets[0].perimeter
	for _, s := range sets[1:] {
		if s.perimeter != perimeter {
			return nil, fmt.Errorf("%w: %q is %q, %q is %q",
				ErrPerimeterMismatch, sets[0].name, perimeter, s.name, s.perimeter)
		}
	}

	var pool Records
	for _, s := range sets {
		records, err := s.FilteredData()
		if err != nil {
			return nil, fmt.Errorf("merge %q: %w", name, err)
		}
		pool = append(pool, records...)
	}

	return New(name, perimeter, pool), nil
}
