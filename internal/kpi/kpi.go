// Package kpi computes conformity indicators over data sets and compares
// them over time.
package kpi

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethanolivertroy/kpi-checker/internal/dataset"
	"github.com/ethanolivertroy/kpi-checker/internal/filter"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

var (
	// ErrEmptyScope is returned when a KPI is computed over no records
	ErrEmptyScope = errors.New("empty scope")

	// ErrNameMismatch is returned when adding a KPI to a history of another name
	ErrNameMismatch = errors.New("kpi name mismatch")

	// ErrOutOfRange is returned for a value outside every conformity band
	ErrOutOfRange = errors.New("value out of conformity range")
)

// DateLayout is the date format used in identifiers and exports
const DateLayout = "2006-01-02"

// KPI is a dated data set whose value is the share of its input records
// passing its filters
type KPI struct {
	*dataset.DataSet
	date time.Time
}

// Option configures a KPI
type Option func(*KPI)

// WithDate sets the KPI date. Only the calendar day is kept.
func WithDate(d time.Time) Option {
	return func(k *KPI) {
		k.date = day(d)
	}
}

// WithDescription sets the KPI description
func WithDescription(desc string) Option {
	return func(k *KPI) {
		k.SetDescription(desc)
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// New creates a KPI dated today unless WithDate is given
func New(name, perimeter string, input dataset.Input, controls []filter.Condition, opts ...Option) *KPI {
	k := &KPI{
		DataSet: dataset.New(name, perimeter, input, controls...),
		date:    day(time.Now()),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Date returns the KPI date
func (k *KPI) Date() time.Time { return k.date }

// DateString returns the date formatted with DateLayout
func (k *KPI) DateString() string { return k.date.Format(DateLayout) }

// ID identifies the KPI by perimeter and date
func (k *KPI) ID() string {
	return k.Perimeter() + "_" + k.DateString()
}

// Counts returns the number of conforming records and the scope size
func (k *KPI) Counts() (conform, total int, err error) {
	in, err := k.InputData()
	if err != nil {
		return 0, 0, err
	}
	out, err := k.FilteredData()
	if err != nil {
		return 0, 0, err
	}
	return len(out), len(in), nil
}

// Value returns the percentage of conforming records, rounded to two decimals
func (k *KPI) Value() (float64, error) {
	conform, total, err := k.Counts()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: kpi %q", ErrEmptyScope, k.Name())
	}
	return round2(100 * float64(conform) / float64(total)), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ConformityLevel returns the band of the KPI value
func (k *KPI) ConformityLevel() (ConformityLevel, error) {
	v, err := k.Value()
	if err != nil {
		return ConformityLevel{}, err
	}
	return LevelOf(v)
}

// Snapshot is the computed state of a KPI
type Snapshot struct {
	Name       string
	Perimeter  string
	Scope      string
	ScopeSize  int
	Conforming int
	Value      float64
	Level      ConformityLevel
	Date       time.Time
}

// Snapshot computes the KPI
func (k *KPI) Snapshot() (Snapshot, error) {
	conform, total, err := k.Counts()
	if err != nil {
		return Snapshot{}, err
	}
	v, err := k.Value()
	if err != nil {
		return Snapshot{}, err
	}
	lvl, err := LevelOf(v)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Name:       k.Name(),
		Perimeter:  k.Perimeter(),
		Scope:      k.InputName(),
		ScopeSize:  total,
		Conforming: conform,
		Value:      v,
		Level:      lvl,
		Date:       k.date,
	}, nil
}

// Record fields, in export order
var RecordFields = []string{
	"name", "perimeter", "scope", "scope_size", "conform_elements", "value", "conformity", "date",
}

// Record flattens a snapshot for export
func (s Snapshot) Record() models.Record {
	return models.Record{
		"name":             s.Name,
		"perimeter":        s.Perimeter,
		"scope":            s.Scope,
		"scope_size":       s.ScopeSize,
		"conform_elements": s.Conforming,
		"value":            s.Value,
		"conformity":       s.Level.Name,
		"date":             s.Date.Format(DateLayout),
	}
}

// Record computes the KPI and flattens it for export
func (k *KPI) Record() (models.Record, error) {
	s, err := k.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Record(), nil
}
