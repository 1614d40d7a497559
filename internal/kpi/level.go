package kpi

import "fmt"

// ConformityLevel is a band of KPI values. Min is inclusive, Max exclusive.
type ConformityLevel struct {
	Name string
	Min  float64
	Max  float64
}

var (
	NotConform       = ConformityLevel{Name: "NOTCONFORM", Min: 0, Max: 70}
	PartiallyConform = ConformityLevel{Name: "PARTIALLYCONFORM", Min: 70, Max: 95}
	// Max is above 100 so that a full score stays inside the band
	Conform = ConformityLevel{Name: "CONFORM", Min: 95, Max: 100.01}
)

// Levels lists the bands in ascending order. They are contiguous over [0, 100].
var Levels = []ConformityLevel{NotConform, PartiallyConform, Conform}

// LevelOf returns the band holding value
func LevelOf(value float64) (ConformityLevel, error) {
	for _, lvl := range Levels {
		if lvl.Contains(value) {
			return lvl, nil
		}
	}
	return ConformityLevel{}, fmt.Errorf("%w: %v", ErrOutOfRange, value)
}

// ParseLevel returns the band with the given name
func ParseLevel(name string) (ConformityLevel, error) {
	for _, lvl := range Levels {
		if lvl.Name == name {
			return lvl, nil
		}
	}
	return ConformityLevel{}, fmt.Errorf("unknown conformity level %q", name)
}

// Contains reports whether value falls in the band
func (l ConformityLevel) Contains(value float64) bool {
	return value >= l.Min && value < l.Max
}

// Below reports whether l is a lower band than other
func (l ConformityLevel) Below(other ConformityLevel) bool {
	return l.Max <= other.Min
}

func (l ConformityLevel) String() string {
	return l.Name
}
