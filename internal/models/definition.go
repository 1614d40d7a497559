package models

// Definition describes what a run computes: where records come from, the
// named filters and scopes, and the KPIs built on top of them
type Definition struct {
	Sources map[string]SourceDefinition `json:"sources" yaml:"sources" toml:"sources"`
	Filters map[string]map[string]any   `json:"filters" yaml:"filters" toml:"filters"`
	Scopes  map[string]ScopeDefinition  `json:"scopes" yaml:"scopes" toml:"scopes"`
	KPIs    []KPIDefinition             `json:"kpis" yaml:"kpis" toml:"kpis"`
}

// SourceDefinition describes one record source
type SourceDefinition struct {
	Type      string `json:"type" yaml:"type" toml:"type"` // csv, json, kev, gomod, pypi, npm
	Path      string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty" toml:"delimiter,omitempty"`
	EPSS      bool   `json:"epss,omitempty" yaml:"epss,omitempty" toml:"epss,omitempty"` // kev only: add EPSS scores
}

// ScopeDefinition describes a filtered view over a source
type ScopeDefinition struct {
	Name      string   `json:"name" yaml:"name" toml:"name"`
	Perimeter string   `json:"perimeter" yaml:"perimeter" toml:"perimeter"`
	Source    string   `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"` // defaults to Perimeter
	Filters   []string `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
}

// SourceKey returns the source the scope reads from
func (s ScopeDefinition) SourceKey() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Perimeter
}

// KPIDefinition describes one indicator and the scopes it is computed over
type KPIDefinition struct {
	Name        string           `json:"name" yaml:"name" toml:"name"`
	Perimeter   string           `json:"perimeter" yaml:"perimeter" toml:"perimeter"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Controls    []map[string]any `json:"controls,omitempty" yaml:"controls,omitempty" toml:"controls,omitempty"`
	Rules       map[string]any   `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`
	Scopes      []KPIScope       `json:"scopes" yaml:"scopes" toml:"scopes"`
}

// KPIScope is a scope of a KPI, built by merging named scopes
type KPIScope struct {
	Name  string   `json:"name" yaml:"name" toml:"name"`
	Build []string `json:"build" yaml:"build" toml:"build"`
}
