package models

import "time"

// Config holds the settings of one kpi-checker invocation
type Config struct {
	// Report definition file and the directory its relative source paths resolve against
	DefinitionFile string
	DataDir        string

	// Output settings
	OutputFormat string // "terminal", "json", "csv"
	OutputFile   string // Optional output file path
	Delimiter    rune   // CSV export delimiter
	Append       bool   // Append to the CSV output instead of overwriting it

	// Behavior settings
	Date      time.Time // Date stamped on computed KPIs
	FailUnder string    // Exit with code 1 if a KPI falls below this conformity level
	Workers   int       // KPIs evaluated concurrently

	// Cache settings
	CacheTTL time.Duration
	NoCache  bool

	// API settings
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:      ".",
		OutputFormat: "terminal",
		Delimiter:    '|',
		Date:         time.Now(),
		Workers:      5,
		CacheTTL:     24 * time.Hour,
		NoCache:      false,
		Timeout:      60 * time.Second,
	}
}
