// Package reporter renders computed KPIs and their histories.
package reporter

import (
	"os"
	"strconv"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

// Reporter is the interface for output formatters
type Reporter interface {
	// Report generates output for the given evaluations
	Report(evals []calculator.Evaluation) ([]byte, error)

	// ReportHistory generates output for KPI histories
	ReportHistory(histories []calculator.History) ([]byte, error)
}

// Get returns a reporter for the specified format
func Get(format string, cfg *models.Config) Reporter {
	switch format {
	case "json":
		return &JSONReporter{}
	case "csv":
		delim := cfg.Delimiter
		if delim == 0 {
			delim = '|'
		}
		return &CSVReporter{
			Delimiter: delim,
			Header:    !(cfg.Append && hasContent(cfg.OutputFile)),
		}
	default:
		return &TerminalReporter{}
	}
}

// Formats lists the accepted output formats
var Formats = []string{"terminal", "json", "csv"}

// hasContent reports whether path is a non-empty file
func hasContent(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// percent formats a KPI value without trailing zeros
func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
