package reporter

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
)

// CSVReporter exports one row per KPI scope, columns in kpi.RecordFields order
type CSVReporter struct {
	Delimiter rune

	// Header is false when appending to an existing export
	Header bool
}

// Report generates CSV rows for the given evaluations
func (r *CSVReporter) Report(evals []calculator.Evaluation) ([]byte, error) {
	snaps := make([]kpi.Snapshot, 0, len(evals))
	for _, e := range evals {
		snaps = append(snaps, e.Snapshot)
	}
	return r.write(snaps)
}

// ReportHistory exports every dated value of every history
func (r *CSVReporter) ReportHistory(histories []calculator.History) ([]byte, error) {
	var snaps []kpi.Snapshot
	for _, h := range histories {
		for _, k := range h.Sorted() {
			s, err := k.Snapshot()
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, s)
		}
	}
	return r.write(snaps)
}

func (r *CSVReporter) write(snaps []kpi.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = r.Delimiter

	if r.Header {
		if err := w.Write(kpi.RecordFields); err != nil {
			return nil, err
		}
	}

	row := make([]string, len(kpi.RecordFields))
	for _, s := range snaps {
		rec := s.Record()
		for i, field := range kpi.RecordFields {
			row[i] = fmt.Sprint(rec[field])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
