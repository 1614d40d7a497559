package reporter

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
)

// JSONReporter outputs KPIs in JSON format
type JSONReporter struct {
	// now stamps the output, defaults to time.Now
	now func() time.Time
}

// jsonOutput represents the JSON output structure
type jsonOutput struct {
	RunID       string        `json:"run_id"`
	GeneratedAt string        `json:"generated_at"`
	Summary     jsonSummary   `json:"summary"`
	KPIs        []jsonKPI     `json:"kpis,omitempty"`
	Histories   []jsonHistory `json:"histories,omitempty"`
}

type jsonSummary struct {
	Total  int            `json:"total"`
	Levels map[string]int `json:"levels"`
}

type jsonKPI struct {
	Name        string  `json:"name"`
	Perimeter   string  `json:"perimeter"`
	Description string  `json:"description,omitempty"`
	Scope       string  `json:"scope"`
	ScopeSize   int     `json:"scope_size"`
	Conforming  int     `json:"conform_elements"`
	Value       float64 `json:"value"`
	Conformity  string  `json:"conformity"`
	Date        string  `json:"date"`
}

type jsonHistory struct {
	Name       string         `json:"name"`
	Scope      string         `json:"scope"`
	Values     []jsonKPI      `json:"values"`
	Tendencies []jsonTendency `json:"tendencies"`
}

type jsonTendency struct {
	FromDate string  `json:"from_date"`
	ToDate   string  `json:"to_date"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
	Tendency string  `json:"tendency"`
}

func (r *JSONReporter) header() jsonOutput {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return jsonOutput{
		RunID:       uuid.NewString(),
		GeneratedAt: now().UTC().Format(time.RFC3339),
		Summary:     jsonSummary{Levels: make(map[string]int, len(kpi.Levels))},
	}
}

func toJSONKPI(s kpi.Snapshot, description string) jsonKPI {
	return jsonKPI{
		Name:        s.Name,
		Perimeter:   s.Perimeter,
		Description: description,
		Scope:       s.Scope,
		ScopeSize:   s.ScopeSize,
		Conforming:  s.Conforming,
		Value:       s.Value,
		Conformity:  s.Level.Name,
		Date:        s.Date.Format(kpi.DateLayout),
	}
}

// Report generates JSON output for the given evaluations
func (r *JSONReporter) Report(evals []calculator.Evaluation) ([]byte, error) {
	output := r.header()
	output.KPIs = make([]jsonKPI, 0, len(evals))
	for _, lvl := range kpi.Levels {
		output.Summary.Levels[lvl.Name] = 0
	}

	for _, e := range evals {
		output.Summary.Total++
		output.Summary.Levels[e.Snapshot.Level.Name]++
		output.KPIs = append(output.KPIs, toJSONKPI(e.Snapshot, e.KPI.Description()))
	}

	return json.MarshalIndent(output, "", "  ")
}

// ReportHistory generates JSON output for KPI histories. The summary counts
// the levels of the latest value of each history.
func (r *JSONReporter) ReportHistory(histories []calculator.History) ([]byte, error) {
	output := r.header()
	output.Histories = make([]jsonHistory, 0, len(histories))
	for _, lvl := range kpi.Levels {
		output.Summary.Levels[lvl.Name] = 0
	}

	for _, h := range histories {
		jh := jsonHistory{Name: h.Name(), Scope: h.Scope, Tendencies: []jsonTendency{}}
		for _, k := range h.Sorted() {
			s, err := k.Snapshot()
			if err != nil {
				return nil, err
			}
			jh.Values = append(jh.Values, toJSONKPI(s, k.Description()))
		}
		if n := len(jh.Values); n > 0 {
			output.Summary.Total++
			output.Summary.Levels[jh.Values[n-1].Conformity]++
		}
		for _, c := range h.Comparators() {
			jh.Tendencies = append(jh.Tendencies, jsonTendency{
				FromDate: c.Earlier.DateString(),
				ToDate:   c.Later.DateString(),
				From:     c.From,
				To:       c.To,
				Tendency: string(c.Tendency),
			})
		}
		output.Histories = append(output.Histories, jh)
	}

	return json.MarshalIndent(output, "", "  ")
}
