package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/dataset"
	"github.com/ethanolivertroy/kpi-checker/internal/filter"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/operation"
)

func init() {
	color.NoColor = true
}

var (
	q1 = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	q2 = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
)

// evaluation builds a KPI over total hosts of which conform are enabled
func evaluation(t *testing.T, name, scope string, conform, total int, date time.Time) calculator.Evaluation {
	t.Helper()
	records := make(dataset.Records, 0, total)
	for i := 0; i < total; i++ {
		status := "disabled"
		if i < conform {
			status = "enabled"
		}
		records = append(records, models.Record{"status": status})
	}

	f, err := filter.FromTuple(operation.NewRegistry(), "status", "=", "enabled")
	require.NoError(t, err)

	k := kpi.New(name, "computers", dataset.New(scope, "computers", records), filter.Conditions(f), kpi.WithDate(date))
	snap, err := k.Snapshot()
	require.NoError(t, err)
	return calculator.Evaluation{KPI: k, Scope: scope, Snapshot: snap}
}

func evaluations(t *testing.T) []calculator.Evaluation {
	return []calculator.Evaluation{
		evaluation(t, "enabled hosts", "servers", 19, 20, q2),
		evaluation(t, "enabled hosts", "workstations", 3, 4, q2),
		evaluation(t, "patched hosts", "servers", 1, 3, q2),
	}
}

func histories(t *testing.T) []calculator.History {
	hs, err := calculator.BuildHistories(
		[]calculator.Evaluation{evaluation(t, "enabled hosts", "servers", 8, 10, q1)},
		[]calculator.Evaluation{evaluation(t, "enabled hosts", "servers", 9, 10, q2)},
	)
	require.NoError(t, err)
	return hs
}

func TestGet(t *testing.T) {
	cfg := models.DefaultConfig()
	assert.IsType(t, &TerminalReporter{}, Get("terminal", cfg))
	assert.IsType(t, &TerminalReporter{}, Get("", cfg))
	assert.IsType(t, &JSONReporter{}, Get("json", cfg))

	r, ok := Get("csv", cfg).(*CSVReporter)
	require.True(t, ok)
	assert.Equal(t, '|', r.Delimiter)
	assert.True(t, r.Header)
}

func TestGetCSVAppend(t *testing.T) {
	out := filepath.Join(t.TempDir(), "kpis.csv")
	cfg := models.DefaultConfig()
	cfg.OutputFile = out
	cfg.Append = true

	// nothing to append to yet
	assert.True(t, Get("csv", cfg).(*CSVReporter).Header)

	require.NoError(t, os.WriteFile(out, []byte("name|perimeter\n"), 0644))
	assert.False(t, Get("csv", cfg).(*CSVReporter).Header)

	cfg.Append = false
	assert.True(t, Get("csv", cfg).(*CSVReporter).Header)
}

func TestTerminalReport(t *testing.T) {
	out, err := (&TerminalReporter{}).Report(evaluations(t))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "KPI REPORT (2024-06-30)")
	assert.Contains(t, text, "3 KPIs computed: 1 CONFORM 1 PARTIALLYCONFORM 1 NOTCONFORM")
	assert.Equal(t, 1, strings.Count(text, "enabled hosts [computers]"))
	assert.Contains(t, text, "95%  (19/20)  CONFORM")
	assert.Contains(t, text, "33.33%  (1/3)  NOTCONFORM")

	out, err = (&TerminalReporter{}).Report(nil)
	require.NoError(t, err)
	assert.Equal(t, "No KPI computed.\n", string(out))
}

func TestTerminalReportHistory(t *testing.T) {
	out, err := (&TerminalReporter{}).ReportHistory(histories(t))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "enabled hosts [servers]")
	assert.Contains(t, text, "2024-03-31       80%  PARTIALLYCONFORM")
	assert.Contains(t, text, "80% -- 90% +")
}

func TestJSONReport(t *testing.T) {
	r := &JSONReporter{now: func() time.Time { return q2 }}
	out, err := r.Report(evaluations(t))
	require.NoError(t, err)

	var got jsonOutput
	require.NoError(t, json.Unmarshal(out, &got))

	_, err = uuid.Parse(got.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "2024-06-30T00:00:00Z", got.GeneratedAt)
	assert.Equal(t, 3, got.Summary.Total)
	assert.Equal(t, map[string]int{"CONFORM": 1, "PARTIALLYCONFORM": 1, "NOTCONFORM": 1}, got.Summary.Levels)
	require.Len(t, got.KPIs, 3)
	assert.Equal(t, jsonKPI{
		Name:       "enabled hosts",
		Perimeter:  "computers",
		Scope:      "workstations",
		ScopeSize:  4,
		Conforming: 3,
		Value:      75,
		Conformity: "PARTIALLYCONFORM",
		Date:       "2024-06-30",
	}, got.KPIs[1])

	// every run gets its own id
	again, err := r.Report(nil)
	require.NoError(t, err)
	var empty jsonOutput
	require.NoError(t, json.Unmarshal(again, &empty))
	assert.NotEqual(t, got.RunID, empty.RunID)
	assert.Equal(t, 0, empty.Summary.Levels["CONFORM"])
}

func TestJSONReportHistory(t *testing.T) {
	out, err := (&JSONReporter{}).ReportHistory(histories(t))
	require.NoError(t, err)

	var got jsonOutput
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got.Histories, 1)

	h := got.Histories[0]
	assert.Equal(t, "servers", h.Scope)
	require.Len(t, h.Values, 2)
	assert.Equal(t, []jsonTendency{{
		FromDate: "2024-03-31",
		ToDate:   "2024-06-30",
		From:     80,
		To:       90,
		Tendency: "increasing",
	}}, h.Tendencies)
	assert.Equal(t, 1, got.Summary.Levels["PARTIALLYCONFORM"])
}

func TestCSVReport(t *testing.T) {
	out, err := (&CSVReporter{Delimiter: '|', Header: true}).Report(evaluations(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name|perimeter|scope|scope_size|conform_elements|value|conformity|date", lines[0])
	assert.Equal(t, "enabled hosts|computers|servers|20|19|95|CONFORM|2024-06-30", lines[1])
	assert.Equal(t, "patched hosts|computers|servers|3|1|33.33|NOTCONFORM|2024-06-30", lines[3])

	out, err = (&CSVReporter{Delimiter: ';'}).Report(evaluations(t)[:1])
	require.NoError(t, err)
	assert.Equal(t, "enabled hosts;computers;servers;20;19;95;CONFORM;2024-06-30\n", string(out))
}

func TestCSVReportHistory(t *testing.T) {
	out, err := (&CSVReporter{Delimiter: '|'}).ReportHistory(histories(t))
	require.NoError(t, err)
	assert.Equal(t,
		"enabled hosts|computers|servers|10|8|80|PARTIALLYCONFORM|2024-03-31\n"+
			"enabled hosts|computers|servers|10|9|90|PARTIALLYCONFORM|2024-06-30\n",
		string(out))
}
