package reporter

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
)

var (
	conformColor    = color.New(color.FgGreen, color.Bold)
	partialColor    = color.New(color.FgYellow, color.Bold)
	notConformColor = color.New(color.FgRed, color.Bold)
	boldColor       = color.New(color.Bold)
)

func levelColor(l kpi.ConformityLevel) *color.Color {
	switch l {
	case kpi.Conform:
		return conformColor
	case kpi.PartiallyConform:
		return partialColor
	}
	return notConformColor
}

func tendencyColor(t kpi.Tendency) *color.Color {
	switch t {
	case kpi.Increasing:
		return conformColor
	case kpi.Decreasing:
		return notConformColor
	}
	return boldColor
}

// TerminalReporter outputs KPIs in a human-readable terminal format
type TerminalReporter struct{}

// Report generates terminal output for the given evaluations
func (r *TerminalReporter) Report(evals []calculator.Evaluation) ([]byte, error) {
	if len(evals) == 0 {
		return []byte("No KPI computed.\n"), nil
	}

	var sb strings.Builder

	counts := levelCounts(evals)
	sb.WriteString(boldColor.Sprintf("\nKPI REPORT (%s)\n", evals[0].Snapshot.Date.Format(kpi.DateLayout)))
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	sb.WriteString(fmt.Sprintf("%d KPIs computed:", len(evals)))
	for i := len(kpi.Levels) - 1; i >= 0; i-- {
		lvl := kpi.Levels[i]
		sb.WriteString(" " + levelColor(lvl).Sprintf("%d %s", counts[lvl.Name], lvl.Name))
	}
	sb.WriteString("\n")

	last := ""
	for _, e := range evals {
		s := e.Snapshot
		if s.Name != last {
			sb.WriteString(fmt.Sprintf("\n%s [%s]\n", boldColor.Sprint(s.Name), s.Perimeter))
			if desc := e.KPI.Description(); desc != "" {
				sb.WriteString(fmt.Sprintf("   %s\n", desc))
			}
			last = s.Name
		}
		sb.WriteString(fmt.Sprintf("   %-20s %8s  (%d/%d)  %s\n",
			s.Scope, percent(s.Value), s.Conforming, s.ScopeSize, levelColor(s.Level).Sprint(s.Level.Name)))
	}

	return []byte(sb.String()), nil
}

// ReportHistory prints the values of every history followed by their
// successive tendencies
func (r *TerminalReporter) ReportHistory(histories []calculator.History) ([]byte, error) {
	if len(histories) == 0 {
		return []byte("No KPI history.\n"), nil
	}

	var sb strings.Builder
	sb.WriteString(boldColor.Sprint("\nKPI HISTORY\n"))
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	for _, h := range histories {
		sb.WriteString(fmt.Sprintf("\n%s [%s]\n", boldColor.Sprint(h.Name()), h.Scope))

		sorted := h.Sorted()
		for _, k := range sorted {
			v, err := k.Value()
			if err != nil {
				return nil, err
			}
			lvl, err := kpi.LevelOf(v)
			if err != nil {
				return nil, err
			}
			sb.WriteString(fmt.Sprintf("   %s  %8s  %s\n", k.DateString(), percent(v), levelColor(lvl).Sprint(lvl.Name)))
		}

		comps := h.Comparators()
		if len(comps) == 0 {
			continue
		}
		parts := []string{percent(comps[0].From)}
		for _, c := range comps {
			parts = append(parts, percent(c.To)+" "+tendencyColor(c.Tendency).Sprint(c.Tendency.Symbol()))
		}
		sb.WriteString("   " + strings.Join(parts, " -- ") + "\n")
	}

	return []byte(sb.String()), nil
}

func levelCounts(evals []calculator.Evaluation) map[string]int {
	counts := make(map[string]int, len(kpi.Levels))
	for _, e := range evals {
		counts[e.Snapshot.Level.Name]++
	}
	return counts
}
