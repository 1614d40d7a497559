package calculator

import (
	"errors"

	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
)

// History follows one KPI scope across runs
type History struct {
	Scope string
	*kpi.History
}

// BuildHistories groups the evaluations of several runs by KPI name and
// scope, in order of first appearance, and builds one history per group
func BuildHistories(runs ...[]Evaluation) ([]History, error) {
	type key struct{ name, scope string }

	var (
		order  []key
		groups = make(map[key]*kpi.History)
		errs   []error
	)
	for _, run := range runs {
		for _, e := range run {
			k := key{e.KPI.Name(), e.Scope}
			h, ok := groups[k]
			if !ok {
				h, _ = kpi.NewHistory(k.name)
				groups[k] = h
				order = append(order, k)
			}
			if err := h.Add(e.KPI); err != nil {
				errs = append(errs, err)
			}
		}
	}

	out := make([]History, 0, len(order))
	for _, k := range order {
		h := groups[k]
		if err := h.Build(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, History{Scope: k.scope, History: h})
	}
	return out, errors.Join(errs...)
}
