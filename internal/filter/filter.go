// Package filter implements declarative conditions over records: single
// field filters and boolean decision trees built from them.
package filter

import (
	"errors"
	"fmt"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/operation"
	"github.com/spf13/cast"
)

var (
	// ErrConfig is returned for a malformed filter or tree declaration
	ErrConfig = errors.New("invalid filter configuration")

	// ErrMissingField is returned when a record lacks the field a filter checks
	ErrMissingField = errors.New("missing field")
)

// DefaultOperator is used when a declaration does not name one
const DefaultOperator = string(operation.In)

// Filter is a single condition on one record field
type Filter struct {
	field    string
	operator string
	value    any
	negate   bool
	op       operation.Operation
}

// New builds a filter. The operator must be registered in reg.
func New(reg *operation.Registry, field, operator string, value any, negate bool) (*Filter, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty field name", ErrConfig)
	}
	if operator == "" {
		operator = DefaultOperator
	}
	op, err := reg.Resolve(operator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &Filter{
		field:    field,
		operator: operator,
		value:    value,
		negate:   negate,
		op:       op,
	}, nil
}

// FromTuple builds a non negated filter from a (field, operator, value) triple
func FromTuple(reg *operation.Registry, field, operator string, value any) (*Filter, error) {
	return New(reg, field, operator, value, false)
}

// FromMap builds a filter from a declaration such as
//
//	{field: status, operator: "=", value: enabled, negate: false}
//
// "fieldname" is accepted in place of "field". The operator defaults to "in".
func FromMap(reg *operation.Registry, decl map[string]any) (*Filter, error) {
	field, err := fieldName(decl)
	if err != nil {
		return nil, err
	}

	value, ok := decl["value"]
	if !ok {
		return nil, fmt.Errorf("%w: filter on %q has no value", ErrConfig, field)
	}

	operator := DefaultOperator
	if raw, ok := decl["operator"]; ok && raw != nil {
		operator, err = cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: operator of %q: %v", ErrConfig, field, err)
		}
	}

	negate := false
	if raw, ok := decl["negate"]; ok && raw != nil {
		negate, err = cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: negate of %q: %v", ErrConfig, field, err)
		}
	}

	return New(reg, field, operator, value, negate)
}

func fieldName(decl map[string]any) (string, error) {
	raw, ok := decl["field"]
	if !ok {
		raw, ok = decl["fieldname"]
	}
	if !ok {
		return "", fmt.Errorf("%w: missing field name in %v", ErrConfig, decl)
	}
	field, err := cast.ToStringE(raw)
	if err != nil || field == "" {
		return "", fmt.Errorf("%w: invalid field name %v", ErrConfig, raw)
	}
	return field, nil
}

// ParseList builds every valid filter of decls. Declarations that fail are
// returned as errors alongside the filters that succeeded, so that callers can
// report them and carry on.
func ParseList(reg *operation.Registry, decls []map[string]any) ([]*Filter, []error) {
	var (
		filters []*Filter
		errs    []error
	)
	for i, decl := range decls {
		f, err := FromMap(reg, decl)
		if err != nil {
			errs = append(errs, fmt.Errorf("filter #%d: %w", i, err))
			continue
		}
		filters = append(filters, f)
	}
	return filters, errs
}

// Field returns the checked field name
func (f *Filter) Field() string { return f.field }

// Operator returns the operator symbol
func (f *Filter) Operator() string { return f.operator }

// Value returns the comparison value
func (f *Filter) Value() any { return f.value }

// Negate reports whether the result is inverted
func (f *Filter) Negate() bool { return f.negate }

// SetNegate sets result inversion
func (f *Filter) SetNegate(negate bool) { f.negate = negate }

// Match evaluates the filter against a record
func (f *Filter) Match(r models.Record) (bool, error) {
	v, ok := r[f.field]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMissingField, f.field)
	}
	return f.MatchValue(v)
}

// MatchValue evaluates the filter against a bare value
func (f *Filter) MatchValue(v any) (bool, error) {
	res, err := f.op(v, f.value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", f, err)
	}
	return res != f.negate, nil
}

// Condition is anything a record can be checked against
type Condition interface {
	Match(r models.Record) (bool, error)
}

// Conditions converts filters to conditions
func Conditions(filters ...*Filter) []Condition {
	conds := make([]Condition, len(filters))
	for i, f := range filters {
		conds[i] = f
	}
	return conds
}

// MatchAll reports whether r satisfies every condition
func MatchAll(r models.Record, conds []Condition) (bool, error) {
	for _, c := range conds {
		ok, err := c.Match(r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Apply returns the records satisfying every condition, in input order
func Apply(records []models.Record, conds []Condition) ([]models.Record, error) {
	if len(conds) == 0 {
		return records, nil
	}
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		ok, err := MatchAll(r, conds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ToMap returns the declaration the filter can be rebuilt from
func (f *Filter) ToMap() map[string]any {
	m := map[string]any{
		"field":    f.field,
		"operator": f.operator,
		"value":    f.value,
	}
	if f.negate {
		m["negate"] = true
	}
	return m
}

func (f *Filter) String() string {
	if f.negate {
		return fmt.Sprintf("not %s %s %v", f.field, f.operator, f.value)
	}
	return fmt.Sprintf("%s %s %v", f.field, f.operator, f.value)
}
