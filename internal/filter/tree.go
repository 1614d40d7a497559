package filter

import (
	"fmt"
	"strings"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/operation"
	"github.com/spf13/cast"
)

// Logic joins the results of a tree children
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// ParseLogic reads a tree operator, case insensitive
func ParseLogic(s string) (Logic, error) {
	switch Logic(strings.ToLower(strings.TrimSpace(s))) {
	case And:
		return And, nil
	case Or:
		return Or, nil
	}
	return "", fmt.Errorf("%w: tree operator must be and/or, got %q", ErrConfig, s)
}

// Node is a decision tree child: either a *Leaf or a *Tree
type Node interface {
	node()
}

// Leaf is a terminal tree node wrapping a filter
type Leaf struct {
	filter *Filter
	flag   any
	value  bool
	done   bool
}

func (*Leaf) node() {}

// Filter returns the leaf filter
func (l *Leaf) Filter() *Filter { return l.filter }

// Flag returns the value attached to the leaf, nil when none was configured
func (l *Leaf) Flag() any { return l.flag }

// Value returns the last evaluation result and whether the leaf was evaluated
func (l *Leaf) Value() (bool, bool) { return l.value, l.done }

func (l *Leaf) String() string {
	if !l.done {
		return "(" + l.filter.String() + ")"
	}
	return fmt.Sprintf("((%s) => %t)", l.filter, l.value)
}

type treeState int

const (
	unbuilt treeState = iota
	built
	evaluated
)

// Tree combines filters and sub trees with and/or. It is built from a
// declaration such as
//
//	{operator: or, flag: critical, nodes: [
//	    {field: severity, operator: ">=", value: 9},
//	    {operator: and, nodes: [...]},
//	]}
//
// A child with a "nodes" key is a sub tree, any other child is a leaf filter.
type Tree struct {
	reg    *operation.Registry
	decl   map[string]any
	logic  Logic
	negate bool
	flag   any

	state     treeState
	nodes     []Node
	satisfied bool
	result    any
}

func (*Tree) node() {}

// NewTree parses the tree header. Children are materialized by Build.
func NewTree(reg *operation.Registry, decl map[string]any) (*Tree, error) {
	t := &Tree{reg: reg, decl: decl, logic: And}

	if raw, ok := decl["operator"]; ok && raw != nil {
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: tree operator: %v", ErrConfig, err)
		}
		if t.logic, err = ParseLogic(s); err != nil {
			return nil, err
		}
	}

	if raw, ok := decl["negate"]; ok && raw != nil {
		negate, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: tree negate: %v", ErrConfig, err)
		}
		t.negate = negate
	}

	t.flag = decl["flag"]

	if _, err := childDecls(decl); err != nil {
		return nil, err
	}
	return t, nil
}

// BuildTree parses and builds a tree in one step
func BuildTree(reg *operation.Registry, decl map[string]any) (*Tree, error) {
	t, err := NewTree(reg, decl)
	if err != nil {
		return nil, err
	}
	if err := t.Build(); err != nil {
		return nil, err
	}
	return t, nil
}

// childDecls reads the "nodes" list of a declaration. Decoders produce either
// []any or []map[string]any depending on the file format.
func childDecls(decl map[string]any) ([]map[string]any, error) {
	raw, ok := decl["nodes"]
	if !ok || raw == nil {
		return nil, nil
	}

	switch nodes := raw.(type) {
	case []map[string]any:
		return nodes, nil
	case []any:
		out := make([]map[string]any, 0, len(nodes))
		for i, n := range nodes {
			m, ok := n.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: node #%d is %T, not a mapping", ErrConfig, i, n)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: nodes must be a list, got %T", ErrConfig, raw)
}

// Build materializes every child from the declaration, recursively
func (t *Tree) Build() error {
	decls, err := childDecls(t.decl)
	if err != nil {
		return err
	}

	nodes := make([]Node, 0, len(decls))
	for i, d := range decls {
		if _, sub := d["nodes"]; sub {
			child, err := BuildTree(t.reg, d)
			if err != nil {
				return fmt.Errorf("node #%d: %w", i, err)
			}
			nodes = append(nodes, child)
			continue
		}

		f, err := FromMap(t.reg, d)
		if err != nil {
			return fmt.Errorf("node #%d: %w", i, err)
		}
		nodes = append(nodes, &Leaf{filter: f, flag: d["flag"]})
	}

	t.nodes = nodes
	t.state = built
	t.satisfied = false
	t.result = nil
	return nil
}

// Evaluate computes the tree result for r: true or false, or the tree flag in
// place of true when one is configured. An unbuilt tree is built first. The
// result is kept until Reset or Clear, and later calls return it whatever the
// record. A failed evaluation keeps no partial result.
func (t *Tree) Evaluate(r models.Record) (any, error) {
	if t.state == evaluated {
		return t.result, nil
	}
	if t.state == unbuilt {
		if err := t.Build(); err != nil {
			return nil, err
		}
	}

	values := make([]bool, len(t.nodes))
	for i, n := range t.nodes {
		switch n := n.(type) {
		case *Leaf:
			ok, err := n.filter.Match(r)
			if err != nil {
				t.Reset()
				return nil, err
			}
			n.value, n.done = ok, true
			values[i] = ok
		case *Tree:
			if _, err := n.Evaluate(r); err != nil {
				t.Reset()
				return nil, err
			}
			values[i] = n.satisfied
		}
	}

	satisfied := combine(t.logic, values) != t.negate

	t.satisfied = satisfied
	t.result = satisfied
	if satisfied && t.flag != nil {
		t.result = t.flag
	}
	t.state = evaluated
	return t.result, nil
}

// combine joins values; an empty and is true, an empty or is false
func combine(logic Logic, values []bool) bool {
	if logic == Or {
		for _, v := range values {
			if v {
				return true
			}
		}
		return false
	}
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}

// Match resets any previous result and reports whether r satisfies the tree
func (t *Tree) Match(r models.Record) (bool, error) {
	t.Reset()
	if _, err := t.Evaluate(r); err != nil {
		return false, err
	}
	return t.satisfied, nil
}

// Satisfied reports the boolean outcome of the last evaluation
func (t *Tree) Satisfied() bool { return t.satisfied }

// Result returns the last evaluation result and whether there is one
func (t *Tree) Result() (any, bool) { return t.result, t.state == evaluated }

// Logic returns the tree operator
func (t *Tree) Logic() Logic { return t.logic }

// Flag returns the tree flag
func (t *Tree) Flag() any { return t.flag }

// Nodes returns the built children
func (t *Tree) Nodes() []Node { return t.nodes }

// Reset discards evaluation results and keeps the built children
func (t *Tree) Reset() {
	if t.state == unbuilt {
		return
	}
	for _, n := range t.nodes {
		switch n := n.(type) {
		case *Leaf:
			n.value, n.done = false, false
		case *Tree:
			n.Reset()
		}
	}
	t.satisfied = false
	t.result = nil
	t.state = built
}

// Clear discards children and results. The next evaluation rebuilds the tree.
func (t *Tree) Clear() {
	t.nodes = nil
	t.satisfied = false
	t.result = nil
	t.state = unbuilt
}

// Leaves returns every leaf of the tree, depth first, in declaration order
func (t *Tree) Leaves() []*Leaf {
	var leaves []*Leaf
	for _, n := range t.nodes {
		switch n := n.(type) {
		case *Leaf:
			leaves = append(leaves, n)
		case *Tree:
			leaves = append(leaves, n.Leaves()...)
		}
	}
	return leaves
}

// MatchedLeaves returns the leaves whose filter held during the last evaluation
func (t *Tree) MatchedLeaves() []*Leaf {
	var matched []*Leaf
	for _, l := range t.Leaves() {
		if v, done := l.Value(); done && v {
			matched = append(matched, l)
		}
	}
	return matched
}

// Flags returns the flags of matched leaves, in order
func (t *Tree) Flags() []any {
	var flags []any
	for _, l := range t.MatchedLeaves() {
		if l.flag != nil {
			flags = append(flags, l.flag)
		}
	}
	return flags
}

// ToMap returns a declaration equivalent to the one the tree was built from
func (t *Tree) ToMap() map[string]any {
	nodes := make([]any, 0, len(t.nodes))
	for _, n := range t.nodes {
		switch n := n.(type) {
		case *Leaf:
			m := n.filter.ToMap()
			if n.flag != nil {
				m["flag"] = n.flag
			}
			nodes = append(nodes, m)
		case *Tree:
			nodes = append(nodes, n.ToMap())
		}
	}

	m := map[string]any{
		"operator": string(t.logic),
		"nodes":    nodes,
	}
	if t.negate {
		m["negate"] = true
	}
	if t.flag != nil {
		m["flag"] = t.flag
	}
	return m
}

func (t *Tree) String() string {
	parts := make([]string, 0, len(t.nodes))
	for _, n := range t.nodes {
		parts = append(parts, fmt.Sprint(n))
	}
	s := "(" + strings.Join(parts, " "+string(t.logic)+" ") + ")"
	if t.negate {
		s = "not " + s
	}
	return s
}
