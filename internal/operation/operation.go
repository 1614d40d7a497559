// Package operation holds the comparison operators usable in filters.
//
// Operators are resolved through a Registry value. Every call to NewRegistry
// returns an independent registry seeded with the built-in operators, so
// callers (and tests) can register their own without touching any shared state.
package operation

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidOperator is returned when an operator symbol is not registered
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrTypeMismatch is returned when operands cannot be compared by an operator
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidPattern is returned by regex operators for a pattern that does not compile
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Operation is a two-argument predicate. a is the record value, b the filter value.
type Operation func(a, b any) (bool, error)

// Operator is the symbol of a built-in operation
type Operator string

const (
	Equals       Operator = "="
	In           Operator = "in"
	Contains     Operator = "contains"
	Greater      Operator = ">"
	GreaterEqual Operator = ">="
	Lower        Operator = "<"
	LowerEqual   Operator = "<="
	Is           Operator = "is"
	IsNot        Operator = "isnt"
	Match        Operator = "match"
	Search       Operator = "search"

	VersionGreater      Operator = "v>"
	VersionGreaterEqual Operator = "v>="
	VersionLower        Operator = "v<"
	VersionLowerEqual   Operator = "v<="
)

// aliases maps alternate spellings to their canonical operator
var aliases = map[string]Operator{
	"eq": Equals,
	"∈":  In,
	"gt": Greater,
	"ge": GreaterEqual,
	"lt": Lower,
	"le": LowerEqual,
	":":  Is,
	"!:": IsNot,
	"~":  Match,
	"?":  Search,
}

// builtin returns the operation implementing a built-in operator
func builtin(op Operator) Operation {
	switch op {
	case Equals:
		return equals
	case In:
		return in
	case Contains:
		return contains
	case Greater:
		return ordered(func(c int) bool { return c > 0 })
	case GreaterEqual:
		return ordered(func(c int) bool { return c >= 0 })
	case Lower:
		return ordered(func(c int) bool { return c < 0 })
	case LowerEqual:
		return ordered(func(c int) bool { return c <= 0 })
	case Is:
		return is
	case IsNot:
		return isNot
	case Match:
		return match
	case Search:
		return search
	case VersionGreater:
		return versioned(func(c int) bool { return c > 0 })
	case VersionGreaterEqual:
		return versioned(func(c int) bool { return c >= 0 })
	case VersionLower:
		return versioned(func(c int) bool { return c < 0 })
	case VersionLowerEqual:
		return versioned(func(c int) bool { return c <= 0 })
	}
	return nil
}

// Builtins lists the canonical built-in operators
func Builtins() []Operator {
	return []Operator{
		Equals, In, Contains,
		Greater, GreaterEqual, Lower, LowerEqual,
		Is, IsNot, Match, Search,
		VersionGreater, VersionGreaterEqual, VersionLower, VersionLowerEqual,
	}
}

// Registry resolves operator symbols to operations
type Registry struct {
	ops map[string]Operation
}

// NewRegistry returns a registry holding the built-in operators and their aliases
func NewRegistry() *Registry {
	r := &Registry{ops: make(map[string]Operation)}
	for _, op := range Builtins() {
		r.ops[string(op)] = builtin(op)
	}
	for alias, op := range aliases {
		r.ops[alias] = builtin(op)
	}
	return r
}

// Register adds or replaces an operation under the given symbol
func (r *Registry) Register(symbol string, op Operation) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOperator)
	}
	if op == nil {
		return fmt.Errorf("%w: nil operation for %q", ErrInvalidOperator, symbol)
	}
	r.ops[symbol] = op
	return nil
}

// Resolve returns the operation registered under symbol
func (r *Registry) Resolve(symbol string) (Operation, error) {
	op, ok := r.ops[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, symbol)
	}
	return op, nil
}

// Has reports whether symbol is registered
func (r *Registry) Has(symbol string) bool {
	_, ok := r.ops[symbol]
	return ok
}

// Symbols returns every registered symbol, sorted
func (r *Registry) Symbols() []string {
	symbols := make([]string, 0, len(r.ops))
	for s := range r.ops {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
