package operation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/mod/semver"
)

// number returns v as a float64 when v holds a Go numeric type
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToFloat64(n), true
	}
	return 0, false
}

// numericString parses s as a number. Blank strings are not numbers.
func numericString(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return f, true
}

// equalValues compares two scalar or composite values. Numbers compare by value
// whatever their Go type, and a numeric string equals a number holding the same value.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	na, aNum := number(a)
	nb, bNum := number(b)
	switch {
	case aNum && bNum:
		return na == nb
	case aNum:
		if s, ok := b.(string); ok {
			f, ok := numericString(s)
			return ok && f == na
		}
		return false
	case bNum:
		if s, ok := a.(string); ok {
			f, ok := numericString(s)
			return ok && f == nb
		}
		return false
	}

	return reflect.DeepEqual(a, b)
}

func mismatch(op string, a, b any) error {
	return fmt.Errorf("%w: cannot apply %q to %T and %T", ErrTypeMismatch, op, a, b)
}

// elements returns the items of a slice or array value
func elements(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func equals(a, b any) (bool, error) {
	return equalValues(a, b), nil
}

// in checks a is a substring of b, or an element of b
func in(a, b any) (bool, error) {
	if s, ok := b.(string); ok {
		sub, ok := a.(string)
		if !ok {
			return false, mismatch(string(In), a, b)
		}
		return strings.Contains(s, sub), nil
	}

	items, ok := elements(b)
	if !ok {
		return false, mismatch(string(In), a, b)
	}
	for _, item := range items {
		if equalValues(a, item) {
			return true, nil
		}
	}
	return false, nil
}

// contains checks b is a substring of a, or an element of a
func contains(a, b any) (bool, error) {
	if s, ok := a.(string); ok {
		sub, ok := b.(string)
		if !ok {
			return false, mismatch(string(Contains), a, b)
		}
		return strings.Contains(s, sub), nil
	}

	items, ok := elements(a)
	if !ok {
		return false, mismatch(string(Contains), a, b)
	}
	for _, item := range items {
		if equalValues(item, b) {
			return true, nil
		}
	}
	return false, nil
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareOrdered returns -1, 0 or 1. Strings holding numbers compare numerically,
// other strings lexically. A number never compares with a non-numeric string.
func compareOrdered(a, b any) (int, error) {
	na, aNum := number(a)
	nb, bNum := number(b)
	sa, aStr := a.(string)
	sb, bStr := b.(string)

	switch {
	case aNum && bNum:
		return compareFloats(na, nb), nil
	case aNum && bStr:
		if f, ok := numericString(sb); ok {
			return compareFloats(na, f), nil
		}
	case aStr && bNum:
		if f, ok := numericString(sa); ok {
			return compareFloats(f, nb), nil
		}
	case aStr && bStr:
		fa, okA := numericString(sa)
		fb, okB := numericString(sb)
		if okA && okB {
			return compareFloats(fa, fb), nil
		}
		return strings.Compare(sa, sb), nil
	}

	ta, aTime := a.(time.Time)
	tb, bTime := b.(time.Time)
	if aTime && bTime {
		return ta.Compare(tb), nil
	}

	return 0, fmt.Errorf("%w: cannot order %T and %T", ErrTypeMismatch, a, b)
}

func ordered(accept func(int) bool) Operation {
	return func(a, b any) (bool, error) {
		c, err := compareOrdered(a, b)
		if err != nil {
			return false, err
		}
		return accept(c), nil
	}
}

func is(a, b any) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	switch b.(type) {
	case bool, string:
		return a == b, nil
	}
	if _, ok := number(b); ok {
		return equalValues(a, b), nil
	}
	return false, mismatch(string(Is), a, b)
}

func isNot(a, b any) (bool, error) {
	res, err := is(a, b)
	if err != nil {
		return false, err
	}
	return !res, nil
}

func compilePattern(pattern any, anchored bool) (*regexp.Regexp, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: pattern must be a string, got %T", ErrTypeMismatch, pattern)
	}
	if anchored {
		p = "^(?:" + p + ")"
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// match checks the pattern matches at the start of the value
func match(a, b any) (bool, error) {
	s, ok := a.(string)
	if !ok {
		return false, mismatch(string(Match), a, b)
	}
	re, err := compilePattern(b, true)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// search checks the pattern matches anywhere in the value
func search(a, b any) (bool, error) {
	s, ok := a.(string)
	if !ok {
		return false, mismatch(string(Search), a, b)
	}
	re, err := compilePattern(b, false)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// canonicalVersion turns "1.2.3" or "v1.2.3" into a valid semver string
func canonicalVersion(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", false
	}
	return s, true
}

func versioned(accept func(int) bool) Operation {
	return func(a, b any) (bool, error) {
		va, okA := canonicalVersion(a)
		vb, okB := canonicalVersion(b)
		if !okA || !okB {
			return false, fmt.Errorf("%w: cannot compare versions %v and %v", ErrTypeMismatch, a, b)
		}
		return accept(semver.Compare(va, vb)), nil
	}
}
