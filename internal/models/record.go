package models

import "sort"

// Record is one unit of input data: a field name to value mapping coming from
// a CSV row, a JSON object or an API entry
type Record map[string]any

// Get returns the value of a field and whether the field exists
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Fields returns the record field names in lexical order
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
