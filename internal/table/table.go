// Package table is the in-memory tabular dataset the enrichment stages pass
// along. A Table is an ordered set of equally long, typed columns; nil is the
// missing-value marker in every kind.
package table

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column
type Kind int

const (
	String Kind = iota
	Float
	Int
	Bool
	Time
	Duration
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case Duration:
		return "duration"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	for k := String; k <= Duration; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

// Column holds one named column. Values are string, float64, int64, bool,
// time.Time or time.Duration according to Kind, or nil.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn allocates a column of n missing values
func NewColumn(name string, kind Kind, n int) *Column {
	return &Column{Name: name, Kind: kind, Values: make([]any, n)}
}

// Fill returns a column with every row set to v
func Fill(name string, kind Kind, n int, v any) *Column {
	c := NewColumn(name, kind, n)
	for i := range c.Values {
		c.Values[i] = v
	}
	return c
}

// Strings returns the column values as strings, "" where missing
func (c *Column) Strings() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out
}

func (c *Column) clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// Table is an ordered collection of columns of equal length
type Table struct {
	rows  int
	cols  []*Column
	index map[string]int
}

// New creates an empty table with n rows and no columns
func New(rows int) *Table {
	return &Table{rows: rows, index: make(map[string]int)}
}

// FromColumns builds a table; all columns must have the same length and
// distinct names.
func FromColumns(cols ...*Column) (*Table, error) {
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0].Values)
	}
	t := New(rows)
	for _, c := range cols {
		if t.Has(c.Name) {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if err := t.Set(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column {
	return t.cols
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column or nil
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return t.cols[i]
	}
	return nil
}

// Has reports whether the named column exists
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the value at row i of the named column, nil if the column is absent
func (t *Table) Value(name string, i int) any {
	c := t.Column(name)
	if c == nil {
		return nil
	}
	return c.Values[i]
}

// Set adds a column at the end, or replaces an existing column of the same
// name in place.
func (t *Table) Set(c *Column) error {
	if len(c.Values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", c.Name, len(c.Values), t.rows)
	}
	if i, ok := t.index[c.Name]; ok {
		t.cols[i] = c
		return nil
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// Drop removes the named columns if present
func (t *Table) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.cols[:0]
	for _, c := range t.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.cols = kept
	t.reindex()
}

// Rename renames columns old -> new. A rename onto an existing column name
// replaces that column.
func (t *Table) Rename(renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	var replaced []string
	for _, c := range t.cols {
		if to, ok := renames[c.Name]; ok && to != c.Name {
			if _, exists := t.index[to]; exists {
				if _, moving := renames[to]; !moving {
					replaced = append(replaced, to)
				}
			}
		}
	}
	if len(replaced) > 0 {
		t.Drop(replaced...)
	}
	for _, c := range t.cols {
		if to, ok := renames[c.Name]; ok {
			c.Name = to
		}
	}
	t.reindex()
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		t.index[c.Name] = i
	}
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, c := range t.cols {
		_ = out.Set(c.clone())
	}
	return out
}

// Row returns row i as a map of column name to value
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Distinct returns the non-missing values of the named column in first-seen
// order. Values must be comparable.
func (t *Table) Distinct(name string) []any {
	c := t.Column(name)
	if c == nil {
		return nil
	}
	seen := make(map[any]bool)
	var out []any
	for _, v := range c.Values {
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// DistinctStrings is Distinct for string columns, skipping empty strings
func (t *Table) DistinctStrings(name string) []string {
	var out []string
	for _, v := range t.Distinct(name) {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LeftJoin adds the columns of right (except rightOn) to t, prefixed with
// prefix, matching t's column on against right's column rightOn. When right
// holds a key more than once the first row wins. Rows of t without a match get
// missing values. Existing columns with the same prefixed name are replaced.
func (t *Table) LeftJoin(on string, right *Table, rightOn, prefix string) error {
	left := t.Column(on)
	if left == nil {
		return fmt.Errorf("join column %q not found", on)
	}
	keys := right.Column(rightOn)
	if keys == nil {
		return fmt.Errorf("join column %q not found in right table", rightOn)
	}

	lookup := make(map[any]int, right.rows)
	for i, k := range keys.Values {
		if k == nil {
			continue
		}
		if _, dup := lookup[k]; !dup {
			lookup[k] = i
		}
	}

	for _, rc := range right.cols {
		if rc.Name == rightOn {
			continue
		}
		col := NewColumn(prefix+rc.Name, rc.Kind, t.rows)
		for i, k := range left.Values {
			if k == nil {
				continue
			}
			if j, ok := lookup[k]; ok {
				col.Values[i] = rc.Values[j]
			}
		}
		if err := t.Set(col); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether both tables have the same columns in the same order
// with the same kinds and values
func (t *Table) Equal(o *Table) bool {
	if t.rows != o.rows || len(t.cols) != len(o.cols) {
		return false
	}
	for i, c := range t.cols {
		oc := o.cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for j, v := range c.Values {
			if !valueEqual(v, oc.Values[j]) {
				return false
			}
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}
