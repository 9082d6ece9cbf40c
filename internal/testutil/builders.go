package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grant-insights/internal/table"
)

// TableBuilder helps build test tables column by column
type TableBuilder struct {
	cols []*table.Column
}

// NewTableBuilder creates an empty builder
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{}
}

// With adds a column of the given kind
func (b *TableBuilder) With(name string, kind table.Kind, values ...any) *TableBuilder {
	b.cols = append(b.cols, &table.Column{Name: name, Kind: kind, Values: values})
	return b
}

// WithStrings adds a string column; "" is stored as missing
func (b *TableBuilder) WithStrings(name string, values ...string) *TableBuilder {
	out := make([]any, len(values))
	for i, v := range values {
		if v != "" {
			out[i] = v
		}
	}
	return b.With(name, table.String, out...)
}

func (b *TableBuilder) WithFloats(name string, values ...float64) *TableBuilder {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return b.With(name, table.Float, out...)
}

// WithDates adds a time column from YYYY-MM-DD strings; "" is missing
func (b *TableBuilder) WithDates(name string, values ...string) *TableBuilder {
	out := make([]any, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			panic(err)
		}
		out[i] = d
	}
	return b.With(name, table.Time, out...)
}

// Build returns the table, failing the test if the columns disagree in length
func (b *TableBuilder) Build(t testing.TB) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns(b.cols...)
	require.NoError(t, err)
	return tbl
}
