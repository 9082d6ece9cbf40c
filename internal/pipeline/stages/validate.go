package stages

import (
	"context"
	"fmt"
	"strings"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// CheckColumnNames renames near-misses of the required columns, ignoring
// case and whitespace
func CheckColumnNames() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Check column names",
		Phase: pipeline.Validating,
		Run:   checkColumnNames,
	}
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func checkColumnNames(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	renames := make(map[string]string)
	claimed := make(map[string]bool)
	for _, name := range t.ColumnNames() {
		for _, want := range RequiredColumns {
			// an exact column wins over near-misses, and the first near-miss
			// wins over later ones
			if name == want || t.Has(want) || claimed[want] {
				continue
			}
			if squash(name) == squash(want) {
				renames[name] = want
				claimed[want] = true
			}
		}
	}
	if len(renames) > 0 {
		t.Rename(renames)
	}
	return t, nil
}

// CheckColumnsExist fails the run when a required column is missing
func CheckColumnsExist() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Check columns exist",
		Phase: pipeline.Validating,
		Run:   checkColumnsExist,
	}
}

func checkColumnsExist(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	for _, name := range RequiredColumns {
		if !t.Has(name) {
			return nil, errors.InputError(fmt.Sprintf("Column %s not found in data. Columns: [%s]",
				name, strings.Join(t.ColumnNames(), ", ")))
		}
	}
	return t, nil
}

// CheckColumnTypes coerces the amount to a number, the award date to a date
// and the names and identifiers to trimmed text
func CheckColumnTypes() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Check column types",
		Phase: pipeline.Validating,
		Run:   checkColumnTypes,
	}
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

var textColumns = []string{FunderID, FunderName, RecipientName, RecipientID}

func checkColumnTypes(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	if c := t.Column(AmountAwarded); c != nil {
		out := table.NewColumn(c.Name, table.Float, t.Len())
		for i, v := range c.Values {
			f, ok, err := table.ToFloat(v)
			if err == nil && !ok && !isBlank(v) {
				err = fmt.Errorf("%v is not a finite number", v)
			}
			if err != nil {
				return nil, errors.InputError(fmt.Sprintf("Column %s has a value that is not a number in row %d: %v", c.Name, i+1, v))
			}
			if ok {
				out.Values[i] = f
			}
		}
		if err := t.Set(out); err != nil {
			return nil, err
		}
	}

	for _, name := range textColumns {
		c := t.Column(name)
		if c == nil {
			continue
		}
		out := table.NewColumn(name, table.String, t.Len())
		for i, v := range c.Values {
			if s, ok := table.ToString(v).(string); ok {
				out.Values[i] = strings.TrimSpace(s)
			}
		}
		if err := t.Set(out); err != nil {
			return nil, err
		}
	}

	if c := t.Column(AwardDate); c != nil {
		out := table.NewColumn(c.Name, table.Time, t.Len())
		for i, v := range c.Values {
			d, ok, err := table.ToTime(v, false)
			if err != nil {
				return nil, errors.InputError(fmt.Sprintf("Column %s has a value that is not a date in row %d: %v", c.Name, i+1, v))
			}
			if ok {
				out.Values[i] = d
			}
		}
		if err := t.Set(out); err != nil {
			return nil, err
		}
	}
	return t, nil
}
