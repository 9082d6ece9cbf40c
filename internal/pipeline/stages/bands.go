package stages

import (
	"context"

	"grant-insights/internal/banding"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// AddExtraFieldsExternal bands the amount, the organisation's income and its
// age, and gives datasets without programmes a single default one
func AddExtraFieldsExternal() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Add extra fields from external data",
		Phase: pipeline.Banding,
		Run:   addExtraFieldsExternal,
	}
}

func bandColumn(t *table.Table, from, to string, bands banding.Table) error {
	src := t.Column(from)
	if src == nil {
		return nil
	}
	out := table.NewColumn(to, table.String, t.Len())
	for i, v := range src.Values {
		out.Values[i] = bands.Of(v)
	}
	return t.Set(out)
}

func addExtraFieldsExternal(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	if err := bandColumn(t, AmountAwarded, AmountBands, banding.Amount); err != nil {
		return nil, err
	}
	if err := bandColumn(t, OrgLatestIncome, OrgIncomeBands, banding.Income); err != nil {
		return nil, err
	}
	if err := bandColumn(t, OrgAge, OrgAgeBands, banding.Age); err != nil {
		return nil, err
	}
	if !t.Has(GrantProgramme) {
		if err := t.Set(table.Fill(GrantProgramme, table.String, t.Len(), DefaultProgramme)); err != nil {
			return nil, err
		}
	}
	return t, nil
}
