package stages

import (
	"context"
	"strings"
	"time"

	"grant-insights/internal/orgid"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// AddExtraColumns adds the award year and a first guess at the recipient
// identifier scheme
func AddExtraColumns() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Add extra columns",
		Phase: pipeline.Enriching,
		Run:   addExtraColumns,
	}
}

func addExtraColumns(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	year := table.NewColumn(AwardYear, table.Int, t.Len())
	for i, v := range t.Column(AwardDate).Values {
		if d, ok := v.(time.Time); ok {
			year.Values[i] = int64(d.Year())
		}
	}

	scheme := table.NewColumn(RecipientScheme, table.String, t.Len())
	for i, v := range t.Column(RecipientID).Values {
		scheme.Values[i], _ = orgid.ParseScheme(v)
	}

	if err := t.Set(year); err != nil {
		return nil, err
	}
	if err := t.Set(scheme); err != nil {
		return nil, err
	}
	return t, nil
}

// CleanRecipientIdentifiers picks the identifier used for lookups. An
// identifier in a recognised scheme is kept; otherwise one is built from the
// company number, then the charity number. The scheme column is then
// recomputed from the clean identifier where there is one, and from the
// original identifier elsewhere.
//
// Rows whose identifier is in another scheme and which carry no registration
// numbers end up with no clean identifier, so they are never looked up.
func CleanRecipientIdentifiers() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Clean recipient identifiers",
		Phase: pipeline.Enriching,
		Run:   cleanRecipientIdentifiers,
	}
}

func cellString(v any) string {
	s, _ := table.ToString(v).(string)
	return strings.TrimSpace(s)
}

func cleanRecipientIdentifiers(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	ids := t.Column(RecipientID)
	companies := t.Column(RecipientCompanyNumber)
	charities := t.Column(RecipientCharityNumber)

	clean := table.NewColumn(RecipientClean, table.String, t.Len())
	scheme := table.NewColumn(RecipientScheme, table.String, t.Len())

	for i := 0; i < t.Len(); i++ {
		naive, _ := orgid.ParseScheme(ids.Values[i])
		naiveScheme, _ := naive.(string)
		var id string

		if orgid.IsRecognised(naiveScheme) {
			id = cellString(ids.Values[i])
		}
		if id == "" && companies != nil {
			id = orgid.CompanyNumberToOrgID(cellString(companies.Values[i]))
		}
		if id == "" && charities != nil {
			id = orgid.CharityNumberToOrgID(cellString(charities.Values[i]))
		}

		scheme.Values[i] = naive
		if id != "" {
			clean.Values[i] = id
			scheme.Values[i] = orgid.Scheme(id)
		}
	}

	if err := t.Set(clean); err != nil {
		return nil, err
	}
	if err := t.Set(scheme); err != nil {
		return nil, err
	}
	return t, nil
}
