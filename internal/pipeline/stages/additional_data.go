package stages

import (
	"context"
	"time"

	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// datastoreFields maps the additional_data columns of 360Giving DataStore
// downloads onto the columns the lookup stages would otherwise produce
var datastoreFields = []struct{ from, to string }{
	{"additional_data.recipientOrgInfos.0.charityNumber", OrgPrefix + "charity_number"},
	{"additional_data.recipientOrgInfos.0.companyNumber", OrgPrefix + "company_number"},
	{"additional_data.recipientOrgInfos.0.dateRegistered", OrgDateRegistered},
	{"additional_data.recipientOrgInfos.0.dateRemoved", OrgDateRemoved},
	{"additional_data.recipientOrgInfos.0.postalCode", OrgPostcode},
	{"additional_data.recipientOrgInfos.0.latestIncome", OrgLatestIncome},
	{"additional_data.recipientOrgInfos.0.organisationTypePrimary", OrgType},
	{"additional_data.recipientOrganizationLocation.ctry_name", GeoPrefix + "ctry"},
	{"additional_data.recipientOrganizationLocation.cty_name", GeoPrefix + "cty"},
	{"additional_data.recipientOrganizationLocation.laua_name", GeoPrefix + "laua"},
	{"additional_data.recipientOrganizationLocation.pcon_name", GeoPrefix + "pcon"},
	{"additional_data.recipientOrganizationLocation.rgn_name", GeoPrefix + "rgn"},
	{"additional_data.recipientOrganizationLocation.imd", GeoPrefix + "imd"},
	{"additional_data.recipientOrganizationLocation.ru11ind", GeoPrefix + "ru11ind"},
	{"additional_data.recipientOrganizationLocation.oac11", GeoPrefix + "oac11"},
	{"additional_data.locationLookup.0.latitude", GeoPrefix + "lat"},
	{"additional_data.locationLookup.0.longitude", GeoPrefix + "long"},
}

// MapAdditionalDataFields copies DataStore enrichment into the organisation
// and geography columns. When any is found the dataset is marked and the
// lookup stages skip.
func MapAdditionalDataFields() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Map additional data fields from the DataStore to the insights fields",
		Phase: pipeline.Enriching,
		Run:   mapAdditionalDataFields,
	}
}

func mapAdditionalDataFields(_ context.Context, t *table.Table, _ *pipeline.Env) (*table.Table, error) {
	used := false
	for _, f := range datastoreFields {
		src := t.Column(f.from)
		if src == nil {
			continue
		}
		used = true

		dst := &table.Column{Name: f.to, Kind: src.Kind, Values: append([]any(nil), src.Values...)}
		switch f.to {
		case OrgDateRegistered, OrgDateRemoved:
			dst = toTimeColumn(f.to, src.Values, false)
		case OrgLatestIncome:
			dst = toFloatColumn(f.to, src.Values)
		}
		if err := t.Set(dst); err != nil {
			return nil, err
		}
	}
	if !used {
		return t, nil
	}

	if err := t.Set(table.Fill(UsedAdditionalData, table.Bool, t.Len(), true)); err != nil {
		return nil, err
	}
	if t.Has(OrgDateRegistered) {
		if err := t.Set(orgAge(t)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// usesAdditionalData is the Skip of every lookup stage
func usesAdditionalData(t *table.Table) bool {
	return t.Has(UsedAdditionalData)
}

// toTimeColumn parses values as dates; unparseable values become missing
func toTimeColumn(name string, values []any, dayFirst bool) *table.Column {
	out := table.NewColumn(name, table.Time, len(values))
	for i, v := range values {
		if d, ok, err := table.ToTime(v, dayFirst); err == nil && ok {
			out.Values[i] = d
		}
	}
	return out
}

func toFloatColumn(name string, values []any) *table.Column {
	out := table.NewColumn(name, table.Float, len(values))
	for i, v := range values {
		if f, ok, err := table.ToFloat(v); err == nil && ok {
			out.Values[i] = f
		}
	}
	return out
}

// orgAge is the organisation's age when the grant was awarded. Rows without
// an award date or a registration date are missing.
func orgAge(t *table.Table) *table.Column {
	age := table.NewColumn(OrgAge, table.Duration, t.Len())
	registered := t.Column(OrgDateRegistered)
	awarded := t.Column(AwardDate)
	if registered == nil || awarded == nil {
		return age
	}
	for i, v := range registered.Values {
		reg, ok := v.(time.Time)
		if !ok {
			continue
		}
		if d, ok := awarded.Values[i].(time.Time); ok {
			age.Values[i] = d.Sub(reg)
		}
	}
	return age
}
