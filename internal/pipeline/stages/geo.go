package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"grant-insights/internal/clients"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/lookup"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// FetchPostcodes settles on one postcode per grant, the recipient's own or
// else the one from its organisation record, and fetches any not cached
func FetchPostcodes() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Look up postcode data",
		Phase: pipeline.Enriching,
		Run:   fetchPostcodes,
		Skip:  usesAdditionalData,
	}
}

// normalisePostcode upper-cases and collapses whitespace
func normalisePostcode(v any) any {
	s := strings.ToUpper(strings.Join(strings.Fields(cellString(v)), " "))
	if s == "" {
		return nil
	}
	return s
}

func fetchPostcodes(ctx context.Context, t *table.Table, env *pipeline.Env) (*table.Table, error) {
	postcodes := table.NewColumn(RecipientPostcode, table.String, t.Len())
	own := t.Column(RecipientPostcode)
	org := t.Column(OrgPostcode)
	for i := range postcodes.Values {
		var pc any
		if own != nil {
			pc = normalisePostcode(own.Values[i])
		}
		if pc == nil && org != nil {
			pc = normalisePostcode(org.Values[i])
		}
		postcodes.Values[i] = pc
	}
	if err := t.Set(postcodes); err != nil {
		return nil, err
	}

	if err := fetchMissing(ctx, env, lookup.Postcode, env.Postcodes, t.DistinctStrings(RecipientPostcode)); err != nil {
		return nil, err
	}
	return t, nil
}

// MergeGeoData joins the cached postcode attributes onto the grants, with
// area codes replaced by their names
func MergeGeoData() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Add geo data",
		Phase: pipeline.Enriching,
		Run:   mergeGeoData,
		Skip:  usesAdditionalData,
	}
}

type postcodeRecord struct {
	Data struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

// cleanAreaName drops pseudo-code markers and the placeholder codes used for
// areas that do not apply (e.g. counties outside England). N99999999 is the
// placeholder for Northern Ireland.
func cleanAreaName(s string) any {
	s = strings.TrimSpace(strings.ReplaceAll(s, "(pseudo)", ""))
	switch {
	case s == "N99999999":
		return "Northern Ireland"
	case strings.HasSuffix(s, "99999999"), s == "":
		return nil
	}
	return s
}

func mergeGeoData(ctx context.Context, t *table.Table, env *pipeline.Env) (*table.Table, error) {
	want := lo.SliceToMap(t.DistinctStrings(RecipientPostcode), func(pc string) (string, struct{}) {
		return pc, struct{}{}
	})

	var keys []string
	var attrs []map[string]any
	it := env.Lookup.Scan(ctx, lookup.Postcode)
	for it.Next() {
		if _, ok := want[it.Key()]; !ok {
			continue
		}
		var rec postcodeRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			env.Logger.Warn("Skipping unreadable cached postcode", logging.String("key", it.Key()), logging.Err(err))
			continue
		}
		keys = append(keys, it.Key())
		attrs = append(attrs, rec.Data.Attributes)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	cols := []*table.Column{{Name: "postcode", Kind: table.String, Values: lo.ToAnySlice(keys)}}
	for _, field := range clients.PostcodeFields {
		col, err := areaColumn(ctx, env, field, attrs)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	geo, err := table.FromColumns(cols...)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("Merging postcode details", logging.Int("postcodes", len(keys)))

	if err := t.LeftJoin(RecipientPostcode, geo, "postcode", GeoPrefix); err != nil {
		return nil, err
	}
	return t, nil
}

// areaColumn builds the column for one postcode attribute. Numeric
// attributes (coordinates, deprivation rank) stay numbers; codes are
// resolved to names, keeping the code when no name is known.
func areaColumn(ctx context.Context, env *pipeline.Env, field string, attrs []map[string]any) (*table.Column, error) {
	numeric := true
	for _, a := range attrs {
		switch a[field].(type) {
		case nil, float64:
		default:
			numeric = false
		}
	}

	if numeric {
		col := table.NewColumn(field, table.Float, len(attrs))
		for i, a := range attrs {
			col.Values[i] = a[field]
		}
		return col, nil
	}

	col := table.NewColumn(field, table.String, len(attrs))
	for i, a := range attrs {
		code := cellString(a[field])
		if code == "" {
			continue
		}
		name := code
		if env.Geocodes != nil {
			var err error
			if name, err = env.Geocodes.Name(ctx, field, code); err != nil {
				return nil, err
			}
		}
		col.Values[i] = cleanAreaName(name)
	}
	return col, nil
}
