package stages

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"

	"grant-insights/internal/common/logging"
	"grant-insights/internal/lookup"
	"grant-insights/internal/orgid"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// companyCategories shortens the Companies House categories seen most often
// in grant data
var companyCategories = map[string]string{
	"PRI/LBG/NSC (Private, Limited by guarantee, no share capital, use of 'Limited' exemption)": "Company Limited by Guarantee",
	"PRI/LTD BY GUAR/NSC (Private, limited by guarantee, no share capital)":                    "Company Limited by Guarantee",
	"PRIV LTD SECT. 30 (Private limited company, section 30 of the Companies Act)":              "Private Limited Company",
}

type organisationRecord struct {
	ID             string `json:"id"`
	CharityNumber  any    `json:"charityNumber"`
	CompanyNumber  any    `json:"companyNumber"`
	DateRegistered any    `json:"dateRegistered"`
	DateRemoved    any    `json:"dateRemoved"`
	Address        *struct {
		PostalCode any `json:"postalCode"`
	} `json:"address"`
	LatestIncome            any    `json:"latestIncome"`
	OrganisationTypePrimary string `json:"organisationTypePrimary"`
}

type companyRecord struct {
	PrimaryTopic *struct {
		CompanyNumber     any    `json:"CompanyNumber"`
		IncorporationDate any    `json:"IncorporationDate"`
		DissolutionDate   any    `json:"DissolutionDate"`
		CompanyCategory   string `json:"CompanyCategory"`
		RegAddress        *struct {
			Postcode any `json:"Postcode"`
		} `json:"RegAddress"`
	} `json:"primaryTopic"`
}

// orgRow is one organisation in the merge table
type orgRow struct {
	id             string
	charityNumber  any
	companyNumber  any
	dateRegistered any
	dateRemoved    any
	postcode       any
	latestIncome   any
	orgType        any
}

// text turns blank or missing values into nil
func text(v any) any {
	s := cellString(v)
	if s == "" {
		return nil
	}
	return s
}

func date(v any, dayFirst bool) any {
	d, ok, err := table.ToTime(v, dayFirst)
	if err != nil || !ok {
		return nil
	}
	return d
}

func number(v any) any {
	f, ok, err := table.ToFloat(v)
	if err != nil || !ok {
		return nil
	}
	return f
}

func fromOrganisation(key string, raw []byte) (orgRow, error) {
	var rec organisationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return orgRow{}, err
	}
	row := orgRow{
		id:             key,
		charityNumber:  text(rec.CharityNumber),
		companyNumber:  text(rec.CompanyNumber),
		dateRegistered: date(rec.DateRegistered, false),
		dateRemoved:    date(rec.DateRemoved, false),
		latestIncome:   number(rec.LatestIncome),
		orgType:        text(orgid.OrgType(rec.ID, rec.OrganisationTypePrimary)),
	}
	if rec.Address != nil {
		row.postcode = text(rec.Address.PostalCode)
	}
	return row, nil
}

func fromCompany(key string, raw []byte) (orgRow, error) {
	var rec companyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return orgRow{}, err
	}
	row := orgRow{id: key}
	if c := rec.PrimaryTopic; c != nil {
		row.companyNumber = text(c.CompanyNumber)
		row.dateRegistered = date(c.IncorporationDate, true)
		row.dateRemoved = date(c.DissolutionDate, true)
		row.orgType = text(lo.ValueOr(companyCategories, c.CompanyCategory, c.CompanyCategory))
		if c.RegAddress != nil {
			row.postcode = text(c.RegAddress.Postcode)
		}
	}
	return row, nil
}

// scanRows reads the cached records of category whose key is in want
func scanRows(ctx context.Context, env *pipeline.Env, category lookup.Category, want map[string]struct{},
	parse func(key string, raw []byte) (orgRow, error)) ([]orgRow, error) {
	var rows []orgRow
	it := env.Lookup.Scan(ctx, category)
	for it.Next() {
		if _, ok := want[it.Key()]; !ok {
			continue
		}
		row, err := parse(it.Key(), it.Value())
		if err != nil {
			env.Logger.Warn("Skipping unreadable cached record",
				logging.String("category", string(category)),
				logging.String("key", it.Key()),
				logging.Err(err))
			continue
		}
		rows = append(rows, row)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// MergeCompanyAndCharityDetails joins the cached organisation and company
// records onto the grants by clean identifier. Organisation records win
// when both exist for an identifier.
func MergeCompanyAndCharityDetails() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Add charity and company details to data",
		Phase: pipeline.Enriching,
		Run:   mergeCompanyAndCharityDetails,
		Skip:  usesAdditionalData,
	}
}

func mergeCompanyAndCharityDetails(ctx context.Context, t *table.Table, env *pipeline.Env) (*table.Table, error) {
	want := lo.SliceToMap(t.DistinctStrings(RecipientClean), func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	charities, err := scanRows(ctx, env, lookup.Organisation, want, fromOrganisation)
	if err != nil {
		return nil, err
	}
	companies, err := scanRows(ctx, env, lookup.Company, want, fromCompany)
	if err != nil {
		return nil, err
	}
	rows := append(charities, companies...)
	env.Logger.Info("Merging organisation details",
		logging.Int("organisations", len(charities)),
		logging.Int("companies", len(companies)))

	orgs, err := orgTable(rows)
	if err != nil {
		return nil, err
	}
	if err := t.LeftJoin(RecipientClean, orgs, "orgid", OrgPrefix); err != nil {
		return nil, err
	}
	if err := t.Set(orgAge(t)); err != nil {
		return nil, err
	}
	return t, nil
}

func orgTable(rows []orgRow) (*table.Table, error) {
	n := len(rows)
	cols := []*table.Column{
		table.NewColumn("orgid", table.String, n),
		table.NewColumn("charity_number", table.String, n),
		table.NewColumn("company_number", table.String, n),
		table.NewColumn("date_registered", table.Time, n),
		table.NewColumn("date_removed", table.Time, n),
		table.NewColumn("postcode", table.String, n),
		table.NewColumn("latest_income", table.Float, n),
		table.NewColumn("org_type", table.String, n),
	}
	for i, r := range rows {
		for j, v := range []any{r.id, r.charityNumber, r.companyNumber, r.dateRegistered,
			r.dateRemoved, r.postcode, r.latestIncome, r.orgType} {
			cols[j].Values[i] = v
		}
	}
	return table.FromColumns(cols...)
}
