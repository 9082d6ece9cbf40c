package stages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/table"
)

func TestAddExtraFieldsExternal(t *testing.T) {
	year := 365 * 24 * time.Hour
	tbl := mustTable(t,
		&table.Column{Name: AmountAwarded, Kind: table.Float, Values: []any{500.0, 12000000.0, 0.0, nil, 501.0}},
		&table.Column{Name: OrgLatestIncome, Kind: table.Float, Values: []any{0.0, 10000.0, 10001.0, nil, 2e7}},
		&table.Column{Name: OrgAge, Kind: table.Duration, Values: []any{year / 2, year, 30 * year, nil, 2 * year}},
	)

	out, err := addExtraFieldsExternal(context.Background(), tbl, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"Under £500", "Over £1m", nil, nil, "£500 - £1k"}, out.Column(AmountBands).Values)
	assert.Equal(t, []any{"Under £10k", "Under £10k", "£10k - £100k", nil, "Over £10m"}, out.Column(OrgIncomeBands).Values)
	assert.Equal(t, []any{"Under 1 year", "Under 1 year", "Over 25 years", nil, "1-2 years"}, out.Column(OrgAgeBands).Values)
	assert.Equal(t, []any{DefaultProgramme, DefaultProgramme, DefaultProgramme, DefaultProgramme, DefaultProgramme},
		out.Column(GrantProgramme).Values)

	t.Run("existing programme is kept", func(t *testing.T) {
		tbl := mustTable(t,
			&table.Column{Name: AmountAwarded, Kind: table.Float, Values: []any{1.0}},
			strCol(GrantProgramme, "Main"),
		)
		out, err := addExtraFieldsExternal(context.Background(), tbl, nil)
		require.NoError(t, err)
		assert.Equal(t, "Main", out.Value(GrantProgramme, 0))
		assert.False(t, out.Has(OrgIncomeBands))
	})
}

func TestMapAdditionalDataFields(t *testing.T) {
	b := newTestBed(t)
	tbl := mustTable(t,
		&table.Column{Name: AwardDate, Kind: table.Time, Values: []any{day(2020, 1, 1), nil}},
		strCol("additional_data.recipientOrgInfos.0.dateRegistered", "2010-01-01", "garbage"),
		&table.Column{Name: "additional_data.recipientOrgInfos.0.latestIncome", Kind: table.String, Values: []any{"12,000", "n/a"}},
		strCol("additional_data.recipientOrganizationLocation.rgn_name", "London", nil),
	)

	out, err := mapAdditionalDataFields(context.Background(), tbl, b.env)
	require.NoError(t, err)

	assert.True(t, usesAdditionalData(out))
	assert.Equal(t, []any{"London", nil}, out.Column(GeoPrefix+"rgn").Values)
	assert.Equal(t, []any{12000.0, nil}, out.Column(OrgLatestIncome).Values)
	assert.Equal(t, []any{day(2010, 1, 1), nil}, out.Column(OrgDateRegistered).Values)
	assert.Equal(t, day(2020, 1, 1).Sub(day(2010, 1, 1)), out.Value(OrgAge, 0))
	assert.Nil(t, out.Value(OrgAge, 1))

	t.Run("plain datasets are left alone", func(t *testing.T) {
		tbl := mustTable(t, strCol(RecipientID, "GB-CHC-1"))
		out, err := mapAdditionalDataFields(context.Background(), tbl, b.env)
		require.NoError(t, err)
		assert.False(t, usesAdditionalData(out))
		assert.Equal(t, []string{RecipientID}, out.ColumnNames())
	})
}
