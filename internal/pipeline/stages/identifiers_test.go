package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/table"
)

func TestAddExtraColumns(t *testing.T) {
	tbl := mustTable(t,
		&table.Column{Name: AwardDate, Kind: table.Time, Values: []any{day(2019, 1, 1), nil, day(2018, 3, 31), day(2020, 1, 1), day(2021, 1, 1)}},
		strCol(RecipientID, "GB-CHC-1234567", "360G-1234567", "", "GB-RC000123", "US-ABC"),
	)

	out, err := addExtraColumns(context.Background(), tbl, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{int64(2019), nil, int64(2018), int64(2020), int64(2021)}, out.Column(AwardYear).Values)
	assert.Equal(t, []any{"GB-CHC", "360G", "", "GB-RC000123", "US-ABC"}, out.Column(RecipientScheme).Values)
}

func cleanInput(t *testing.T) *table.Table {
	return mustTable(t,
		strCol(RecipientID, "GB-CHC-1234567", "GB-COH-12345", "360G-1234567", "abcdefgined",
			"scottish-charity", "ni-charity", "", "GB-RC000123", "US-ABC"),
		strCol(RecipientScheme, "GB-CHC", "GB-COH", "360G", "360G", "360G", "360G", "", "GB-RC000123", "US-ABC"),
		strCol(RecipientCompanyNumber, nil, nil, "987654", nil, nil, nil, nil, nil, nil),
		strCol(RecipientCharityNumber, nil, nil, nil, "123456", "SC12345", "NI12345", nil, nil, nil),
	)
}

func TestCleanRecipientIdentifiers(t *testing.T) {
	out, err := cleanRecipientIdentifiers(context.Background(), cleanInput(t), nil)
	require.NoError(t, err)

	var clean []string
	for _, v := range out.Column(RecipientClean).Values {
		if s, ok := v.(string); ok {
			clean = append(clean, s)
		}
	}
	assert.Equal(t, []string{"GB-CHC-1234567", "GB-COH-12345", "GB-COH-987654", "GB-CHC-123456",
		"GB-SC-SC12345", "GB-NIC-NI12345"}, clean)
	assert.Equal(t, []any{"GB-CHC", "GB-COH", "GB-COH", "GB-CHC", "GB-SC", "GB-NIC", "", "GB-RC000123", "US-ABC"},
		out.Column(RecipientScheme).Values)

	t.Run("rerun gives the same table", func(t *testing.T) {
		again, err := cleanRecipientIdentifiers(context.Background(), out.Clone(), nil)
		require.NoError(t, err)
		assert.True(t, out.Equal(again))
	})

	t.Run("without registration number columns", func(t *testing.T) {
		tbl := mustTable(t, strCol(RecipientID, "GB-SC-SC003558", "360G-abc", nil))
		tbl, err := addExtraColumns(context.Background(), withDates(t, tbl), nil)
		require.NoError(t, err)
		out, err := cleanRecipientIdentifiers(context.Background(), tbl, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"GB-SC-SC003558", nil, nil}, out.Column(RecipientClean).Values)
		assert.Equal(t, []any{"GB-SC", "360G", nil}, out.Column(RecipientScheme).Values)
	})
}

func withDates(t *testing.T, tbl *table.Table) *table.Table {
	t.Helper()
	require.NoError(t, tbl.Set(table.NewColumn(AwardDate, table.Time, tbl.Len())))
	return tbl
}
