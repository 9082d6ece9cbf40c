package stages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/source"
	"grant-insights/internal/table"
)

func TestLoad(t *testing.T) {
	b := newTestBed(t)
	csv := "Amount Awarded,Funding Org:0:Name,Award Date,Recipient Org:0:Name,Recipient Org:0:Identifier\n" +
		"500,Funder,2019-01-01,Org,GB-CHC-225922\n"

	t.Run("file", func(t *testing.T) {
		b.env.Input = source.FromFile("grants.csv", []byte(csv))
		tbl, err := load(context.Background(), nil, b.env)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Len())
		assert.True(t, tbl.Has(RecipientID))
	})

	t.Run("url downloads when contents are missing", func(t *testing.T) {
		b.env.Input = source.FromURL("https://example.org/data")
		b.env.Download = func(context.Context, string) ([]byte, string, error) {
			return []byte(csv), "text/csv; charset=utf-8", nil
		}
		tbl, err := load(context.Background(), nil, b.env)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Len())
	})

	t.Run("unknown type is an input error", func(t *testing.T) {
		b.env.Input = source.FromFile("grants.pdf", []byte(csv))
		_, err := load(context.Background(), nil, b.env)
		assert.True(t, errors.IsType(err, errors.ErrTypeInput))
	})

	t.Run("broken json is an input error", func(t *testing.T) {
		b.env.Input = source.FromFile("grants.json", []byte("{"))
		_, err := load(context.Background(), nil, b.env)
		assert.True(t, errors.IsType(err, errors.ErrTypeInput))
	})
}

func TestCheckColumnNames(t *testing.T) {
	tbl := mustTable(t,
		strCol("amount awarded", "1"),
		strCol("Funding Org:0:Name", "F"),
		strCol("AwardDate", "2019-01-01"),
		strCol("recipient org:0: name", "R"),
		strCol("Recipient Org:0:Identifier", "GB-CHC-1"),
		strCol("Description", "d"),
	)

	out, err := checkColumnNames(context.Background(), tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{AmountAwarded, FunderName, AwardDate, RecipientName, RecipientID, "Description"}, out.ColumnNames())
}

func TestCheckColumnNames_KeepsExistingColumns(t *testing.T) {
	tests := []struct {
		name      string
		cols      []*table.Column
		wantNames []string
		wantValue any
	}{
		{
			name:      "exact column wins",
			cols:      []*table.Column{strCol("amount awarded", "1"), strCol(AmountAwarded, "2")},
			wantNames: []string{"amount awarded", AmountAwarded},
			wantValue: "2",
		},
		{
			name:      "first near miss wins",
			cols:      []*table.Column{strCol("amount awarded", "1"), strCol("AMOUNT AWARDED", "2")},
			wantNames: []string{AmountAwarded, "AMOUNT AWARDED"},
			wantValue: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := checkColumnNames(context.Background(), mustTable(t, tt.cols...), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, out.ColumnNames())
			assert.Equal(t, tt.wantValue, out.Value(AmountAwarded, 0))

			encoded, err := table.Encode(out)
			require.NoError(t, err)
			decoded, err := table.Decode(encoded)
			require.NoError(t, err)
			assert.True(t, out.Equal(decoded))
		})
	}
}

func TestCheckColumnsExist(t *testing.T) {
	tbl := mustTable(t,
		strCol(AmountAwarded, "1"),
		strCol(FunderName, "F"),
		strCol(AwardDate, "2019-01-01"),
		strCol(RecipientName, "R"),
	)

	_, err := checkColumnsExist(context.Background(), tbl, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInput))
	assert.Equal(t, "Column Recipient Org:0:Identifier not found in data. Columns: [Amount Awarded, Funding Org:0:Name, Award Date, Recipient Org:0:Name]",
		errors.UserMessage(err))

	require.NoError(t, tbl.Set(strCol(RecipientID, nil)))
	_, err = checkColumnsExist(context.Background(), tbl, nil)
	assert.NoError(t, err, "a column of missing values still exists")
}

func TestCheckColumnTypes(t *testing.T) {
	tests := []struct {
		name    string
		amounts []any
		dates   []any
		wantErr bool
	}{
		{name: "valid", amounts: []any{"£1,250.50", "500", nil}, dates: []any{"2019-01-01", "2019-06-01T10:00:00Z", ""}},
		{name: "bad amount", amounts: []any{"lots", "500", nil}, dates: []any{"2019-01-01", nil, nil}, wantErr: true},
		{name: "nan amount", amounts: []any{"NaN", "500", nil}, dates: []any{"2019-01-01", nil, nil}, wantErr: true},
		{name: "infinite amount", amounts: []any{"1", "-Infinity", nil}, dates: []any{"2019-01-01", nil, nil}, wantErr: true},
		{name: "bad date", amounts: []any{"1", "2", "3"}, dates: []any{"yesterday", nil, nil}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustTable(t,
				strCol(AmountAwarded, tt.amounts...),
				strCol(FunderName, " Funder ", "Funder", nil),
				strCol(AwardDate, tt.dates...),
				strCol(RecipientName, "A", "B", "C"),
				&table.Column{Name: RecipientID, Kind: table.Float, Values: []any{225922.0, nil, 1.5}},
			)

			out, err := checkColumnTypes(context.Background(), tbl, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeInput))
				return
			}
			require.NoError(t, err)

			assert.Equal(t, []any{1250.5, 500.0, nil}, out.Column(AmountAwarded).Values)
			assert.Equal(t, table.Float, out.Column(AmountAwarded).Kind)
			assert.Equal(t, []any{"Funder", "Funder", nil}, out.Column(FunderName).Values)
			assert.Equal(t, []any{"225922", nil, "1.5"}, out.Column(RecipientID).Values)
			assert.Equal(t, table.Time, out.Column(AwardDate).Kind)
			assert.Equal(t, day(2019, 1, 1), out.Column(AwardDate).Values[0])
			assert.Equal(t, time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC), out.Column(AwardDate).Values[1])
			assert.Nil(t, out.Column(AwardDate).Values[2])

			again, err := checkColumnTypes(context.Background(), out.Clone(), nil)
			require.NoError(t, err)
			assert.True(t, out.Equal(again))
		})
	}
}
