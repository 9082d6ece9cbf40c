package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := FromColumns(
		&Column{Name: "Recipient Org:0:Identifier", Kind: String, Values: []any{"GB-CHC-1", "GB-COH-2", nil, "GB-CHC-1"}},
		&Column{Name: "Amount Awarded", Kind: Float, Values: []any{500.0, 12000000.0, nil, 10.0}},
	)
	require.NoError(t, err)
	return tbl
}

func TestFromColumns(t *testing.T) {
	tbl := sample(t)
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"Recipient Org:0:Identifier", "Amount Awarded"}, tbl.ColumnNames())

	_, err := FromColumns(NewColumn("a", String, 1), NewColumn("b", String, 2))
	assert.Error(t, err)

	_, err = FromColumns(NewColumn("a", String, 1), NewColumn("a", String, 1))
	assert.Error(t, err)
}

func TestTable_SetKeepsPosition(t *testing.T) {
	tbl := sample(t)
	require.NoError(t, tbl.Set(Fill("Recipient Org:0:Identifier", String, 4, "x")))

	assert.Equal(t, []string{"Recipient Org:0:Identifier", "Amount Awarded"}, tbl.ColumnNames())
	assert.Equal(t, "x", tbl.Value("Recipient Org:0:Identifier", 2))
	assert.Nil(t, tbl.Value("missing", 0))
	assert.Error(t, tbl.Set(NewColumn("short", String, 1)))
}

func TestTable_Rename(t *testing.T) {
	tbl := sample(t)
	require.NoError(t, tbl.Set(Fill("amount awarded", String, 4, "dup")))

	tbl.Rename(map[string]string{"amount awarded": "Amount Awarded"})

	assert.Equal(t, []string{"Recipient Org:0:Identifier", "Amount Awarded"}, tbl.ColumnNames())
	assert.Equal(t, "dup", tbl.Value("Amount Awarded", 0))

	tbl.Rename(map[string]string{"Amount Awarded": "a", "Recipient Org:0:Identifier": "b"})
	assert.Equal(t, []string{"b", "a"}, tbl.ColumnNames())
	assert.True(t, tbl.Has("a"))
	assert.False(t, tbl.Has("Amount Awarded"))
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := sample(t)
	clone := tbl.Clone()
	clone.Column("Amount Awarded").Values[0] = 1.0
	require.NoError(t, clone.Set(NewColumn("extra", String, 4)))

	assert.Equal(t, 500.0, tbl.Value("Amount Awarded", 0))
	assert.False(t, tbl.Has("extra"))
	assert.False(t, tbl.Equal(clone))
}

func TestTable_Distinct(t *testing.T) {
	tbl := sample(t)
	assert.Equal(t, []any{"GB-CHC-1", "GB-COH-2"}, tbl.Distinct("Recipient Org:0:Identifier"))
	assert.Equal(t, []string{"GB-CHC-1", "GB-COH-2"}, tbl.DistinctStrings("Recipient Org:0:Identifier"))
	assert.Nil(t, tbl.Distinct("nope"))
}

func TestTable_Row(t *testing.T) {
	row := sample(t).Row(1)
	assert.Equal(t, "GB-COH-2", row["Recipient Org:0:Identifier"])
	assert.Equal(t, 12000000.0, row["Amount Awarded"])
}

func TestTable_LeftJoin(t *testing.T) {
	tbl := sample(t)
	right, err := FromColumns(
		&Column{Name: "orgid", Kind: String, Values: []any{"GB-CHC-1", "GB-COH-2", "GB-CHC-1"}},
		&Column{Name: "org_type", Kind: String, Values: []any{"Registered Charity (E&W)", "Company", "later duplicate"}},
		&Column{Name: "latest_income", Kind: Float, Values: []any{1000.0, nil, 5.0}},
	)
	require.NoError(t, err)

	require.NoError(t, tbl.LeftJoin("Recipient Org:0:Identifier", right, "orgid", "__org_"))

	assert.Equal(t, []string{"Recipient Org:0:Identifier", "Amount Awarded", "__org_org_type", "__org_latest_income"}, tbl.ColumnNames())
	assert.Equal(t, []any{"Registered Charity (E&W)", "Company", nil, "Registered Charity (E&W)"}, tbl.Column("__org_org_type").Values)
	assert.Equal(t, Float, tbl.Column("__org_latest_income").Kind)
	assert.Equal(t, []any{1000.0, nil, nil, 1000.0}, tbl.Column("__org_latest_income").Values)

	// joining again replaces instead of duplicating
	require.NoError(t, tbl.LeftJoin("Recipient Org:0:Identifier", right, "orgid", "__org_"))
	assert.Len(t, tbl.ColumnNames(), 4)

	assert.Error(t, tbl.LeftJoin("nope", right, "orgid", "__org_"))
	assert.Error(t, tbl.LeftJoin("Recipient Org:0:Identifier", right, "nope", "__org_"))
}

func TestTable_Drop(t *testing.T) {
	tbl := sample(t)
	tbl.Drop("Recipient Org:0:Identifier", "unknown")
	assert.Equal(t, []string{"Amount Awarded"}, tbl.ColumnNames())
	assert.NotNil(t, tbl.Column("Amount Awarded"))
}

func TestTable_EqualTimes(t *testing.T) {
	utc := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := FromColumns(&Column{Name: "d", Kind: Time, Values: []any{utc}})
	b, _ := FromColumns(&Column{Name: "d", Kind: Time, Values: []any{utc.In(time.FixedZone("x", 3600))}})
	assert.True(t, a.Equal(b))
}

func TestKind_RoundTrip(t *testing.T) {
	for k := String; k <= Duration; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("decimal")
	assert.Error(t, err)
}
