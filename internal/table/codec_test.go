package table

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	awarded := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl, err := FromColumns(
		&Column{Name: "Identifier", Kind: String, Values: []any{"360G-1", nil}},
		&Column{Name: "Amount Awarded", Kind: Float, Values: []any{500.25, nil}},
		&Column{Name: "Award Date", Kind: Time, Values: []any{awarded, nil}},
		&Column{Name: ":Year", Kind: Int, Values: []any{int64(2019), nil}},
		&Column{Name: "__org_age", Kind: Duration, Values: []any{90 * 24 * time.Hour, nil}},
		&Column{Name: "__used_additional_data", Kind: Bool, Values: []any{true, nil}},
	)
	require.NoError(t, err)

	data, err := Encode(tbl)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(decoded))
	assert.Equal(t, tbl.ColumnNames(), decoded.ColumnNames())
	assert.Equal(t, 90*24*time.Hour, decoded.Value("__org_age", 0))
}

func TestCodec_EmptyTable(t *testing.T) {
	data, err := Encode(New(3))
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Len())
	assert.Empty(t, decoded.ColumnNames())
}

func TestCodec_NonFiniteFloatsAreMissing(t *testing.T) {
	tbl, err := FromColumns(
		&Column{Name: "Amount Awarded", Kind: Float, Values: []any{math.NaN(), math.Inf(1), math.Inf(-1), 10.0}},
	)
	require.NoError(t, err)

	data, err := Encode(tbl)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil, 10.0}, decoded.Column("Amount Awarded").Values)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not zstd"))
	assert.Error(t, err)
}
