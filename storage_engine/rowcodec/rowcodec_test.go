package rowcodec

import (
	"testing"

	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/stretchr/testify/require"
)

func schema() []types.Column {
	return []types.Column{
		{Name: "id", Type: types.ColumnTypeInt},
		{Name: "score", Type: types.ColumnTypeFloat, Nullable: true},
		{Name: "name", Type: types.ColumnTypeChar, Length: 10, Nullable: true},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{
		{Int: 42},
		{Float: 3.5},
		{Char: "bob"},
	}}

	data, err := Encode(cols, row)
	require.NoError(t, err)

	got, err := Decode(cols, data)
	require.NoError(t, err)
	require.Equal(t, row, got)
}

func TestEncodeDecodeRoundTripWithNulls(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{
		{Int: 7},
		{IsNull: true},
		{IsNull: true},
	}}

	data, err := Encode(cols, row)
	require.NoError(t, err)

	got, err := Decode(cols, data)
	require.NoError(t, err)
	require.True(t, got.Values[1].IsNull)
	require.True(t, got.Values[2].IsNull)
	require.Equal(t, int32(7), got.Values[0].Int)
}

func TestEncodeRejectsNullInNonNullableColumn(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{
		{IsNull: true},
		{IsNull: true},
		{IsNull: true},
	}}

	_, err := Encode(cols, row)
	require.Error(t, err)
}

func TestEncodeRejectsOversizedChar(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{
		{Int: 1},
		{IsNull: true},
		{Char: "this string is far too long for the column"},
	}}

	_, err := Encode(cols, row)
	require.Error(t, err)
}

func TestEncodeRejectsWrongValueCount(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{{Int: 1}}}

	_, err := Encode(cols, row)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	cols := schema()
	_, err := Decode(cols, []byte{0x00})
	require.Error(t, err)
}

func TestCharFieldTrimsTrailingZeroPadding(t *testing.T) {
	cols := schema()
	row := types.Row{Values: []types.Value{
		{Int: 1},
		{IsNull: true},
		{Char: "hi"},
	}}

	data, err := Encode(cols, row)
	require.NoError(t, err)

	got, err := Decode(cols, data)
	require.NoError(t, err)
	require.Equal(t, "hi", got.Values[2].Char)
}
