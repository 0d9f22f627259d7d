// Package rowcodec serializes a types.Row into the flat byte string a
// heap record holds, and back. A leading null-bitmap byte string (one
// bit per column) lets NULL skip its column's fixed-width field
// entirely, so a NULL CHAR costs nothing beyond its bitmap bit.
package rowcodec

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/serialize"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
)

func bitmapLen(numCols int) int {
	return (numCols + 7) / 8
}

// Encode packs row into cols' on-disk layout.
func Encode(cols []types.Column, row types.Row) ([]byte, error) {
	if len(row.Values) != len(cols) {
		return nil, errors.Wrapf(storageerrors.ErrSchemaViolation, "encode_row: got %d values, schema has %d columns", len(row.Values), len(cols))
	}

	bitmap := make([]byte, bitmapLen(len(cols)))
	buf := make([]byte, 0, 64)

	for i, col := range cols {
		v := row.Values[i]
		if v.IsNull {
			if !col.Nullable {
				return nil, errors.Wrapf(storageerrors.ErrSchemaViolation, "encode_row: column %q is not nullable", col.Name)
			}
			bitmap[i/8] |= 1 << (i % 8)
			continue
		}

		switch col.Type {
		case types.ColumnTypeInt:
			var b [4]byte
			serialize.PutInt32(b[:], v.Int)
			buf = append(buf, b[:]...)
		case types.ColumnTypeFloat:
			var b [4]byte
			serialize.PutFloat32(b[:], v.Float)
			buf = append(buf, b[:]...)
		case types.ColumnTypeChar:
			if len(v.Char) > int(col.Length) {
				return nil, errors.Wrapf(storageerrors.ErrSchemaViolation, "encode_row: column %q value too long", col.Name)
			}
			field := make([]byte, col.Length)
			copy(field, v.Char)
			buf = append(buf, field...)
		}
	}

	return append(bitmap, buf...), nil
}

// Decode unpacks data into a Row shaped like cols.
func Decode(cols []types.Column, data []byte) (types.Row, error) {
	bmLen := bitmapLen(len(cols))
	if len(data) < bmLen {
		return types.Row{}, errors.Wrap(storageerrors.ErrCorruption, "decode_row: record shorter than its null bitmap")
	}
	bitmap := data[:bmLen]
	off := bmLen

	row := types.Row{Values: make([]types.Value, len(cols))}
	for i, col := range cols {
		if bitmap[i/8]&(1<<(i%8)) != 0 {
			row.Values[i] = types.Value{IsNull: true}
			continue
		}

		switch col.Type {
		case types.ColumnTypeInt:
			if off+4 > len(data) {
				return types.Row{}, errors.Wrap(storageerrors.ErrCorruption, "decode_row: truncated int field")
			}
			row.Values[i] = types.Value{Int: serialize.Int32(data[off:])}
			off += 4
		case types.ColumnTypeFloat:
			if off+4 > len(data) {
				return types.Row{}, errors.Wrap(storageerrors.ErrCorruption, "decode_row: truncated float field")
			}
			row.Values[i] = types.Value{Float: serialize.Float32(data[off:])}
			off += 4
		case types.ColumnTypeChar:
			n := int(col.Length)
			if off+n > len(data) {
				return types.Row{}, errors.Wrap(storageerrors.ErrCorruption, "decode_row: truncated char field")
			}
			field := data[off : off+n]
			end := len(field)
			for end > 0 && field[end-1] == 0 {
				end--
			}
			row.Values[i] = types.Value{Char: string(field[:end])}
			off += n
		}
	}

	return row, nil
}
