// Package indexkey encodes a table row's indexed columns into a single
// byte string whose lexical (bytes.Compare) order matches the SQL
// ordering of the original column values — the comparator every
// bptree.Tree uses is exactly bytes.Compare, so the codec carries all of
// the ordering semantics.
package indexkey

import (
	"encoding/binary"
	"math"

	"github.com/EasonMa1135/MiniSQL-Database-System/types"
)

// Encode packs vals (in index-column order, typed per cols) into a
// comparable key. NULL sorts before every non-NULL value in the same
// column position. Ints and floats are bias-shifted so their bit
// patterns compare the same way numerically as lexically; CHAR values
// are NUL-padded to the column's declared length, so they compare as
// unsigned bytes over that length and take a fixed width in the key.
func Encode(cols []types.Column, vals []types.Value) []byte {
	buf := make([]byte, 0, 8*len(vals))
	for i, v := range vals {
		if v.IsNull {
			buf = append(buf, 0x00)
			continue
		}
		buf = append(buf, 0x01)

		switch cols[i].Type {
		case types.ColumnTypeInt:
			// Big-endian, not serialize.PutUint32's little-endian: the whole
			// point of the bias shift below is that comparing these bytes
			// most-significant-byte-first agrees with numeric order, which
			// only holds if the most significant byte comes first.
			var ibuf [4]byte
			binary.BigEndian.PutUint32(ibuf[:], flipSignBit(uint32(v.Int)))
			buf = append(buf, ibuf[:]...)
		case types.ColumnTypeFloat:
			var fbuf [4]byte
			binary.BigEndian.PutUint32(fbuf[:], floatSortableBits(v.Float))
			buf = append(buf, fbuf[:]...)
		case types.ColumnTypeChar:
			field := make([]byte, cols[i].Length)
			copy(field, v.Char)
			buf = append(buf, field...)
		}
	}
	return buf
}

// flipSignBit maps a two's-complement int32's bit pattern to one that
// sorts correctly under unsigned byte comparison: flipping the sign bit
// puts all negatives below all non-negatives while preserving order
// within each half.
func flipSignBit(bits uint32) uint32 {
	return bits ^ 0x80000000
}

// floatSortableBits maps an IEEE-754 float32's bits to an order-preserving
// unsigned encoding: flip the sign bit for positive numbers, invert every
// bit for negative numbers.
func floatSortableBits(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&0x80000000 != 0 {
		return ^bits
	}
	return bits ^ 0x80000000
}
