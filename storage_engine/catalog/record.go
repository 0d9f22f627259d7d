// Package catalog is the database's table of tables: for every table it
// records its schema, its heap chain's first page, and the B+Tree root
// of every index defined on it. The catalog persists itself as ordinary
// records in its own slotted-page chain (page.TypeCatalog), reusing the
// heap package's record format rather than inventing a second one.
package catalog

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/serialize"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"
)

// catalogMagic stamps the first 4 bytes of every encoded catalog record,
// distinguishing a catalog entry from stray bytes left by a truncated
// write.
const catalogMagic = 0x02020202

// IndexRecord describes one index defined on a table.
type IndexRecord struct {
	Name     string
	Unique   bool
	Columns  []string // indexed column names, in key order
	RootPage uint32
}

// TableRecord is one table's full catalog entry.
type TableRecord struct {
	Name        string
	Schema      types.Schema
	FirstPageID uint32
	Indexes     []IndexRecord
}

func encodeTableRecord(tr TableRecord) []byte {
	buf := make([]byte, 0, 256)

	var head [4]byte
	serialize.PutUint32(head[:], catalogMagic)
	buf = append(buf, head[:]...)

	buf = appendString(buf, tr.Name)

	var fp [4]byte
	serialize.PutUint32(fp[:], tr.FirstPageID)
	buf = append(buf, fp[:]...)

	var ncols [2]byte
	serialize.PutUint16(ncols[:], uint16(len(tr.Schema.Columns)))
	buf = append(buf, ncols[:]...)
	for _, c := range tr.Schema.Columns {
		buf = appendString(buf, c.Name)
		buf = append(buf, byte(c.Type), c.Length, boolByte(c.Nullable), boolByte(c.Unique), boolByte(c.PrimaryKey))
	}

	var nidx [2]byte
	serialize.PutUint16(nidx[:], uint16(len(tr.Indexes)))
	buf = append(buf, nidx[:]...)
	for _, idx := range tr.Indexes {
		buf = appendString(buf, idx.Name)
		buf = append(buf, boolByte(idx.Unique))
		var root [4]byte
		serialize.PutUint32(root[:], idx.RootPage)
		buf = append(buf, root[:]...)
		var ncol [2]byte
		serialize.PutUint16(ncol[:], uint16(len(idx.Columns)))
		buf = append(buf, ncol[:]...)
		for _, col := range idx.Columns {
			buf = appendString(buf, col)
		}
	}

	return buf
}

func decodeTableRecord(buf []byte) (TableRecord, int) {
	off := 4 // skip magic — caller is assumed to have validated it
	var tr TableRecord

	tr.Name, off = readString(buf, off)
	tr.FirstPageID = serialize.Uint32(buf[off:])
	off += 4

	numCols := int(serialize.Uint16(buf[off:]))
	off += 2
	tr.Schema.Columns = make([]types.Column, numCols)
	for i := 0; i < numCols; i++ {
		var name string
		name, off = readString(buf, off)
		colType := types.ColumnType(buf[off])
		length := buf[off+1]
		nullable := buf[off+2] != 0
		unique := buf[off+3] != 0
		pk := buf[off+4] != 0
		off += 5
		tr.Schema.Columns[i] = types.Column{
			Name: name, Type: colType, Length: length,
			Nullable: nullable, Unique: unique, PrimaryKey: pk,
		}
	}

	numIdx := int(serialize.Uint16(buf[off:]))
	off += 2
	tr.Indexes = make([]IndexRecord, numIdx)
	for i := 0; i < numIdx; i++ {
		var ir IndexRecord
		ir.Name, off = readString(buf, off)
		ir.Unique = buf[off] != 0
		off++
		ir.RootPage = serialize.Uint32(buf[off:])
		off += 4
		numIdxCols := int(serialize.Uint16(buf[off:]))
		off += 2
		ir.Columns = make([]string, numIdxCols)
		for j := 0; j < numIdxCols; j++ {
			ir.Columns[j], off = readString(buf, off)
		}
		tr.Indexes[i] = ir
	}

	return tr, off
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	serialize.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, []byte(s)...)
}

func readString(buf []byte, off int) (string, int) {
	n := int(serialize.Uint16(buf[off:]))
	off += 2
	return string(buf[off : off+n]), off + n
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
