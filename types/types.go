// Package types holds the data-model primitives shared across the storage
// core: column/schema definitions, the typed Row representation and the
// stable RowID that a record heap hands back on insert.
package types

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
)

// ColumnType is the type code stored in a catalog page per spec: 1=INT,
// 2=FLOAT, 3=CHAR(n).
type ColumnType uint8

const (
	ColumnTypeInt ColumnType = 1
	ColumnTypeFloat ColumnType = 2
	ColumnTypeChar ColumnType = 3
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeInt:
		return "INT"
	case ColumnTypeFloat:
		return "FLOAT"
	case ColumnTypeChar:
		return "CHAR"
	default:
		return "UNKNOWN"
	}
}

// MaxColumns is the maximum number of columns a schema may declare.
const MaxColumns = 32

// MaxColumnNameLen bounds a column name's on-disk length.
const MaxColumnNameLen = 64

// Column describes one field of a table's schema.
type Column struct {
	Name      string
	Type      ColumnType
	Length    uint8 // meaningful only for CHAR; 1..255
	Nullable  bool
	Unique    bool
	PrimaryKey bool
}

// Schema is the ordered sequence of a table's columns.
type Schema struct {
	Columns []Column
}

// IndexOf returns the ordinal of the named column, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// PrimaryKeyIndex returns the ordinal of the primary-key column, or -1 if
// the schema has none. At most one column may be marked primary key.
func (s Schema) PrimaryKeyIndex() int {
	for i, c := range s.Columns {
		if c.PrimaryKey {
			return i
		}
	}
	return -1
}

// Validate enforces the schema-level invariants from the data model: at
// most MaxColumns columns, at most one primary key (implicitly unique and
// not nullable), CHAR lengths in [1,255], column names within the size
// budget.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return errors.Wrap(storageerrors.ErrSchemaViolation, "schema must declare at least one column")
	}
	if len(s.Columns) > MaxColumns {
		return errors.Wrapf(storageerrors.ErrSchemaViolation, "schema declares %d columns, max is %d", len(s.Columns), MaxColumns)
	}
	pkCount := 0
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if len(c.Name) == 0 || len(c.Name) > MaxColumnNameLen {
			return errors.Wrapf(storageerrors.ErrSchemaViolation, "column name %q exceeds %d bytes", c.Name, MaxColumnNameLen)
		}
		if seen[c.Name] {
			return errors.Wrapf(storageerrors.ErrSchemaViolation, "duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Type == ColumnTypeChar && (c.Length < 1 || c.Length > 255) {
			return errors.Wrapf(storageerrors.ErrSchemaViolation, "column %q: CHAR length must be in [1,255], got %d", c.Name, c.Length)
		}
		if c.PrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return errors.Wrapf(storageerrors.ErrSchemaViolation, "schema declares %d primary keys, at most one is allowed", pkCount)
	}
	return nil
}

// Value is a single typed field value. Exactly one of Int/Float/Char is
// meaningful, selected by the owning Column's Type; IsNull short-circuits
// both when the field is NULL.
type Value struct {
	IsNull bool
	Int    int32
	Float  float32
	Char   string
}

// Row is an ordered sequence of field values matching a Schema's column
// order.
type Row struct {
	Values []Value
}

func (r Row) Clone() Row {
	out := make([]Value, len(r.Values))
	copy(out, r.Values)
	return Row{Values: out}
}
