package engine

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/bptree"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/catalog"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/heap"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/indexkey"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/rowcodec"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
)

// Table is a live handle onto one table's heap chain plus every index
// defined on it, kept consistent on every mutating operation.
type Table struct {
	e      *Engine
	name   string
	schema types.Schema
	heap   *heap.Table
	idx    map[string]*bptree.Tree // index name -> tree
}

// CreateTable defines a new table and its auto-created primary-key index.
func (e *Engine) CreateTable(name string, schema types.Schema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	h, err := heap.Create(e.pool)
	if err != nil {
		return nil, err
	}

	if err := e.cat.CreateTable(name, schema, h.FirstPageID()); err != nil {
		return nil, err
	}

	t := &Table{e: e, name: name, schema: schema, heap: h, idx: make(map[string]*bptree.Tree)}

	if pkIdx := schema.PrimaryKeyIndex(); pkIdx != -1 {
		if _, err := t.CreateIndex("pk_"+name, []string{schema.Columns[pkIdx].Name}, true); err != nil {
			return nil, err
		}
	}
	for _, col := range schema.Columns {
		if col.Unique && !col.PrimaryKey {
			if _, err := t.CreateIndex("uniq_"+name+"_"+col.Name, []string{col.Name}, true); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

// OpenTable resumes an existing table's heap chain and every index
// recorded for it in the catalog.
func (e *Engine) OpenTable(name string) (*Table, error) {
	rec, err := e.cat.GetTable(name)
	if err != nil {
		return nil, err
	}

	t := &Table{
		e:      e,
		name:   name,
		schema: rec.Schema,
		heap:   heap.Open(e.pool, rec.FirstPageID),
		idx:    make(map[string]*bptree.Tree),
	}

	for _, ir := range rec.Indexes {
		name := ir.Name
		onRoot := func(root uint32) error { return t.e.cat.SetIndexRoot(t.name, name, root) }
		t.idx[ir.Name] = bptree.Open(e.pool, ir.RootPage, ir.Unique, onRoot)
	}

	return t, nil
}

// CreateIndex builds a new index over columns (by name) and backfills it
// from every row currently in the table.
func (t *Table) CreateIndex(name string, columns []string, unique bool) (*bptree.Tree, error) {
	cols, err := t.resolveColumns(columns)
	if err != nil {
		return nil, err
	}

	rec := catalog.IndexRecord{Name: name, Unique: unique, Columns: columns}
	if err := t.e.cat.AddIndex(t.name, rec); err != nil {
		return nil, err
	}

	onRoot := func(root uint32) error {
		return t.e.cat.SetIndexRoot(t.name, name, root)
	}

	tree, err := bptree.Create(t.e.pool, unique, onRoot)
	if err != nil {
		return nil, err
	}
	t.idx[name] = tree

	it, err := t.heap.NewIterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		rowID, data, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row, err := rowcodec.Decode(t.schema.Columns, data)
		if err != nil {
			return nil, err
		}
		key := indexkey.Encode(cols, projectColumns(t.schema, columns, row))
		if err := tree.Insert(key, rowID); err != nil {
			return nil, err
		}
	}

	return tree, nil
}

func (t *Table) resolveColumns(names []string) ([]types.Column, error) {
	out := make([]types.Column, len(names))
	for i, n := range names {
		idx := t.schema.IndexOf(n)
		if idx == -1 {
			return nil, errors.Wrapf(storageerrors.ErrSchemaViolation, "unknown column %q", n)
		}
		out[i] = t.schema.Columns[idx]
	}
	return out, nil
}

func projectColumns(schema types.Schema, names []string, row types.Row) []types.Value {
	out := make([]types.Value, len(names))
	for i, n := range names {
		idx := schema.IndexOf(n)
		out[i] = row.Values[idx]
	}
	return out
}

// InsertRow appends row to the heap and maintains every index, rolling
// back the heap insert and the index entries already added if a unique
// index rejects the row.
func (t *Table) InsertRow(row types.Row) (types.RowID, error) {
	data, err := rowcodec.Encode(t.schema.Columns, row)
	if err != nil {
		return 0, err
	}

	rowID, err := t.heap.InsertRow(data)
	if err != nil {
		return 0, err
	}

	rec, err := t.e.cat.GetTable(t.name)
	if err != nil {
		t.heap.DeleteRow(rowID)
		return 0, err
	}

	type doneInsert struct {
		tree *bptree.Tree
		key  []byte
	}
	inserted := make([]doneInsert, 0, len(t.idx))
	for name, tree := range t.idx {
		cols, columns := t.indexColumns(rec, name)
		key := indexkey.Encode(cols, projectColumns(t.schema, columns, row))
		if err := tree.Insert(key, rowID); err != nil {
			for _, done := range inserted {
				done.tree.Delete(done.key)
			}
			t.heap.DeleteRow(rowID)
			return 0, err
		}
		inserted = append(inserted, doneInsert{tree: tree, key: key})
	}

	return rowID, nil
}

func (t *Table) indexColumns(rec catalog.TableRecord, indexName string) ([]types.Column, []string) {
	for _, ir := range rec.Indexes {
		if ir.Name == indexName {
			cols, _ := t.resolveColumns(ir.Columns)
			return cols, ir.Columns
		}
	}
	return nil, nil
}

// UpdateRow overwrites the row at id with newRow, keeping every index in
// step: each index's old-value entry is removed and its new-value entry
// inserted under whatever RowID the heap update settles on (unchanged if
// the new data fit in place, a fresh one if it didn't). If a unique
// index rejects one of the new entries, every index touched so far for
// this update is rolled back to point at newID (the only RowID holding
// live data at that point — id itself may already be tombstoned if the
// heap had to move the row), and the heap row at newID is overwritten
// back to oldRow's bytes so the heap and every index agree again.
func (t *Table) UpdateRow(id types.RowID, newRow types.Row) (types.RowID, error) {
	oldRow, err := t.GetRow(id)
	if err != nil {
		return 0, err
	}

	oldData, err := rowcodec.Encode(t.schema.Columns, oldRow)
	if err != nil {
		return 0, err
	}

	data, err := rowcodec.Encode(t.schema.Columns, newRow)
	if err != nil {
		return 0, err
	}

	rec, err := t.e.cat.GetTable(t.name)
	if err != nil {
		return 0, err
	}

	newID, err := t.heap.UpdateRow(id, data)
	if err != nil {
		return 0, err
	}

	type indexEdit struct {
		tree   *bptree.Tree
		oldKey []byte
		newKey []byte
	}
	edits := make([]indexEdit, 0, len(t.idx))
	for name, tree := range t.idx {
		cols, columns := t.indexColumns(rec, name)
		edits = append(edits, indexEdit{
			tree:   tree,
			oldKey: indexkey.Encode(cols, projectColumns(t.schema, columns, oldRow)),
			newKey: indexkey.Encode(cols, projectColumns(t.schema, columns, newRow)),
		})
	}

	applied := 0
	for _, e := range edits {
		e.tree.Delete(e.oldKey)
		if err := e.tree.Insert(e.newKey, newID); err != nil {
			for _, done := range edits[:applied] {
				done.tree.Delete(done.newKey)
				done.tree.Insert(done.oldKey, newID)
			}
			e.tree.Insert(e.oldKey, newID)
			t.heap.UpdateRow(newID, oldData)
			return 0, err
		}
		applied++
	}

	return newID, nil
}

func (t *Table) GetRow(id types.RowID) (types.Row, error) {
	data, err := t.heap.GetRow(id)
	if err != nil {
		return types.Row{}, err
	}
	return rowcodec.Decode(t.schema.Columns, data)
}

func (t *Table) DeleteRow(id types.RowID) error {
	row, err := t.GetRow(id)
	if err != nil {
		return err
	}

	rec, _ := t.e.cat.GetTable(t.name)
	for name, tree := range t.idx {
		cols, columns := t.indexColumns(rec, name)
		key := indexkey.Encode(cols, projectColumns(t.schema, columns, row))
		tree.Delete(key)
	}

	return t.heap.DeleteRow(id)
}

// Scan returns an iterator over every live row in the table.
func (t *Table) Scan() (*heap.RowIterator, error) {
	return t.heap.NewIterator()
}

func (t *Table) Index(name string) (*bptree.Tree, bool) {
	tree, ok := t.idx[name]
	return tree, ok
}
