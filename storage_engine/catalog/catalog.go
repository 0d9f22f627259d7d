package catalog

import (
	"sync"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/heap"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/serialize"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
)

// pager is the slice of the buffer pool the catalog's own record chain
// needs — identical to what heap.Table requires.
type pager interface {
	FetchPage(id uint32) (*page.Page, error)
	NewPage() (*page.Page, error)
	UnpinPage(id uint32, dirty bool) error
	DeletePage(id uint32) error
}

// entry is a table record plus the RowID it currently lives at in the
// catalog's own chain, so an update (e.g. adding an index) can be
// written back in place.
type entry struct {
	rowID  types.RowID
	record TableRecord
}

// Catalog is the database's directory of tables. It is itself stored as
// records in a dedicated heap chain, tagged page.TypeCatalog.
type Catalog struct {
	chain *heap.Table

	byName map[string]*entry

	mu sync.RWMutex
}

// Create starts a brand-new, empty catalog.
func Create(pool pager) (*Catalog, error) {
	chain, err := heap.CreateAs(pool, page.TypeCatalog)
	if err != nil {
		return nil, err
	}
	return &Catalog{chain: chain, byName: make(map[string]*entry)}, nil
}

// Open resumes a catalog whose chain already exists, scanning every
// record into memory. rootPageID is the chain's first page, recorded on
// the disk manager's meta page.
func Open(pool pager, rootPageID uint32) (*Catalog, error) {
	chain := heap.OpenAs(pool, rootPageID, page.TypeCatalog)
	cat := &Catalog{chain: chain, byName: make(map[string]*entry)}

	it, err := chain.NewIterator()
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
		if len(data) < 4 || serialize.Uint32(data) != catalogMagic {
			return nil, errors.Wrapf(storageerrors.ErrCorruption, "catalog: record %s has bad magic", rowID)
		}
		tr, _ := decodeTableRecord(data)
		cat.byName[tr.Name] = &entry{rowID: rowID, record: tr}
	}

	return cat, nil
}

func (c *Catalog) RootPageID() uint32 {
	return c.chain.FirstPageID()
}

// CreateTable registers a new table's schema and heap chain location.
func (c *Catalog) CreateTable(name string, schema types.Schema, firstPageID uint32) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[name]; exists {
		return errors.Wrapf(storageerrors.ErrSchemaViolation, "create_table: table %q already exists", name)
	}

	tr := TableRecord{Name: name, Schema: schema, FirstPageID: firstPageID}
	rowID, err := c.chain.InsertRow(encodeTableRecord(tr))
	if err != nil {
		return err
	}

	c.byName[name] = &entry{rowID: rowID, record: tr}
	return nil
}

// GetTable returns a copy of a table's catalog record.
func (c *Catalog) GetTable(name string) (TableRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byName[name]
	if !ok {
		return TableRecord{}, errors.Wrapf(storageerrors.ErrNotFound, "get_table: table %q not found", name)
	}
	return e.record, nil
}

// ListTables returns every table name currently registered.
func (c *Catalog) ListTables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}

// AddIndex registers a new index on an existing table and persists the
// updated table record.
func (c *Catalog) AddIndex(tableName string, idx IndexRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byName[tableName]
	if !ok {
		return errors.Wrapf(storageerrors.ErrNotFound, "add_index: table %q not found", tableName)
	}
	for _, existing := range e.record.Indexes {
		if existing.Name == idx.Name {
			return errors.Wrapf(storageerrors.ErrSchemaViolation, "add_index: index %q already exists on %q", idx.Name, tableName)
		}
	}

	e.record.Indexes = append(e.record.Indexes, idx)
	newRowID, err := c.chain.UpdateRow(e.rowID, encodeTableRecord(e.record))
	if err != nil {
		return err
	}
	e.rowID = newRowID
	return nil
}

// SetIndexRoot updates an existing index's root page, called whenever a
// split or root collapse moves the tree's root.
func (c *Catalog) SetIndexRoot(tableName, indexName string, root uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byName[tableName]
	if !ok {
		return errors.Wrapf(storageerrors.ErrNotFound, "set_index_root: table %q not found", tableName)
	}

	found := false
	for i := range e.record.Indexes {
		if e.record.Indexes[i].Name == indexName {
			e.record.Indexes[i].RootPage = root
			found = true
			break
		}
	}
	if !found {
		return errors.Wrapf(storageerrors.ErrNotFound, "set_index_root: index %q not found on %q", indexName, tableName)
	}

	newRowID, err := c.chain.UpdateRow(e.rowID, encodeTableRecord(e.record))
	if err != nil {
		return err
	}
	e.rowID = newRowID
	return nil
}

// DropTable removes a table's catalog entry. It does not reclaim the
// table's own heap/index pages — the caller (engine) is responsible for
// walking and freeing those before calling DropTable.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byName[name]
	if !ok {
		return errors.Wrapf(storageerrors.ErrNotFound, "drop_table: table %q not found", name)
	}
	if err := c.chain.DeleteRow(e.rowID); err != nil {
		return err
	}
	delete(c.byName, name)
	return nil
}
