package heap

import (
	"sync"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// pager is the slice of the buffer pool a Table needs.
type pager interface {
	FetchPage(id uint32) (*page.Page, error)
	NewPage() (*page.Page, error)
	UnpinPage(id uint32, dirty bool) error
	DeletePage(id uint32) error
}

// Table is one table's record heap: a doubly-linked chain of heap pages
// reachable from firstPageID. The chain's head page ID is the table's only
// persistent state outside its own pages — the catalog stores it and
// hands it back to Open.
type Table struct {
	pool pager

	pageType    page.Type
	firstPageID uint32
	lastPageID  uint32 // next-fit cache: where the last insert succeeded

	mu sync.Mutex
}

// Create allocates a table's first (empty) heap page and returns a Table
// positioned at it.
func Create(pool pager) (*Table, error) {
	return CreateAs(pool, page.TypeHeapData)
}

// CreateAs is Create with an explicit page type — the catalog's own
// record chain reuses this same slotted-page format under
// page.TypeCatalog instead of page.TypeHeapData.
func CreateAs(pool pager, pageType page.Type) (*Table, error) {
	pg, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	InitAs(pg, pageType)
	id := pg.ID
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &Table{pool: pool, pageType: pageType, firstPageID: id, lastPageID: id}, nil
}

// Open resumes a table whose chain already exists on disk, given the
// first page ID recorded in the catalog.
func Open(pool pager, firstPageID uint32) *Table {
	return OpenAs(pool, firstPageID, page.TypeHeapData)
}

// OpenAs is Open with an explicit page type, for the catalog's chain.
func OpenAs(pool pager, firstPageID uint32, pageType page.Type) *Table {
	return &Table{pool: pool, pageType: pageType, firstPageID: firstPageID, lastPageID: firstPageID}
}

func (t *Table) FirstPageID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstPageID
}

const maxRecordSize = page.Size - HeaderSize - SlotSize

// fitsWithCompaction reports whether pg has room for a record of size
// needed, compacting away tombstone fragmentation first if the page's
// raw FreeSpace falls short but it's carrying dead slots that might
// free up enough contiguous space.
func fitsWithCompaction(pg *page.Page, needed int) bool {
	if FreeSpace(pg) >= needed {
		return true
	}
	if NumRowsFree(pg) == 0 {
		return false
	}
	pg.Lock()
	CompactPage(pg)
	pg.Unlock()
	return FreeSpace(pg) >= needed
}

// InsertRow appends data as a new record and returns its RowID. It tries
// the page that satisfied the previous insert first (next-fit), then
// walks the chain from the head, and only appends a fresh page once every
// existing page is full.
func (t *Table) InsertRow(data []byte) (types.RowID, error) {
	if len(data) == 0 || len(data) > maxRecordSize {
		return 0, errors.Wrapf(storageerrors.ErrInvariantViolation, "insert_row: record size %d exceeds max %d", len(data), maxRecordSize)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	needed := len(data) + SlotSize

	if pg, err := t.pool.FetchPage(t.lastPageID); err == nil {
		if fitsWithCompaction(pg, needed) {
			slot, err := InsertRecord(pg, data)
			id := pg.ID
			t.pool.UnpinPage(id, true)
			if err != nil {
				return 0, err
			}
			return types.NewRowID(id, uint32(slot)), nil
		}
		t.pool.UnpinPage(pg.ID, false)
	}

	pageID := t.firstPageID
	for {
		pg, err := t.pool.FetchPage(pageID)
		if err != nil {
			return 0, err
		}

		if fitsWithCompaction(pg, needed) {
			slot, err := InsertRecord(pg, data)
			id := pg.ID
			t.pool.UnpinPage(id, true)
			if err != nil {
				return 0, err
			}
			t.lastPageID = id
			return types.NewRowID(id, uint32(slot)), nil
		}

		next := NextPageID(pg)
		t.pool.UnpinPage(pg.ID, false)

		if next == NoPage {
			break
		}
		pageID = next
	}

	newPg, err := t.pool.NewPage()
	if err != nil {
		return 0, err
	}
	InitAs(newPg, t.pageType)
	newID := newPg.ID
	SetPrevPageID(newPg, pageID)

	slot, err := InsertRecord(newPg, data)
	if err != nil {
		t.pool.UnpinPage(newID, true)
		return 0, err
	}
	t.pool.UnpinPage(newID, true)

	tailPg, err := t.pool.FetchPage(pageID)
	if err != nil {
		return 0, err
	}
	SetNextPageID(tailPg, newID)
	t.pool.UnpinPage(pageID, true)

	t.lastPageID = newID
	log.WithField("page", newID).Debug("heap: appended new page to chain")

	return types.NewRowID(newID, uint32(slot)), nil
}

func (t *Table) GetRow(id types.RowID) ([]byte, error) {
	pg, err := t.pool.FetchPage(id.PageID())
	if err != nil {
		return nil, err
	}
	defer t.pool.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()
	return GetRecord(pg, uint16(id.Slot()))
}

func (t *Table) DeleteRow(id types.RowID) error {
	pg, err := t.pool.FetchPage(id.PageID())
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(pg.ID, true)

	pg.Lock()
	defer pg.Unlock()
	return DeleteRecord(pg, uint16(id.Slot()))
}

// UpdateRow overwrites in place when possible. If the new value doesn't
// fit the row's original slot, it is tombstoned and re-inserted as a new
// RowID, which the caller must use to update any index entries.
func (t *Table) UpdateRow(id types.RowID, newData []byte) (types.RowID, error) {
	pg, err := t.pool.FetchPage(id.PageID())
	if err != nil {
		return 0, err
	}

	pg.Lock()
	movedAway, err := UpdateRecord(pg, uint16(id.Slot()), newData)
	pg.Unlock()

	if err != nil {
		t.pool.UnpinPage(pg.ID, false)
		return 0, err
	}
	if err := t.pool.UnpinPage(pg.ID, true); err != nil {
		return 0, err
	}

	if !movedAway {
		return id, nil
	}
	return t.InsertRow(newData)
}

// CompactPage reclaims tombstone space on one page of the chain.
func (t *Table) CompactPage(pageID uint32) error {
	pg, err := t.pool.FetchPage(pageID)
	if err != nil {
		return err
	}
	pg.Lock()
	CompactPage(pg)
	pg.Unlock()
	return t.pool.UnpinPage(pageID, true)
}

// RowIterator walks every live row in a table's heap, page by page.
type RowIterator struct {
	t          *Table
	pageID     uint32
	slot       uint16
	pg         *page.Page
	slotCount  uint16
}

func (t *Table) NewIterator() (*RowIterator, error) {
	it := &RowIterator{t: t, pageID: t.FirstPageID()}
	if err := it.loadPage(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *RowIterator) loadPage() error {
	if it.pg != nil {
		it.t.pool.UnpinPage(it.pg.ID, false)
		it.pg = nil
	}
	if it.pageID == NoPage {
		return nil
	}
	pg, err := it.t.pool.FetchPage(it.pageID)
	if err != nil {
		return err
	}
	it.pg = pg
	it.slot = 0
	it.slotCount = SlotCount(pg)
	return nil
}

// Next returns the next live row's (RowID, data), or ok=false when the
// chain is exhausted.
func (it *RowIterator) Next() (id types.RowID, data []byte, ok bool, err error) {
	for {
		if it.pg == nil {
			return 0, nil, false, nil
		}
		if it.slot >= it.slotCount {
			next := NextPageID(it.pg)
			it.pageID = next
			if err := it.loadPage(); err != nil {
				return 0, nil, false, err
			}
			continue
		}

		slot := it.slot
		it.slot++

		if !IsSlotLive(it.pg, slot) {
			continue
		}
		rec, err := GetRecord(it.pg, slot)
		if err != nil {
			return 0, nil, false, err
		}
		return types.NewRowID(it.pg.ID, uint32(slot)), rec, true, nil
	}
}

// Close releases the iterator's currently pinned page, if any.
func (it *RowIterator) Close() error {
	if it.pg == nil {
		return nil
	}
	err := it.t.pool.UnpinPage(it.pg.ID, false)
	it.pg = nil
	return err
}
