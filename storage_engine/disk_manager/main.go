// Package diskmanager owns the single database file and the logical page
// ID space backing every page type above it: meta page, bitmap pages,
// heap pages, B+Tree nodes and catalog pages. It translates a logical ID
// to a physical file offset using the extent formula from the storage
// core's layout: one bitmap page followed by B data pages per extent,
// where B = 8*(pageSize - bitmapHeaderSize).
//
// read_page/write_page are direct file I/O — the buffer pool calls them
// only on a cache miss or on eviction/flush. allocate_page/deallocate_page
// mutate a bitmap page's bits through the buffer pool (SetPageCache),
// never by writing the bitmap bytes directly, so a bitmap page obeys the
// same pin/dirty/eviction discipline as every other cached page.
package diskmanager

import (
	"os"

	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
)

// Open opens or creates the database file at path and, if new, stamps a
// fresh meta page. pageSize must match across opens of the same file; it
// is read from the existing meta page if the file already has one.
func Open(path string, pageSize int) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(storageerrors.ErrIOError, "open %s: %v", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(storageerrors.ErrIOError, "stat %s: %v", path, err)
	}

	dm := &DiskManager{file: file, pageSize: pageSize}

	if stat.Size() == 0 {
		dm.catalogRootPageID = NoPage
		dm.numExtents = 0
		if err := dm.writeMeta(); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		if err := dm.readMeta(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return dm, nil
}

// SetPageCache wires the buffer pool that sits above this disk manager so
// allocate_page/deallocate_page can mutate bitmap bits through the pool.
// Called once during engine construction, after both are built.
func (dm *DiskManager) SetPageCache(pool pageCache) {
	dm.pool = pool
}

func (dm *DiskManager) PageSize() int { return dm.pageSize }

func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return errors.Wrap(storageerrors.ErrIOError, err.Error())
	}
	return dm.file.Close()
}

func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return errors.Wrap(storageerrors.ErrIOError, err.Error())
	}
	return nil
}

// ReadPage reads a logical page's raw bytes directly from the file —
// bypassing any cache. Called by the buffer pool on a miss.
func (dm *DiskManager) ReadPage(id uint32, buf []byte) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if len(buf) != dm.pageSize {
		return errors.Wrapf(storageerrors.ErrInvariantViolation, "read_page: buffer must be %d bytes", dm.pageSize)
	}
	if !dm.isAllocatedLocked(id) {
		return errors.Wrapf(storageerrors.ErrInvalidPage, "read_page: page %d is not allocated", id)
	}

	offset := int64(dm.physicalPage(id)) * int64(dm.pageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && n != len(buf) {
		return errors.Wrapf(storageerrors.ErrIOError, "read_page %d: %v", id, err)
	}
	return nil
}

// WritePage writes a logical page's raw bytes directly to the file.
// Called by the buffer pool on eviction or explicit flush.
func (dm *DiskManager) WritePage(id uint32, buf []byte) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if len(buf) != dm.pageSize {
		return errors.Wrapf(storageerrors.ErrInvariantViolation, "write_page: buffer must be %d bytes", dm.pageSize)
	}

	offset := int64(dm.physicalPage(id)) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return errors.Wrapf(storageerrors.ErrIOError, "write_page %d: %v", id, err)
	}
	return nil
}

// physicalPage computes the physical page number for a logical ID,
// accounting for the meta page at physical 0 and one bitmap page per
// extent. Must be called with dm.mu held (read lock suffices).
func (dm *DiskManager) physicalPage(id uint32) int64 {
	b := int64(dm.bitsPerExtent())
	if id&bitmapIDFlag != 0 {
		e := int64(id &^ bitmapIDFlag)
		return 1 + e*(b+1)
	}
	e := int64(id) / b
	o := int64(id) % b
	return 1 + e*(b+1) + 1 + o
}

func bitmapPageID(extent uint32) uint32 {
	return bitmapIDFlag | extent
}

// CatalogRootPageID returns the logical ID of the catalog's root page, as
// recorded on the meta page, or NoPage if none has been set yet.
func (dm *DiskManager) CatalogRootPageID() uint32 {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.catalogRootPageID
}

func (dm *DiskManager) SetCatalogRootPageID(id uint32) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.catalogRootPageID = id
	return dm.writeMetaLocked()
}

func (dm *DiskManager) writeMeta() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.writeMetaLocked()
}

// metaMagic is "MNSQ" per spec: the database file's magic number.
const metaMagic = 0x4D4E5351
const metaVersion = uint16(1)

func (dm *DiskManager) writeMetaLocked() error {
	buf := make([]byte, dm.pageSize)
	putUint32(buf[0:], metaMagic)
	putUint16(buf[4:], metaVersion)
	putUint16(buf[6:], uint16(dm.pageSize))
	putUint32(buf[8:], dm.catalogRootPageID)
	putUint32(buf[12:], 1) // first-bitmap page ID, always 1 per spec
	putUint32(buf[16:], dm.numExtents)

	if _, err := dm.file.WriteAt(buf, metaPhysicalPage*int64(dm.pageSize)); err != nil {
		return errors.Wrap(storageerrors.ErrIOError, err.Error())
	}
	return nil
}

func (dm *DiskManager) readMeta() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	buf := make([]byte, dm.pageSize)
	if _, err := dm.file.ReadAt(buf, metaPhysicalPage*int64(dm.pageSize)); err != nil {
		return errors.Wrap(storageerrors.ErrIOError, err.Error())
	}

	magic := getUint32(buf[0:])
	if magic != metaMagic {
		return errors.Wrapf(storageerrors.ErrCorruption, "bad meta magic %x", magic)
	}
	dm.pageSize = int(getUint16(buf[6:]))
	dm.catalogRootPageID = getUint32(buf[8:])
	dm.numExtents = getUint32(buf[16:])
	return nil
}

// isAllocatedLocked reports whether id refers to a managed page — a bitmap
// page within an existing extent, or a data page within the dense range
// covered by existing extents. It does not check the bit itself; callers
// wanting the live/free distinction use IsPageFree.
func (dm *DiskManager) isAllocatedLocked(id uint32) bool {
	b := dm.bitsPerExtent()
	if id&bitmapIDFlag != 0 {
		return (id &^ bitmapIDFlag) < dm.numExtents
	}
	return id/b < dm.numExtents
}

func putUint32(buf []byte, v uint32) { buf[0] = byte(v); buf[1] = byte(v >> 8); buf[2] = byte(v >> 16); buf[3] = byte(v >> 24) }
func getUint32(buf []byte) uint32    { return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24 }
func putUint16(buf []byte, v uint16) { buf[0] = byte(v); buf[1] = byte(v >> 8) }
func getUint16(buf []byte) uint16    { return uint16(buf[0]) | uint16(buf[1])<<8 }
