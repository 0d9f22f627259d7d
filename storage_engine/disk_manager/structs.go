package diskmanager

import (
	"os"
	"sync"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
)

// pageCache is the slice of the buffer pool's interface the disk manager
// needs to mutate bitmap pages through the pool rather than bypassing it.
// Kept as a tiny local interface — mirrors the teacher's WALFlushedLSNGetter
// trick — so this package never imports bufferpool. bufferpool in turn
// reaches ReadPage/WritePage through its own local diskIO interface on a
// cache miss or eviction, so neither package imports the other.
type pageCache interface {
	FetchPage(id uint32) (*page.Page, error)
	UnpinPage(id uint32, dirty bool) error
}

// DiskManager owns exactly one database file and translates between dense,
// logical page IDs and physical file offsets via bitmap extent pages.
type DiskManager struct {
	file     *os.File
	pageSize int

	// numExtents is the count of bitmap extents ever created. Logical data
	// IDs less than numExtents*bitsPerExtent are addressable; beyond that,
	// allocate_page must create a new extent first.
	numExtents uint32

	catalogRootPageID uint32

	pool pageCache

	mu sync.RWMutex
}

const (
	metaPhysicalPage = 0

	// bitmapHeaderSize is LSN(8) + page-type(1) + freeCount(4).
	bitmapHeaderSize = 13

	// bitmapIDFlag marks a logical ID as addressing a bitmap page instead
	// of a data page — an implementation-private split of the uint32 ID
	// space so the buffer pool can cache bitmap pages with the same
	// uniform page-ID key it uses for everything else, with no special
	// casing in the pool itself.
	bitmapIDFlag = uint32(1) << 31

	// NoPage marks an unset page reference on the meta page. It can't
	// collide with a real data page ID (0 is a valid, commonly-first,
	// allocated page; data IDs have bitmapIDFlag clear). It has
	// bitmapIDFlag set, so as a bitmap ID it would name extent 0x7FFFFFFF.
	NoPage = uint32(0xFFFFFFFF)
)

// bitsPerExtent returns B = 8*(pageSize - bitmapHeaderSize), the number of
// data pages one bitmap page can track.
func (dm *DiskManager) bitsPerExtent() uint32 {
	return uint32(8 * (dm.pageSize - bitmapHeaderSize))
}
