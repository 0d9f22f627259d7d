package bufferpool

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FetchPage returns a page, pinned, loading it from disk on a miss. The
// caller must call UnpinPage exactly once per successful FetchPage/NewPage.
func (bp *BufferPool) FetchPage(id uint32) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if idx, ok := bp.pageIdx[id]; ok {
		pg := bp.frames[idx]
		pg.Lock()
		if pg.PinCount == 0 {
			bp.detachFromLRU(idx)
		}
		pg.PinCount++
		pg.Unlock()
		log.WithField("page", id).Debug("bufferpool hit")
		return pg, nil
	}

	idx, err := bp.reserveFrame()
	if err != nil {
		return nil, err
	}

	pg := bp.frames[idx]
	if pg == nil {
		pg = page.New(id)
		bp.frames[idx] = pg
	} else {
		pg.Reset(id)
	}

	if err := bp.disk.ReadPage(id, pg.Data); err != nil {
		bp.freeList = append(bp.freeList, idx)
		return nil, err
	}

	pg.PinCount = 1
	pg.Dirty = false
	bp.pageIdx[id] = idx
	log.WithField("page", id).Debug("bufferpool miss, loaded from disk")
	return pg, nil
}

// NewPage allocates a fresh logical page via the disk manager and returns
// it pinned and dirty, ready for the caller to stamp a type and contents.
func (bp *BufferPool) NewPage() (*page.Page, error) {
	id, err := bp.disk.AllocatePage()
	if err != nil {
		return nil, err
	}

	bp.mu.Lock()

	idx, err := bp.reserveFrame()
	if err != nil {
		// DeallocatePage fetches the bitmap page back through this pool, so
		// it runs with bp.mu released.
		bp.mu.Unlock()
		bp.disk.DeallocatePage(id)
		return nil, err
	}
	defer bp.mu.Unlock()

	pg := bp.frames[idx]
	if pg == nil {
		pg = page.New(id)
		bp.frames[idx] = pg
	} else {
		pg.Reset(id)
	}

	pg.PinCount = 1
	pg.Dirty = true
	bp.pageIdx[id] = idx
	log.WithField("page", id).Debug("bufferpool new page")
	return pg, nil
}

// reserveFrame returns a frame index ready to receive a page, taking one
// off the free list or evicting an LRU victim. Caller must hold bp.mu.
func (bp *BufferPool) reserveFrame() (int, error) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, nil
	}

	elem := bp.lru.Back()
	if elem == nil {
		return 0, errors.Wrap(storageerrors.ErrOutOfFrames, "bufferpool: no unpinned frame available to evict")
	}
	idx := elem.Value.(int)
	bp.lru.Remove(elem)
	delete(bp.lruRef, idx)

	victim := bp.frames[idx]
	if victim.Dirty {
		if err := bp.disk.WritePage(victim.ID, victim.Data); err != nil {
			return 0, err
		}
		victim.Dirty = false
	}
	delete(bp.pageIdx, victim.ID)
	log.WithField("page", victim.ID).Debug("bufferpool evicting frame")
	return idx, nil
}

func (bp *BufferPool) detachFromLRU(idx int) {
	if elem, ok := bp.lruRef[idx]; ok {
		bp.lru.Remove(elem)
		delete(bp.lruRef, idx)
	}
}

// UnpinPage decrements a page's pin count; once it reaches zero the frame
// becomes eligible for eviction. dirty, once true for a pin cycle, is
// sticky until the page is actually flushed.
func (bp *BufferPool) UnpinPage(id uint32, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageIdx[id]
	if !ok {
		return errors.Wrapf(storageerrors.ErrInvalidPage, "unpin_page: page %d not resident", id)
	}

	pg := bp.frames[idx]
	pg.Lock()
	defer pg.Unlock()

	if pg.PinCount == 0 {
		return errors.Wrapf(storageerrors.ErrDoubleUnpin, "unpin_page: page %d already at pin count 0", id)
	}

	pg.PinCount--
	if dirty {
		pg.Dirty = true
	}

	if pg.PinCount == 0 {
		bp.lruRef[idx] = bp.lru.PushFront(idx)
	}

	return nil
}

// FlushPage writes a resident page to disk if dirty, regardless of pin
// state — a caller may flush a page it still holds pinned.
func (bp *BufferPool) FlushPage(id uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(id)
}

func (bp *BufferPool) flushLocked(id uint32) error {
	idx, ok := bp.pageIdx[id]
	if !ok {
		return errors.Wrapf(storageerrors.ErrInvalidPage, "flush_page: page %d not resident", id)
	}

	pg := bp.frames[idx]
	pg.Lock()
	defer pg.Unlock()

	if !pg.Dirty {
		return nil
	}
	if err := bp.disk.WritePage(pg.ID, pg.Data); err != nil {
		return err
	}
	pg.Dirty = false
	return nil
}

// FlushAllPages writes every resident dirty page to disk.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id := range bp.pageIdx {
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage evicts and deallocates a page. The page must be unpinned.
func (bp *BufferPool) DeletePage(id uint32) error {
	bp.mu.Lock()

	if idx, ok := bp.pageIdx[id]; ok {
		pg := bp.frames[idx]
		pg.Lock()
		pinned := pg.PinCount > 0
		pg.Unlock()
		if pinned {
			bp.mu.Unlock()
			return errors.Wrapf(storageerrors.ErrInvariantViolation, "delete_page: page %d still pinned", id)
		}

		bp.detachFromLRU(idx)
		delete(bp.pageIdx, id)
		bp.freeList = append(bp.freeList, idx)
	}

	// DeallocatePage fetches the bitmap page back through this pool, so it
	// runs with bp.mu released.
	bp.mu.Unlock()
	return bp.disk.DeallocatePage(id)
}

// GetStats reports the pool's current occupancy for diagnostics.
func (bp *BufferPool) GetStats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pinned := 0
	for _, idx := range bp.pageIdx {
		pg := bp.frames[idx]
		pg.RLock()
		if pg.PinCount > 0 {
			pinned++
		}
		pg.RUnlock()
	}

	return Stats{
		Capacity: bp.capacity,
		Resident: len(bp.pageIdx),
		Pinned:   pinned,
	}
}
