// Package heap implements the record heap: a doubly-linked chain of
// slotted pages per table. Records grow forward from the page header,
// the slot directory grows backward from the end of the page, and a
// deleted slot is tombstoned in place so existing RowIDs never dangle
// mid-scan — only CompactPage ever reclaims a tombstone's bytes, and it
// preserves every live slot's index while doing so.
package heap

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/serialize"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
)

/*
Heap page layout past the common LSN/page-type header:

	Offset  Size  Field
	────────────────────────────────────────
	9       4     NextPageID   uint32
	13      4     PrevPageID   uint32
	17      2     RecordEndPtr uint16
	19      2     SlotRegionStart uint16
	21      2     NumRows      uint16
	23      2     NumRowsFree  uint16
	25      2     SlotCount    uint16
	────────────────────────────────────────
	27            HeaderSize

Records grow forward from HeaderSize; the slot directory grows backward
from page.Size. A slot is 4 bytes: Offset(2), Length(2); Length == 0
marks a tombstone. Slot i lives at page.Size - (i+1)*SlotSize.
*/

const (
	offNextPageID       = 9
	offPrevPageID        = 13
	offRecordEndPtr      = 17
	offSlotRegionStart   = 19
	offNumRows           = 21
	offNumRowsFree       = 23
	offSlotCount         = 25

	// HeaderSize is where record storage begins on a fresh page.
	HeaderSize = 27

	// SlotSize is the byte size of one slot directory entry.
	SlotSize = 4

	// NoPage is the sentinel stored in NextPageID/PrevPageID meaning "no
	// neighbor" — it aliases the bitmap-page ID namespace, which a heap
	// page's neighbor link can never legitimately point into.
	NoPage = uint32(0xFFFFFFFF)
)

// Init stamps a fresh heap page: empty slot directory, full free space,
// and no linked neighbors.
func Init(pg *page.Page) {
	InitAs(pg, page.TypeHeapData)
}

// InitAs stamps a fresh slotted page tagged as pageType — used both for
// ordinary heap pages and for the catalog's own record chain, which
// reuses this exact layout under page.TypeCatalog.
func InitAs(pg *page.Page, pageType page.Type) {
	for i := page.TypeOffset + 1; i < len(pg.Data); i++ {
		pg.Data[i] = 0
	}
	pg.SetPageType(pageType)
	serialize.PutUint32(pg.Data[offNextPageID:], NoPage)
	serialize.PutUint32(pg.Data[offPrevPageID:], NoPage)
	serialize.PutUint16(pg.Data[offRecordEndPtr:], HeaderSize)
	serialize.PutUint16(pg.Data[offSlotRegionStart:], uint16(len(pg.Data)))
	serialize.PutUint16(pg.Data[offNumRows:], 0)
	serialize.PutUint16(pg.Data[offNumRowsFree:], 0)
	serialize.PutUint16(pg.Data[offSlotCount:], 0)
	pg.Dirty = true
}

func NextPageID(pg *page.Page) uint32        { return serialize.Uint32(pg.Data[offNextPageID:]) }
func SetNextPageID(pg *page.Page, id uint32) { serialize.PutUint32(pg.Data[offNextPageID:], id); pg.Dirty = true }
func PrevPageID(pg *page.Page) uint32        { return serialize.Uint32(pg.Data[offPrevPageID:]) }
func SetPrevPageID(pg *page.Page, id uint32) { serialize.PutUint32(pg.Data[offPrevPageID:], id); pg.Dirty = true }

func RecordEndPtr(pg *page.Page) uint16      { return serialize.Uint16(pg.Data[offRecordEndPtr:]) }
func setRecordEndPtr(pg *page.Page, v uint16) { serialize.PutUint16(pg.Data[offRecordEndPtr:], v) }

func SlotRegionStart(pg *page.Page) uint16      { return serialize.Uint16(pg.Data[offSlotRegionStart:]) }
func setSlotRegionStart(pg *page.Page, v uint16) { serialize.PutUint16(pg.Data[offSlotRegionStart:], v) }

func NumRows(pg *page.Page) uint16      { return serialize.Uint16(pg.Data[offNumRows:]) }
func setNumRows(pg *page.Page, v uint16) { serialize.PutUint16(pg.Data[offNumRows:], v) }

func NumRowsFree(pg *page.Page) uint16      { return serialize.Uint16(pg.Data[offNumRowsFree:]) }
func setNumRowsFree(pg *page.Page, v uint16) { serialize.PutUint16(pg.Data[offNumRowsFree:], v) }

func SlotCount(pg *page.Page) uint16      { return serialize.Uint16(pg.Data[offSlotCount:]) }
func setSlotCount(pg *page.Page, v uint16) { serialize.PutUint16(pg.Data[offSlotCount:], v) }

// FreeSpace is the bytes available for one more record, including the
// slot entry it would consume.
func FreeSpace(pg *page.Page) int {
	avail := int(SlotRegionStart(pg)) - int(RecordEndPtr(pg)) - SlotSize
	if avail < 0 {
		return 0
	}
	return avail
}

func slotByteOffset(i uint16) int {
	return page.Size - (int(i)+1)*SlotSize
}

func readSlot(pg *page.Page, i uint16) (offset, length uint16) {
	base := slotByteOffset(i)
	return serialize.Uint16(pg.Data[base:]), serialize.Uint16(pg.Data[base+2:])
}

func writeSlot(pg *page.Page, i uint16, offset, length uint16) {
	base := slotByteOffset(i)
	serialize.PutUint16(pg.Data[base:], offset)
	serialize.PutUint16(pg.Data[base+2:], length)
}

// IsSlotLive reports whether slot i holds a live (non-tombstone) record.
func IsSlotLive(pg *page.Page, i uint16) bool {
	if i >= SlotCount(pg) {
		return false
	}
	_, length := readSlot(pg, i)
	return length > 0
}

// InsertRecord writes data into the page under a new slot appended to the
// slot directory and returns the slot index. Tombstoned slots are never
// reused, so a RowID handed out earlier never resolves to a later record.
func InsertRecord(pg *page.Page, data []byte) (uint16, error) {
	recordLen := uint16(len(data))
	if recordLen == 0 {
		return 0, errors.Wrap(storageerrors.ErrInvariantViolation, "insert_record: record must not be empty")
	}
	if FreeSpace(pg) < int(recordLen) {
		return 0, errors.Wrapf(storageerrors.ErrInvariantViolation, "insert_record: need %d bytes, have %d", recordLen, FreeSpace(pg))
	}

	slotIdx := SlotCount(pg)

	offset := RecordEndPtr(pg)
	copy(pg.Data[offset:], data)
	setRecordEndPtr(pg, offset+recordLen)
	writeSlot(pg, slotIdx, offset, recordLen)

	setSlotRegionStart(pg, SlotRegionStart(pg)-SlotSize)
	setSlotCount(pg, slotIdx+1)
	setNumRows(pg, NumRows(pg)+1)
	pg.Dirty = true
	return slotIdx, nil
}

// GetRecord returns a copy of the record stored at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= SlotCount(pg) {
		return nil, errors.Wrapf(storageerrors.ErrNotFound, "get_record: slot %d out of range", slotIdx)
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return nil, errors.Wrapf(storageerrors.ErrNotFound, "get_record: slot %d is a tombstone", slotIdx)
	}
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}

// DeleteRecord tombstones slotIdx. The slot entry stays so any RowID
// already handed out keeps resolving to "deleted" rather than to a
// different live record.
func DeleteRecord(pg *page.Page, slotIdx uint16) error {
	if slotIdx >= SlotCount(pg) {
		return errors.Wrapf(storageerrors.ErrNotFound, "delete_record: slot %d out of range", slotIdx)
	}
	if _, length := readSlot(pg, slotIdx); length == 0 {
		return errors.Wrapf(storageerrors.ErrNotFound, "delete_record: slot %d already deleted", slotIdx)
	}
	writeSlot(pg, slotIdx, 0, 0)
	setNumRows(pg, NumRows(pg)-1)
	setNumRowsFree(pg, NumRowsFree(pg)+1)
	pg.Dirty = true
	return nil
}

// UpdateRecord overwrites slotIdx in place when newData fits the original
// allocation. Otherwise it tombstones the slot and reports movedAway=true
// so the caller re-inserts newData elsewhere and updates the index.
func UpdateRecord(pg *page.Page, slotIdx uint16, newData []byte) (movedAway bool, err error) {
	if slotIdx >= SlotCount(pg) {
		return false, errors.Wrapf(storageerrors.ErrNotFound, "update_record: slot %d out of range", slotIdx)
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return false, errors.Wrapf(storageerrors.ErrNotFound, "update_record: slot %d is a tombstone", slotIdx)
	}

	newLen := uint16(len(newData))
	if newLen <= length {
		copy(pg.Data[offset:], newData)
		writeSlot(pg, slotIdx, offset, newLen)
		pg.Dirty = true
		return false, nil
	}

	if err := DeleteRecord(pg, slotIdx); err != nil {
		return false, err
	}
	return true, nil
}

// CompactPage reclaims tombstone bytes by repacking live records
// contiguously from HeaderSize forward. Slot indices are preserved —
// only each slot's Offset changes — so every RowID referencing this page
// stays valid across a compaction.
func CompactPage(pg *page.Page) {
	count := SlotCount(pg)
	writeOff := uint16(HeaderSize)
	for i := uint16(0); i < count; i++ {
		offset, length := readSlot(pg, i)
		if length == 0 {
			continue
		}
		if offset != writeOff {
			copy(pg.Data[writeOff:writeOff+length], pg.Data[offset:offset+length])
			writeSlot(pg, i, writeOff, length)
		}
		writeOff += length
	}
	setRecordEndPtr(pg, writeOff)
	pg.Dirty = true
}
