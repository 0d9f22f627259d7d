package heap

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/bufferpool"
	diskmanager "github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/disk_manager"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T) *bufferpool.BufferPool {
	t.Helper()
	dir := t.TempDir()
	dm, err := diskmanager.Open(filepath.Join(dir, "test.db"), 4096)
	require.NoError(t, err)
	pool := bufferpool.New(32, dm)
	dm.SetPageCache(pool)
	t.Cleanup(func() { dm.Close() })
	return pool
}

func TestInsertAndGetRow(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	id, err := table.InsertRow([]byte("hello world"))
	require.NoError(t, err)

	got, err := table.GetRow(id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)
}

func TestDeleteRowTombstonesAndRejectsGet(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	id, err := table.InsertRow([]byte("doomed"))
	require.NoError(t, err)
	require.NoError(t, table.DeleteRow(id))

	_, err = table.GetRow(id)
	require.Error(t, err)
}

func TestUpdateRowInPlaceKeepsRowID(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	id, err := table.InsertRow([]byte("original data"))
	require.NoError(t, err)

	newID, err := table.UpdateRow(id, []byte("short"))
	require.NoError(t, err)
	require.Equal(t, id, newID)

	got, err := table.GetRow(id)
	require.NoError(t, err)
	require.Equal(t, []byte("short"), got)
}

func TestUpdateRowThatGrowsMovesRecord(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	id, err := table.InsertRow([]byte("tiny"))
	require.NoError(t, err)

	bigger := make([]byte, 200)
	for i := range bigger {
		bigger[i] = byte(i)
	}
	newID, err := table.UpdateRow(id, bigger)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)

	_, err = table.GetRow(id)
	require.Error(t, err)

	got, err := table.GetRow(newID)
	require.NoError(t, err)
	require.Equal(t, bigger, got)
}

func TestInsertSpillsAcrossMultiplePages(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	const n = 400
	ids := make([]types.RowID, 0, n)
	for i := 0; i < n; i++ {
		id, err := table.InsertRow([]byte(fmt.Sprintf("row number %04d with some padding", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	pagesSeen := map[uint32]bool{}
	for _, id := range ids {
		pagesSeen[id.PageID()] = true
	}
	require.Greater(t, len(pagesSeen), 1, "expected inserts to span more than one heap page")

	it, err := table.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	count := 0
	for {
		_, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, n, count)
}

func TestInsertRowCompactsFragmentedPageToFit(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	big := make([]byte, 3000)
	for i := range big {
		big[i] = byte(i)
	}
	small := make([]byte, 500)
	for i := range small {
		small[i] = byte(i)
	}

	bigID, err := table.InsertRow(big)
	require.NoError(t, err)
	smallID, err := table.InsertRow(small)
	require.NoError(t, err)
	require.Equal(t, bigID.PageID(), smallID.PageID())

	require.NoError(t, table.DeleteRow(bigID))

	pg, err := pool.FetchPage(bigID.PageID())
	require.NoError(t, err)
	wantRecord := make([]byte, 2800)
	for i := range wantRecord {
		wantRecord[i] = byte(i)
	}
	require.Less(t, FreeSpace(pg), len(wantRecord)+SlotSize, "raw free space should fall short before compaction")
	require.NoError(t, pool.UnpinPage(pg.ID, false))

	newID, err := table.InsertRow(wantRecord)
	require.NoError(t, err)
	require.Equal(t, bigID.PageID(), newID.PageID(), "opportunistic compaction should have kept the insert on the same page")

	got, err := table.GetRow(newID)
	require.NoError(t, err)
	require.Equal(t, wantRecord, got)

	gotSmall, err := table.GetRow(smallID)
	require.NoError(t, err)
	require.Equal(t, small, gotSmall)
}

func TestCompactPageReclaimsTombstoneSpace(t *testing.T) {
	pool := newPool(t)
	table, err := Create(pool)
	require.NoError(t, err)

	var firstID, lastID uint32
	for i := 0; i < 3; i++ {
		id, err := table.InsertRow([]byte("some data to tombstone"))
		require.NoError(t, err)
		if i == 0 {
			firstID = id.PageID()
		}
		lastID = id.PageID()
	}
	require.Equal(t, firstID, lastID)

	mid, err := table.InsertRow([]byte("middle record"))
	require.NoError(t, err)
	require.NoError(t, table.DeleteRow(mid))

	pg, err := pool.FetchPage(mid.PageID())
	require.NoError(t, err)
	before := FreeSpace(pg)
	require.NoError(t, pool.UnpinPage(pg.ID, false))

	require.NoError(t, table.CompactPage(mid.PageID()))

	pg, err = pool.FetchPage(mid.PageID())
	require.NoError(t, err)
	require.Equal(t, before+len("middle record"), FreeSpace(pg))
	require.NoError(t, pool.UnpinPage(pg.ID, false))

	_, err = table.GetRow(mid)
	require.Error(t, err)
}
