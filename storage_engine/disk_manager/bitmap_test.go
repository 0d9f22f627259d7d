package diskmanager

import (
	"path/filepath"
	"testing"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/bufferpool"

	"github.com/stretchr/testify/require"
)

func openWithPool(t *testing.T) (*DiskManager, *bufferpool.BufferPool) {
	t.Helper()
	dir := t.TempDir()
	dm, err := Open(filepath.Join(dir, "test.db"), 4096)
	require.NoError(t, err)
	pool := bufferpool.New(16, dm)
	dm.SetPageCache(pool)
	t.Cleanup(func() { dm.Close() })
	return dm, pool
}

func TestAllocatePageReturnsDenseIDs(t *testing.T) {
	dm, _ := openWithPool(t)

	id0, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(0), id0)

	id1, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(1), id1)
}

func TestDeallocateThenAllocateReusesBit(t *testing.T) {
	dm, _ := openWithPool(t)

	id0, err := dm.AllocatePage()
	require.NoError(t, err)

	require.NoError(t, dm.DeallocatePage(id0))

	free, err := dm.IsPageFree(id0)
	require.NoError(t, err)
	require.True(t, free)

	id1, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id0, id1)
}

func TestAllocatePageGrowsNewExtentWhenFull(t *testing.T) {
	dm, _ := openWithPool(t)

	b := dm.bitsPerExtent()
	seen := make(map[uint32]bool)
	for i := uint32(0); i < b+5; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		require.False(t, seen[id], "page ID %d allocated twice", id)
		seen[id] = true
	}
	require.Equal(t, uint32(2), dm.numExtents)
}

func TestDeallocateBitmapPageRejected(t *testing.T) {
	dm, _ := openWithPool(t)
	_, err := dm.AllocatePage()
	require.NoError(t, err)

	err = dm.DeallocatePage(bitmapPageID(0))
	require.Error(t, err)
}
