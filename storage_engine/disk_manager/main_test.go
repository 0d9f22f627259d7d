package diskmanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFreshFileHasNoCatalogRoot(t *testing.T) {
	dir := t.TempDir()
	dm, err := Open(filepath.Join(dir, "test.db"), 4096)
	require.NoError(t, err)
	defer dm.Close()

	require.Equal(t, NoPage, dm.CatalogRootPageID())
}

func TestSetCatalogRootPageIDPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	dm, err := Open(path, 4096)
	require.NoError(t, err)
	require.NoError(t, dm.SetCatalogRootPageID(0))
	require.NoError(t, dm.Close())

	dm2, err := Open(path, 4096)
	require.NoError(t, err)
	defer dm2.Close()
	require.Equal(t, uint32(0), dm2.CatalogRootPageID())
}

func TestPhysicalPageLayout(t *testing.T) {
	dir := t.TempDir()
	dm, err := Open(filepath.Join(dir, "test.db"), 4096)
	require.NoError(t, err)
	defer dm.Close()

	b := int64(dm.bitsPerExtent())
	require.Equal(t, int64(1), dm.physicalPage(bitmapPageID(0)))
	require.Equal(t, int64(2), dm.physicalPage(0))
	require.Equal(t, int64(1+(b+1)), dm.physicalPage(bitmapPageID(1)))
}

func TestReadPageRejectsWrongBufferSize(t *testing.T) {
	dir := t.TempDir()
	dm, err := Open(filepath.Join(dir, "test.db"), 4096)
	require.NoError(t, err)
	defer dm.Close()

	err = dm.ReadPage(0, make([]byte, 10))
	require.Error(t, err)
}

func TestOpenCreatesFileIfMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	dm, err := Open(path, 4096)
	require.NoError(t, err)
	defer dm.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
}
