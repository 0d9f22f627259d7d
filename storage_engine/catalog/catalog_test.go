package catalog

import (
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

func sampleSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.ColumnTypeInt, PrimaryKey: true},
		{Name: "name", Type: types.ColumnTypeChar, Length: 16},
	}}
}

func TestCreateTableThenGetTable(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)

	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))

	rec, err := cat.GetTable("widgets")
	require.NoError(t, err)
	require.Equal(t, "widgets", rec.Name)
	require.Equal(t, uint32(7), rec.FirstPageID)
	require.Len(t, rec.Schema.Columns, 2)
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)

	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))
	err = cat.CreateTable("widgets", sampleSchema(), 8)
	require.Error(t, err)
}

func TestAddIndexThenSetIndexRootPersists(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))

	require.NoError(t, cat.AddIndex("widgets", IndexRecord{Name: "pk_widgets", Unique: true, Columns: []string{"id"}}))
	require.NoError(t, cat.SetIndexRoot("widgets", "pk_widgets", 42))

	rec, err := cat.GetTable("widgets")
	require.NoError(t, err)
	require.Len(t, rec.Indexes, 1)
	require.Equal(t, uint32(42), rec.Indexes[0].RootPage)
}

func TestSetIndexRootOnUnknownIndexFails(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))

	err = cat.SetIndexRoot("widgets", "nope", 1)
	require.Error(t, err)
}

func TestOpenReloadsEveryTableRecord(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))
	require.NoError(t, cat.CreateTable("gadgets", sampleSchema(), 9))
	require.NoError(t, cat.AddIndex("widgets", IndexRecord{Name: "pk_widgets", Unique: true, Columns: []string{"id"}}))
	root := cat.RootPageID()

	reopened, err := Open(pool, root)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"widgets", "gadgets"}, reopened.ListTables())

	rec, err := reopened.GetTable("widgets")
	require.NoError(t, err)
	require.Len(t, rec.Indexes, 1)
	require.Equal(t, "pk_widgets", rec.Indexes[0].Name)
}

func TestDropTableRemovesEntry(t *testing.T) {
	pool := newPool(t)
	cat, err := Create(pool)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable("widgets", sampleSchema(), 7))

	require.NoError(t, cat.DropTable("widgets"))
	_, err = cat.GetTable("widgets")
	require.Error(t, err)
}
