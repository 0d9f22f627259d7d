package engine

import (
	"testing"

	"github.com/EasonMa1135/MiniSQL-Database-System/config"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/indexkey"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/stretchr/testify/require"
)

func openEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.New().WithDataDir(t.TempDir()).WithPoolCapacity(16)
	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func studentSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.ColumnTypeInt, PrimaryKey: true},
		{Name: "name", Type: types.ColumnTypeChar, Length: 32},
		{Name: "age", Type: types.ColumnTypeInt, Nullable: true},
	}}
}

func studentRow(id int32, name string, age int32, ageNull bool) types.Row {
	ageVal := types.Value{Int: age}
	if ageNull {
		ageVal = types.Value{IsNull: true}
	}
	return types.Row{Values: []types.Value{
		{Int: id},
		{Char: name},
		ageVal,
	}}
}

func TestCreateTableAutoCreatesPrimaryKeyIndex(t *testing.T) {
	e := openEngine(t)

	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	_, ok := table.Index("pk_students")
	require.True(t, ok)
}

func TestInsertGetDeleteRow(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	id, err := table.InsertRow(studentRow(1, "Alice", 20, false))
	require.NoError(t, err)

	got, err := table.GetRow(id)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Values[1].Char)
	require.Equal(t, int32(20), got.Values[2].Int)

	require.NoError(t, table.DeleteRow(id))
	_, err = table.GetRow(id)
	require.Error(t, err)
}

func TestInsertRowWithNullableColumn(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	id, err := table.InsertRow(studentRow(3, "Carol", 0, true))
	require.NoError(t, err)

	got, err := table.GetRow(id)
	require.NoError(t, err)
	require.True(t, got.Values[2].IsNull)
}

func TestDuplicatePrimaryKeyRollsBackInsert(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	id1, err := table.InsertRow(studentRow(1, "Alice", 20, false))
	require.NoError(t, err)

	_, err = table.InsertRow(studentRow(1, "Duplicate", 99, false))
	require.Error(t, err)

	// the original row must still be intact, and the heap must not have
	// retained a half-inserted row from the failed attempt.
	got, err := table.GetRow(id1)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Values[1].Char)

	it, err := table.Scan()
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
	require.Equal(t, 1, count)
}

func TestUpdateRowChangesValueAndReindexes(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	id, err := table.InsertRow(studentRow(1, "Alice", 20, false))
	require.NoError(t, err)

	newID, err := table.UpdateRow(id, studentRow(1, "Alice", 21, false))
	require.NoError(t, err)

	got, err := table.GetRow(newID)
	require.NoError(t, err)
	require.Equal(t, int32(21), got.Values[2].Int)

	pk, ok := table.Index("pk_students")
	require.True(t, ok)
	idKey := indexkey.Encode(
		[]types.Column{studentSchema().Columns[0]},
		[]types.Value{{Int: 1}},
	)
	rowID, err := pk.Search(idKey)
	require.NoError(t, err)
	require.Equal(t, newID, rowID)
}

func TestUpdateRowRollsBackOnDuplicateKey(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	_, err = table.InsertRow(studentRow(1, "Alice", 20, false))
	require.NoError(t, err)
	id2, err := table.InsertRow(studentRow(2, "Bob", 22, false))
	require.NoError(t, err)

	_, err = table.UpdateRow(id2, studentRow(1, "Bob", 22, false))
	require.Error(t, err)

	got, err := table.GetRow(id2)
	require.NoError(t, err)
	require.Equal(t, int32(2), got.Values[0].Int)
	require.Equal(t, "Bob", got.Values[1].Char)

	pk, ok := table.Index("pk_students")
	require.True(t, ok)
	idKey := indexkey.Encode(
		[]types.Column{studentSchema().Columns[0]},
		[]types.Value{{Int: 2}},
	)
	rowID, err := pk.Search(idKey)
	require.NoError(t, err)
	require.Equal(t, id2, rowID)
}

func TestCreateIndexBackfillsExistingRows(t *testing.T) {
	e := openEngine(t)
	table, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	for i := int32(0); i < 5; i++ {
		_, err := table.InsertRow(studentRow(i, "student", i+18, false))
		require.NoError(t, err)
	}

	tree, err := table.CreateIndex("idx_age", []string{"age"}, false)
	require.NoError(t, err)

	_, ok := table.Index("idx_age")
	require.True(t, ok)
	require.NotNil(t, tree)

	ageKey := indexkey.Encode(
		[]types.Column{studentSchema().Columns[2]},
		[]types.Value{{Int: 18}},
	)
	got, err := tree.SearchAll(ageKey)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestCatalogAndIndexesPersistAcrossReopen(t *testing.T) {
	cfg := config.New().WithDataDir(t.TempDir()).WithPoolCapacity(16)

	e1, err := Open(cfg)
	require.NoError(t, err)
	table, err := e1.CreateTable("students", studentSchema())
	require.NoError(t, err)
	id, err := table.InsertRow(studentRow(1, "Alice", 20, false))
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e2.Close() })

	reopened, err := e2.OpenTable("students")
	require.NoError(t, err)

	got, err := reopened.GetRow(id)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Values[1].Char)

	_, ok := reopened.Index("pk_students")
	require.True(t, ok)
}

func TestStatsReportsResidentPages(t *testing.T) {
	e := openEngine(t)
	_, err := e.CreateTable("students", studentSchema())
	require.NoError(t, err)

	stats := e.Stats()
	require.Greater(t, stats.Resident, 0)
}
