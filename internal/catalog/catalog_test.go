package catalog

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/storage"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	fs := afero.NewMemMapFs()
	fm, err := storage.Open(fs, "/data/kzdb.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	pm, err := bufferpool.Open(fm, 32, nil)
	require.NoError(t, err)

	c, err := Open(pm, nil)
	require.NoError(t, err)
	return c
}

func TestCreateTableThenGetTable(t *testing.T) {
	c := newTestCatalog(t)

	entry, err := c.CreateTable("users", []ColumnDef{
		{Name: "id", Type: storage.ColBigint},
		{Name: "name", Type: storage.ColVarchar, Nullable: true},
	}, "CREATE TABLE users (id BIGINT, name VARCHAR)")
	require.NoError(t, err)
	require.NotZero(t, entry.ID)

	got, ok, err := c.GetTable("USERS")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.ID, got.ID)

	cols, err := c.GetColumns(entry.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "id", cols[0].Name)
	require.Equal(t, "name", cols[1].Name)
}

func TestCreateTableDuplicateRejected(t *testing.T) {
	c := newTestCatalog(t)
	cols := []ColumnDef{{Name: "a", Type: storage.ColInteger}}
	_, err := c.CreateTable("t", cols, "")
	require.NoError(t, err)

	_, err = c.CreateTable("T", cols, "")
	require.Error(t, err)
}

func TestDropTableCascadesColumns(t *testing.T) {
	c := newTestCatalog(t)
	entry, err := c.CreateTable("t", []ColumnDef{{Name: "a", Type: storage.ColInteger}}, "")
	require.NoError(t, err)

	require.NoError(t, c.DropTable("t"))

	exists, err := c.TableExists("t")
	require.NoError(t, err)
	require.False(t, exists)

	cols, err := c.GetColumns(entry.ID)
	require.NoError(t, err)
	require.Empty(t, cols)
}

func TestListTables(t *testing.T) {
	c := newTestCatalog(t)
	cols := []ColumnDef{{Name: "a", Type: storage.ColInteger}}
	_, err := c.CreateTable("a", cols, "")
	require.NoError(t, err)
	_, err = c.CreateTable("b", cols, "")
	require.NoError(t, err)

	tables, err := c.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
}

func TestCreateTableRejectsDuplicateColumnName(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.CreateTable("t", []ColumnDef{
		{Name: "a", Type: storage.ColInteger},
		{Name: "A", Type: storage.ColVarchar},
	}, "")
	require.Error(t, err)
}

func TestCreateTableRejectsMultiplePrimaryKeys(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.CreateTable("t", []ColumnDef{
		{Name: "a", Type: storage.ColInteger, PrimaryKey: true},
		{Name: "b", Type: storage.ColInteger, PrimaryKey: true},
	}, "")
	require.Error(t, err)
}

func TestCreateTableRejectsEmptyColumnList(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.CreateTable("t", nil, "")
	require.Error(t, err)
}

func TestCreateTablePersistsConstraintsAndDefault(t *testing.T) {
	c := newTestCatalog(t)
	entry, err := c.CreateTable("t", []ColumnDef{
		{Name: "id", Type: storage.ColInteger, PrimaryKey: true},
		{Name: "name", Type: storage.ColVarchar, Length: 32, Nullable: true, Unique: true},
		{Name: "status", Type: storage.ColVarchar, HasDefault: true, Default: "active"},
	}, "")
	require.NoError(t, err)

	cols, err := c.GetColumns(entry.ID)
	require.NoError(t, err)
	require.Len(t, cols, 3)

	require.Equal(t, uint32(1), cols[0].ColumnID)
	require.True(t, cols[0].PrimaryKey)
	require.False(t, cols[0].Nullable)

	require.Equal(t, uint32(32), cols[1].Length)
	require.True(t, cols[1].Unique)
	require.True(t, cols[1].Nullable)

	require.True(t, cols[2].HasDefault)
	require.Equal(t, "active", cols[2].Default)
}
