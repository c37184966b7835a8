package planner

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/catalog"
	"github.com/kzdb/kzdb/internal/sql/ast"
	"github.com/kzdb/kzdb/internal/sql/parser"
	"github.com/kzdb/kzdb/internal/storage"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	fs := afero.NewMemMapFs()
	fm, err := storage.Open(fs, "/data/kzdb.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	pm, err := bufferpool.Open(fm, 32, nil)
	require.NoError(t, err)

	cat, err := catalog.Open(pm, nil)
	require.NoError(t, err)
	return cat
}

func TestPlanCreateTableResolvesTypes(t *testing.T) {
	cat := newTestCatalog(t)
	stmt, err := parser.Parse("CREATE TABLE users (id BIGINT, name VARCHAR)")
	require.NoError(t, err)

	plan, err := Build(stmt, cat)
	require.NoError(t, err)
	ct := plan.(*CreateTablePlan)
	require.Equal(t, storage.ColBigint, ct.Columns[0].Type)
	require.Equal(t, storage.ColVarchar, ct.Columns[1].Type)
}

func TestPlanInsertOrdersColumns(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("users", []catalog.ColumnDef{
		{Name: "id", Type: storage.ColBigint},
		{Name: "name", Type: storage.ColVarchar, Nullable: true},
	}, "")
	require.NoError(t, err)

	stmt, err := parser.Parse("INSERT INTO users (name, id) VALUES ('a', 1)")
	require.NoError(t, err)

	plan, err := Build(stmt, cat)
	require.NoError(t, err)
	ins := plan.(*InsertPlan)
	require.Len(t, ins.Rows, 1)
	idLit := ins.Rows[0][0].(*ast.Literal)
	require.EqualValues(t, 1, idLit.Value)
	nameLit := ins.Rows[0][1].(*ast.Literal)
	require.Equal(t, "a", nameLit.Value)
}

func TestPlanSelectUnknownTable(t *testing.T) {
	cat := newTestCatalog(t)
	stmt, err := parser.Parse("SELECT * FROM ghosts")
	require.NoError(t, err)
	_, err = Build(stmt, cat)
	require.Error(t, err)
}

func TestPlanTruncateResolvesTable(t *testing.T) {
	cat := newTestCatalog(t)
	entry, err := cat.CreateTable("users", []catalog.ColumnDef{{Name: "id", Type: storage.ColBigint}}, "")
	require.NoError(t, err)

	stmt, err := parser.Parse("TRUNCATE TABLE users")
	require.NoError(t, err)
	plan, err := Build(stmt, cat)
	require.NoError(t, err)
	tp := plan.(*TruncatePlan)
	require.Equal(t, entry.ID, tp.TableID)
	require.Equal(t, entry.RootPageID, tp.RootPage)
}

func TestPlanTruncateUnknownTable(t *testing.T) {
	cat := newTestCatalog(t)
	stmt, err := parser.Parse("TRUNCATE ghosts")
	require.NoError(t, err)
	_, err = Build(stmt, cat)
	require.Error(t, err)
}

func TestPlanDropTableCarriesIfExistsAndCascade(t *testing.T) {
	cat := newTestCatalog(t)
	stmt, err := parser.Parse("DROP TABLE IF EXISTS users CASCADE")
	require.NoError(t, err)
	plan, err := Build(stmt, cat)
	require.NoError(t, err)
	dp := plan.(*DropTablePlan)
	require.True(t, dp.IfExists)
	require.True(t, dp.Cascade)
}

func TestPlanCreateTableCarriesConstraints(t *testing.T) {
	cat := newTestCatalog(t)
	stmt, err := parser.Parse("CREATE TABLE t (id INTEGER PRIMARY KEY, email VARCHAR(64) UNIQUE, status VARCHAR DEFAULT 'new')")
	require.NoError(t, err)
	plan, err := Build(stmt, cat)
	require.NoError(t, err)
	ct := plan.(*CreateTablePlan)

	require.True(t, ct.Columns[0].PrimaryKey)
	require.EqualValues(t, 64, ct.Columns[1].Length)
	require.True(t, ct.Columns[1].Unique)
	require.True(t, ct.Columns[2].HasDefault)
	require.Equal(t, "new", ct.Columns[2].Default)
}

func TestPlanSelectUnknownColumnProjection(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("users", []catalog.ColumnDef{{Name: "id", Type: storage.ColBigint}}, "")
	require.NoError(t, err)

	stmt, err := parser.Parse("SELECT missing FROM users")
	require.NoError(t, err)
	_, err = Build(stmt, cat)
	require.Error(t, err)
}
