package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/sql/ast"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id BIGINT PRIMARY KEY, name VARCHAR, age INTEGER)")
	require.NoError(t, err)
	ct := stmt.(*ast.CreateTableStmt)
	require.Equal(t, "users", ct.Table)
	require.Len(t, ct.Columns, 3)
	require.Equal(t, "id", ct.Columns[0].Name)
	require.False(t, ct.Columns[0].Nullable)
	require.True(t, ct.Columns[2].Nullable)
}

func TestParseInsertMultiRow(t *testing.T) {
	stmt, err := Parse("INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b')")
	require.NoError(t, err)
	ins := stmt.(*ast.InsertStmt)
	require.Equal(t, "users", ins.Table)
	require.Equal(t, []string{"id", "name"}, ins.Columns)
	require.Len(t, ins.Rows, 2)
}

func TestParseSelectWithWhereAndLimit(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM users WHERE age >= 18 AND name != 'bob' LIMIT 10")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	require.Equal(t, "users", sel.Table)
	require.Equal(t, []string{"id", "name"}, sel.Columns)
	require.Equal(t, 10, sel.Limit)
	require.NotNil(t, sel.Where)
	be := sel.Where.(*ast.BinaryExpr)
	require.Equal(t, "AND", be.Op)
}

func TestParseSelectStarNoLimit(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	require.Nil(t, sel.Columns)
	require.Equal(t, -1, sel.Limit)
}

func TestParseIsNotNull(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE name IS NOT NULL")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	isNull := sel.Where.(*ast.IsNullExpr)
	require.True(t, isNull.Negate)
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET name = 'x', age = 2 WHERE id = 1")
	require.NoError(t, err)
	up := stmt.(*ast.UpdateStmt)
	require.Len(t, up.Set, 2)
	require.NotNil(t, up.Where)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)
	del := stmt.(*ast.DeleteStmt)
	require.Equal(t, "users", del.Table)
}

func TestParseDropTable(t *testing.T) {
	stmt, err := Parse("DROP TABLE users")
	require.NoError(t, err)
	require.Equal(t, "users", stmt.(*ast.DropTableStmt).Table)
}

func TestParseDropTableIfExistsCascade(t *testing.T) {
	stmt, err := Parse("DROP TABLE IF EXISTS users CASCADE")
	require.NoError(t, err)
	dt := stmt.(*ast.DropTableStmt)
	require.Equal(t, "users", dt.Table)
	require.True(t, dt.IfExists)
	require.True(t, dt.Cascade)
}

func TestParseTruncateTable(t *testing.T) {
	stmt, err := Parse("TRUNCATE TABLE users")
	require.NoError(t, err)
	require.Equal(t, "users", stmt.(*ast.TruncateStmt).Table)
}

func TestParseTruncateWithoutTableKeyword(t *testing.T) {
	stmt, err := Parse("TRUNCATE users")
	require.NoError(t, err)
	require.Equal(t, "users", stmt.(*ast.TruncateStmt).Table)
}

func TestParseCreateTableWithVarcharLengthAndConstraints(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(32) NOT NULL, active BOOLEAN)")
	require.NoError(t, err)
	ct := stmt.(*ast.CreateTableStmt)
	require.Len(t, ct.Columns, 3)

	require.Equal(t, "id", ct.Columns[0].Name)
	require.True(t, ct.Columns[0].PrimaryKey)
	require.False(t, ct.Columns[0].Nullable)

	name := ct.Columns[1]
	require.Equal(t, "VARCHAR", name.Type)
	require.Equal(t, 32, name.Length)
	require.False(t, name.Nullable)

	require.True(t, ct.Columns[2].Nullable)
}

func TestParseCreateTableUniqueAndDefault(t *testing.T) {
	stmt, err := Parse("CREATE TABLE t (email VARCHAR(64) UNIQUE, status VARCHAR DEFAULT 'active')")
	require.NoError(t, err)
	ct := stmt.(*ast.CreateTableStmt)
	require.True(t, ct.Columns[0].Unique)
	require.NotNil(t, ct.Columns[1].Default)
	lit := ct.Columns[1].Default.(*ast.Literal)
	require.Equal(t, "active", lit.Value)
}

func TestParseQualifiedColumnRefsInSelectAndWhere(t *testing.T) {
	stmt, err := Parse("SELECT users.id, name FROM users WHERE users.age >= 18")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	require.Equal(t, []string{"id", "name"}, sel.Columns)
	be := sel.Where.(*ast.BinaryExpr)
	ref := be.Left.(*ast.ColumnRef)
	require.Equal(t, "users", ref.Table)
	require.Equal(t, "age", ref.Name)
}

func TestParseSyntaxErrorReportsPosition(t *testing.T) {
	_, err := Parse("SELECT FROM users")
	require.Error(t, err)
	require.Contains(t, err.Error(), "offset 7")
}

func TestParseNotAndParens(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE NOT (age < 18)")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	_, ok := sel.Where.(*ast.UnaryExpr)
	require.True(t, ok)
}
