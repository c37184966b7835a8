package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/sql/ast"
)

func TestComparisonTrue(t *testing.T) {
	row := MapRow{"age": int64(20)}
	expr := &ast.BinaryExpr{Op: ">=", Left: &ast.ColumnRef{Name: "age"}, Right: &ast.Literal{Value: int64(18)}}
	res, err := EvaluatePredicate(expr, row)
	require.NoError(t, err)
	require.Equal(t, True, res)
}

func TestComparisonWithNullIsUnknown(t *testing.T) {
	row := MapRow{"age": nil}
	expr := &ast.BinaryExpr{Op: "=", Left: &ast.ColumnRef{Name: "age"}, Right: &ast.Literal{Value: int64(18)}}
	res, err := EvaluatePredicate(expr, row)
	require.NoError(t, err)
	require.Equal(t, Unknown, res)
}

func TestAndWithUnknownAndFalseIsFalse(t *testing.T) {
	row := MapRow{"age": nil}
	unknown := &ast.BinaryExpr{Op: "=", Left: &ast.ColumnRef{Name: "age"}, Right: &ast.Literal{Value: int64(18)}}
	falseExpr := &ast.Literal{Value: false}
	expr := &ast.BinaryExpr{Op: "AND", Left: unknown, Right: falseExpr}
	res, err := EvaluatePredicate(expr, row)
	require.NoError(t, err)
	require.Equal(t, False, res)
}

func TestOrWithUnknownAndTrueIsTrue(t *testing.T) {
	row := MapRow{"age": nil}
	unknown := &ast.BinaryExpr{Op: "=", Left: &ast.ColumnRef{Name: "age"}, Right: &ast.Literal{Value: int64(18)}}
	trueExpr := &ast.Literal{Value: true}
	expr := &ast.BinaryExpr{Op: "OR", Left: unknown, Right: trueExpr}
	res, err := EvaluatePredicate(expr, row)
	require.NoError(t, err)
	require.Equal(t, True, res)
}

func TestIsNullAndIsNotNullAreTotal(t *testing.T) {
	row := MapRow{"name": nil}
	isNull := &ast.IsNullExpr{Expr: &ast.ColumnRef{Name: "name"}}
	res, err := EvaluatePredicate(isNull, row)
	require.NoError(t, err)
	require.Equal(t, True, res)

	isNotNull := &ast.IsNullExpr{Expr: &ast.ColumnRef{Name: "name"}, Negate: true}
	res, err = EvaluatePredicate(isNotNull, row)
	require.NoError(t, err)
	require.Equal(t, False, res)
}

func TestNotFlipsTrueFalseButNotUnknown(t *testing.T) {
	row := MapRow{"age": nil}
	unknown := &ast.BinaryExpr{Op: "=", Left: &ast.ColumnRef{Name: "age"}, Right: &ast.Literal{Value: int64(18)}}
	res, err := EvaluatePredicate(&ast.UnaryExpr{Op: "NOT", Expr: unknown}, row)
	require.NoError(t, err)
	require.Equal(t, Unknown, res)
}

func TestStringComparison(t *testing.T) {
	row := MapRow{"name": "bob"}
	expr := &ast.BinaryExpr{Op: "!=", Left: &ast.ColumnRef{Name: "name"}, Right: &ast.Literal{Value: "alice"}}
	res, err := EvaluatePredicate(expr, row)
	require.NoError(t, err)
	require.Equal(t, True, res)
}
