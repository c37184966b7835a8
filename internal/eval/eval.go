// Package eval implements Kleene three-valued logic evaluation of WHERE
// expressions over a row. No teacher or pack repo grounds this directly
// (SQL engines with a NULL-aware WHERE clause are absent from the
// corpus), so its error handling and naming follow the ambient style
// established by dberr/storage: typed errors, no panics on bad input.
package eval

import (
	"strings"

	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/sql/ast"
)

// TriBool is a three-valued logic result: True, False, or Unknown (the
// result of any comparison involving NULL).
type TriBool int

const (
	Unknown TriBool = iota
	True
	False
)

func fromBool(b bool) TriBool {
	if b {
		return True
	}
	return False
}

// Row looks up a column's value by name for expression evaluation.
type Row interface {
	Column(name string) (any, bool)
}

// MapRow is a Row backed by a plain map, used by callers that already
// have column name to value pairs in hand (the executor's WHERE and SET
// evaluation, tests).
type MapRow map[string]any

func (m MapRow) Column(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// EvaluatePredicate evaluates expr as a WHERE-clause predicate, returning
// Kleene's three-valued result. A row satisfies WHERE only when the
// result is True; False and Unknown both exclude it.
func EvaluatePredicate(expr ast.Expr, row Row) (TriBool, error) {
	switch e := expr.(type) {
	case *ast.BinaryExpr:
		switch e.Op {
		case "AND":
			left, err := EvaluatePredicate(e.Left, row)
			if err != nil {
				return Unknown, err
			}
			if left == False {
				return False, nil
			}
			right, err := EvaluatePredicate(e.Right, row)
			if err != nil {
				return Unknown, err
			}
			if right == False {
				return False, nil
			}
			if left == True && right == True {
				return True, nil
			}
			return Unknown, nil
		case "OR":
			left, err := EvaluatePredicate(e.Left, row)
			if err != nil {
				return Unknown, err
			}
			if left == True {
				return True, nil
			}
			right, err := EvaluatePredicate(e.Right, row)
			if err != nil {
				return Unknown, err
			}
			if right == True {
				return True, nil
			}
			if left == False && right == False {
				return False, nil
			}
			return Unknown, nil
		default:
			return evaluateComparison(e, row)
		}

	case *ast.UnaryExpr:
		if e.Op != "NOT" {
			return Unknown, dberr.New(dberr.SemanticError, dberr.CategoryUser, "unsupported unary operator").WithContext(e.Op)
		}
		inner, err := EvaluatePredicate(e.Expr, row)
		if err != nil {
			return Unknown, err
		}
		switch inner {
		case True:
			return False, nil
		case False:
			return True, nil
		default:
			return Unknown, nil
		}

	case *ast.IsNullExpr:
		v, err := EvaluateScalar(e.Expr, row)
		if err != nil {
			return Unknown, err
		}
		isNull := v == nil
		if e.Negate {
			return fromBool(!isNull), nil
		}
		return fromBool(isNull), nil

	case *ast.Literal:
		if b, ok := e.Value.(bool); ok {
			return fromBool(b), nil
		}
		if e.Value == nil {
			return Unknown, nil
		}
		return Unknown, dberr.New(dberr.TypeError, dberr.CategoryUser, "literal is not boolean in predicate position")

	default:
		return evaluateComparison(expr, row)
	}
}

func evaluateComparison(expr ast.Expr, row Row) (TriBool, error) {
	be, ok := expr.(*ast.BinaryExpr)
	if !ok {
		return Unknown, dberr.New(dberr.SemanticError, dberr.CategoryUser, "expression is not a valid predicate")
	}

	left, err := EvaluateScalar(be.Left, row)
	if err != nil {
		return Unknown, err
	}
	right, err := EvaluateScalar(be.Right, row)
	if err != nil {
		return Unknown, err
	}
	if left == nil || right == nil {
		return Unknown, nil
	}

	cmp, ok := compare(left, right)
	if !ok {
		return Unknown, dberr.New(dberr.TypeError, dberr.CategoryUser, "incomparable operand types in predicate")
	}

	switch be.Op {
	case "=":
		return fromBool(cmp == 0), nil
	case "!=":
		return fromBool(cmp != 0), nil
	case "<":
		return fromBool(cmp < 0), nil
	case "<=":
		return fromBool(cmp <= 0), nil
	case ">":
		return fromBool(cmp > 0), nil
	case ">=":
		return fromBool(cmp >= 0), nil
	default:
		return Unknown, dberr.New(dberr.SemanticError, dberr.CategoryUser, "unsupported comparison operator").WithContext(be.Op)
	}
}

// EvaluateScalar resolves expr to a concrete value (possibly nil). It is
// total for column refs and literals; callers performing comparisons
// treat a nil result as NULL propagation.
func EvaluateScalar(expr ast.Expr, row Row) (any, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return e.Value, nil
	case *ast.ColumnRef:
		v, ok := row.Column(e.Name)
		if !ok {
			return nil, dberr.New(dberr.ColumnNotFound, dberr.CategoryUser, "unknown column").WithContext(e.Name)
		}
		return v, nil
	default:
		return nil, dberr.New(dberr.SemanticError, dberr.CategoryUser, "expression is not a scalar value")
	}
}

// compare orders two non-nil scalar values, coercing numeric types and
// comparing strings case-sensitively byte-wise.
func compare(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs), true
		}
		return 0, false
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			if ab == bb {
				return 0, true
			}
			if !ab && bb {
				return -1, true
			}
			return 1, true
		}
		return 0, false
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
