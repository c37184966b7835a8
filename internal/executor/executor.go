// Package executor runs planner.Plan nodes against a catalog and the
// underlying row heaps, producing a Result the caller (REPL, tests) can
// render.
//
// Grounded on tuannm99-novasql's deleted executor.go Result{Columns,Rows,
// AffectedRows} shape and its narrow executorDB interface used as a test
// seam. A multi-row INSERT that fails part-way deletes the rows it already
// placed, aggregating cleanup errors with go.uber.org/multierr; the DDL
// rollback of a half-created table lives in catalog.CreateTable.
package executor

import (
	"log/slog"
	"strings"

	"go.uber.org/multierr"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/catalog"
	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/eval"
	"github.com/kzdb/kzdb/internal/heap"
	"github.com/kzdb/kzdb/internal/logging"
	"github.com/kzdb/kzdb/internal/sql/parser"
	"github.com/kzdb/kzdb/internal/sql/planner"
	"github.com/kzdb/kzdb/internal/storage"
)

// Result is the outcome of running one statement.
type Result struct {
	Columns      []string
	Rows         [][]any
	AffectedRows int
}

// Executor wires the SQL front end to the catalog and row heaps.
type Executor struct {
	pm  *bufferpool.Pool
	cat *catalog.Catalog
	log *slog.Logger
}

func New(pm *bufferpool.Pool, cat *catalog.Catalog, log *slog.Logger) *Executor {
	return &Executor{pm: pm, cat: cat, log: logging.Or(log)}
}

func (e *Executor) openRowHeap(rootPage uint32) *heap.Heap {
	return heap.Open(e.pm, rootPage, e.log)
}

// Execute parses, plans, and runs sql, returning its Result.
func (e *Executor) Execute(sql string) (Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return Result{}, err
	}
	plan, err := planner.Build(stmt, e.cat)
	if err != nil {
		return Result{}, err
	}
	if ct, ok := plan.(*planner.CreateTablePlan); ok {
		ct.CreateSQL = sql
	}
	return e.run(plan)
}

func (e *Executor) run(plan planner.Plan) (Result, error) {
	switch p := plan.(type) {
	case *planner.CreateTablePlan:
		return e.runCreateTable(p)
	case *planner.DropTablePlan:
		return e.runDropTable(p)
	case *planner.TruncatePlan:
		return e.runTruncate(p)
	case *planner.InsertPlan:
		return e.runInsert(p)
	case *planner.SeqScanPlan:
		return e.runSelect(p)
	case *planner.UpdatePlan:
		return e.runUpdate(p)
	case *planner.DeletePlan:
		return e.runDelete(p)
	default:
		return Result{}, dberr.New(dberr.NotImplemented, dberr.CategorySystem, "unsupported plan node")
	}
}

func (e *Executor) runCreateTable(p *planner.CreateTablePlan) (Result, error) {
	_, err := e.cat.CreateTable(p.Table, p.Columns, p.CreateSQL)
	if err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: 0}, nil
}

func (e *Executor) runDropTable(p *planner.DropTablePlan) (Result, error) {
	err := e.cat.DropTable(p.Table)
	if err != nil && p.IfExists && dberr.CodeOf(err) == dberr.TableNotFound {
		return Result{AffectedRows: 0}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: 0}, nil
}

func (e *Executor) runTruncate(p *planner.TruncatePlan) (Result, error) {
	if err := e.openRowHeap(p.RootPage).Truncate(); err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: 0}, nil
}

// runInsert inserts every row, rolling back (deleting) any rows it already
// placed if a later row in the same statement fails, aggregating the
// rollback's own errors alongside the original failure.
func (e *Executor) runInsert(p *planner.InsertPlan) (Result, error) {
	rowHeap := e.openRowHeap(p.RootPage)

	var inserted []heap.RowLocation
	for _, row := range p.Rows {
		values := make([]any, len(row))
		for i, expr := range row {
			v, err := eval.EvaluateScalar(expr, eval.MapRow{})
			if err != nil {
				return Result{}, e.rollbackInsert(rowHeap, inserted, err)
			}
			values[i] = v
		}
		payload, err := storage.EncodeRow(p.Schema, values)
		if err != nil {
			return Result{}, e.rollbackInsert(rowHeap, inserted, err)
		}
		loc, err := rowHeap.Insert(payload)
		if err != nil {
			return Result{}, e.rollbackInsert(rowHeap, inserted, err)
		}
		inserted = append(inserted, loc)
	}
	return Result{AffectedRows: len(inserted)}, nil
}

func (e *Executor) rollbackInsert(h *heap.Heap, inserted []heap.RowLocation, cause error) error {
	var combined error
	combined = multierr.Append(combined, cause)
	for _, loc := range inserted {
		if err := h.Delete(loc); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	return combined
}

func (e *Executor) runSelect(p *planner.SeqScanPlan) (Result, error) {
	rowHeap := e.openRowHeap(p.RootPage)

	columnNames := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		columnNames[i] = c.Name
	}

	outColumns := columnNames
	if p.Project != nil {
		outColumns = make([]string, len(p.Project))
		for i, idx := range p.Project {
			outColumns[i] = columnNames[idx]
		}
	}

	var rows [][]any
	err := rowHeap.Scan(func(loc heap.RowLocation, payload []byte) error {
		if p.Limit >= 0 && len(rows) >= p.Limit {
			return errScanDone
		}
		values, err := storage.DecodeRow(p.Schema, payload)
		if err != nil {
			return err
		}
		if p.Where != nil {
			rowView := rowFromValues(columnNames, values)
			res, err := eval.EvaluatePredicate(p.Where, rowView)
			if err != nil {
				return err
			}
			if res != eval.True {
				return nil
			}
		}
		if p.Project == nil {
			rows = append(rows, values)
			return nil
		}
		projected := make([]any, len(p.Project))
		for i, idx := range p.Project {
			projected[i] = values[idx]
		}
		rows = append(rows, projected)
		return nil
	})
	if err != nil && err != errScanDone {
		return Result{}, err
	}
	return Result{Columns: outColumns, Rows: rows, AffectedRows: len(rows)}, nil
}

func (e *Executor) runUpdate(p *planner.UpdatePlan) (Result, error) {
	rowHeap := e.openRowHeap(p.RootPage)

	columnNames := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		columnNames[i] = c.Name
	}

	type pendingUpdate struct {
		loc    heap.RowLocation
		values []any
	}
	var pending []pendingUpdate

	err := rowHeap.Scan(func(loc heap.RowLocation, payload []byte) error {
		values, err := storage.DecodeRow(p.Schema, payload)
		if err != nil {
			return err
		}
		if p.Where != nil {
			res, err := eval.EvaluatePredicate(p.Where, rowFromValues(columnNames, values))
			if err != nil {
				return err
			}
			if res != eval.True {
				return nil
			}
		}
		updated := append([]any(nil), values...)
		for _, assign := range p.Set {
			idx, ok := columnIndex(p.Columns, assign.Column)
			if !ok {
				return dberr.New(dberr.ColumnNotFound, dberr.CategoryUser, "unknown column").WithContext(assign.Column)
			}
			v, err := eval.EvaluateScalar(assign.Value, rowFromValues(columnNames, values))
			if err != nil {
				return err
			}
			updated[idx] = v
		}
		pending = append(pending, pendingUpdate{loc: loc, values: updated})
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	for _, u := range pending {
		payload, err := storage.EncodeRow(p.Schema, u.values)
		if err != nil {
			return Result{}, err
		}
		if _, err := rowHeap.Update(u.loc, payload); err != nil {
			return Result{}, err
		}
	}
	return Result{AffectedRows: len(pending)}, nil
}

func (e *Executor) runDelete(p *planner.DeletePlan) (Result, error) {
	rowHeap := e.openRowHeap(p.RootPage)

	columnNames := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		columnNames[i] = c.Name
	}

	var toDelete []heap.RowLocation
	err := rowHeap.Scan(func(loc heap.RowLocation, payload []byte) error {
		if p.Where == nil {
			toDelete = append(toDelete, loc)
			return nil
		}
		values, err := storage.DecodeRow(p.Schema, payload)
		if err != nil {
			return err
		}
		res, err := eval.EvaluatePredicate(p.Where, rowFromValues(columnNames, values))
		if err != nil {
			return err
		}
		if res == eval.True {
			toDelete = append(toDelete, loc)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	for _, loc := range toDelete {
		if err := rowHeap.Delete(loc); err != nil {
			return Result{}, err
		}
	}
	return Result{AffectedRows: len(toDelete)}, nil
}

func columnIndex(cols []catalog.ColumnCatalogEntry, name string) (int, bool) {
	for i, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return 0, false
}

func rowFromValues(names []string, values []any) eval.Row {
	m := make(eval.MapRow, len(names))
	for i, n := range names {
		m[n] = values[i]
	}
	return m
}

var errScanDone = dberr.New(dberr.InternalError, dberr.CategorySystem, "scan limit reached")
