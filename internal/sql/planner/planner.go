// Package planner lowers parsed ast.Statement nodes into plan nodes that
// the executor runs directly, resolving table/column names against the
// catalog once up front rather than re-resolving them on every row.
//
// Grounded on the shape of tuannm99-novasql's deleted builder.go/plan.go
// Plan-marker-interface split between "parse" and "run", generalized to
// carry resolved catalog metadata (column ordinals, storage.ColumnType)
// instead of that teacher's untyped string maps.
package planner

import (
	"fmt"
	"strings"

	"github.com/kzdb/kzdb/internal/catalog"
	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/sql/ast"
	"github.com/kzdb/kzdb/internal/storage"
)

// Plan is any resolved, ready-to-run statement.
type Plan interface{}

type CreateTablePlan struct {
	Table     string
	Columns   []catalog.ColumnDef
	CreateSQL string
}

type DropTablePlan struct {
	Table    string
	IfExists bool
	Cascade  bool // cascade is the catalog's only drop behavior; carried for fidelity
}

type TruncatePlan struct {
	TableID  uint32
	RootPage uint32
}

type InsertPlan struct {
	TableID  uint32
	RootPage uint32
	Schema   storage.Schema
	Rows     [][]ast.Expr // one ast.Expr per schema column, in schema order
}

type SeqScanPlan struct {
	TableID  uint32
	RootPage uint32
	Schema   storage.Schema
	Columns  []catalog.ColumnCatalogEntry
	Where    ast.Expr
	Project  []int // column indexes to project; nil means all
	Limit    int   // <0 means no limit
}

type UpdatePlan struct {
	TableID  uint32
	RootPage uint32
	Schema   storage.Schema
	Columns  []catalog.ColumnCatalogEntry
	Set      []ast.Assignment
	Where    ast.Expr
}

type DeletePlan struct {
	TableID  uint32
	RootPage uint32
	Schema   storage.Schema
	Columns  []catalog.ColumnCatalogEntry
	Where    ast.Expr
}

var typeNames = map[string]storage.ColumnType{
	"BOOLEAN": storage.ColBoolean, "BOOL": storage.ColBoolean,
	"INTEGER": storage.ColInteger, "INT": storage.ColInteger,
	"BIGINT": storage.ColBigint,
	"FLOAT":  storage.ColFloat,
	"DOUBLE": storage.ColDouble,
	"VARCHAR": storage.ColVarchar,
	"TEXT":    storage.ColText,
	"DATE":    storage.ColDate,
	"TIMESTAMP": storage.ColTimestamp,
	"BLOB":    storage.ColBlob,
}

func resolveType(name string) (storage.ColumnType, error) {
	t, ok := typeNames[strings.ToUpper(name)]
	if !ok {
		return 0, dberr.New(dberr.TypeError, dberr.CategoryUser, "unknown column type").WithContext(name)
	}
	return t, nil
}

func schemaFromCatalog(cols []catalog.ColumnCatalogEntry) storage.Schema {
	out := make([]storage.Column, len(cols))
	for i, c := range cols {
		out[i] = storage.Column{Name: c.Name, Type: c.Type, Length: c.Length, Nullable: c.Nullable}
	}
	return storage.Schema{Columns: out}
}

// Build resolves stmt against cat, producing a ready-to-run Plan.
func Build(stmt ast.Statement, cat *catalog.Catalog) (Plan, error) {
	switch s := stmt.(type) {
	case *ast.CreateTableStmt:
		return planCreateTable(s)
	case *ast.DropTableStmt:
		return &DropTablePlan{Table: s.Table, IfExists: s.IfExists, Cascade: s.Cascade}, nil
	case *ast.TruncateStmt:
		return planTruncate(s, cat)
	case *ast.InsertStmt:
		return planInsert(s, cat)
	case *ast.SelectStmt:
		return planSelect(s, cat)
	case *ast.UpdateStmt:
		return planUpdate(s, cat)
	case *ast.DeleteStmt:
		return planDelete(s, cat)
	default:
		return nil, dberr.New(dberr.SemanticError, dberr.CategoryUser, "unsupported statement")
	}
}

func planCreateTable(s *ast.CreateTableStmt) (Plan, error) {
	cols := make([]catalog.ColumnDef, len(s.Columns))
	for i, c := range s.Columns {
		typ, err := resolveType(c.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = catalog.ColumnDef{
			Name:       c.Name,
			Type:       typ,
			Length:     uint32(c.Length),
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique,
		}
		if c.Default != nil {
			lit, ok := c.Default.(*ast.Literal)
			if !ok {
				return nil, dberr.New(dberr.SyntaxError, dberr.CategoryUser, "DEFAULT must be a literal").WithContext(c.Name)
			}
			cols[i].HasDefault = true
			cols[i].Default = formatDefaultLiteral(lit.Value)
		}
	}
	return &CreateTablePlan{Table: s.Table, Columns: cols}, nil
}

func formatDefaultLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}

func planTruncate(s *ast.TruncateStmt, cat *catalog.Catalog) (Plan, error) {
	entry, ok, err := cat.GetTable(s.Table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberr.New(dberr.TableNotFound, dberr.CategoryUser, "table not found").WithContext(s.Table)
	}
	return &TruncatePlan{TableID: entry.ID, RootPage: entry.RootPageID}, nil
}

func resolveTable(cat *catalog.Catalog, name string) (catalog.TableCatalogEntry, []catalog.ColumnCatalogEntry, error) {
	entry, ok, err := cat.GetTable(name)
	if err != nil {
		return catalog.TableCatalogEntry{}, nil, err
	}
	if !ok {
		return catalog.TableCatalogEntry{}, nil, dberr.New(dberr.TableNotFound, dberr.CategoryUser, "table not found").WithContext(name)
	}
	cols, err := cat.GetColumns(entry.ID)
	if err != nil {
		return catalog.TableCatalogEntry{}, nil, err
	}
	return entry, cols, nil
}

func columnIndex(cols []catalog.ColumnCatalogEntry, name string) (int, bool) {
	for i, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return 0, false
}

func planInsert(s *ast.InsertStmt, cat *catalog.Catalog) (Plan, error) {
	entry, cols, err := resolveTable(cat, s.Table)
	if err != nil {
		return nil, err
	}
	schema := schemaFromCatalog(cols)

	// order maps each target schema column to the expression index within
	// one VALUES row, or -1 if that column was omitted (encodes as NULL).
	order := make([]int, len(cols))
	if len(s.Columns) == 0 {
		for i := range cols {
			order[i] = i
		}
	} else {
		for i := range order {
			order[i] = -1
		}
		for exprIdx, colName := range s.Columns {
			idx, ok := columnIndex(cols, colName)
			if !ok {
				return nil, dberr.New(dberr.ColumnNotFound, dberr.CategoryUser, "unknown column").WithContext(colName)
			}
			order[idx] = exprIdx
		}
	}

	rows := make([][]ast.Expr, len(s.Rows))
	for r, row := range s.Rows {
		if len(s.Columns) == 0 && len(row) != len(cols) {
			return nil, dberr.New(dberr.SemanticError, dberr.CategoryUser, "value count does not match column count")
		}
		ordered := make([]ast.Expr, len(cols))
		for i, exprIdx := range order {
			if exprIdx < 0 {
				ordered[i] = &ast.Literal{Value: nil}
				continue
			}
			if exprIdx >= len(row) {
				return nil, dberr.New(dberr.SemanticError, dberr.CategoryUser, "value count does not match column list")
			}
			ordered[i] = row[exprIdx]
		}
		rows[r] = ordered
	}

	return &InsertPlan{TableID: entry.ID, RootPage: entry.RootPageID, Schema: schema, Rows: rows}, nil
}

func planSelect(s *ast.SelectStmt, cat *catalog.Catalog) (Plan, error) {
	entry, cols, err := resolveTable(cat, s.Table)
	if err != nil {
		return nil, err
	}
	schema := schemaFromCatalog(cols)

	var project []int
	if len(s.Columns) > 0 {
		project = make([]int, len(s.Columns))
		for i, name := range s.Columns {
			idx, ok := columnIndex(cols, name)
			if !ok {
				return nil, dberr.New(dberr.ColumnNotFound, dberr.CategoryUser, "unknown column").WithContext(name)
			}
			project[i] = idx
		}
	}

	return &SeqScanPlan{
		TableID: entry.ID, RootPage: entry.RootPageID, Schema: schema, Columns: cols,
		Where: s.Where, Project: project, Limit: s.Limit,
	}, nil
}

func planUpdate(s *ast.UpdateStmt, cat *catalog.Catalog) (Plan, error) {
	entry, cols, err := resolveTable(cat, s.Table)
	if err != nil {
		return nil, err
	}
	schema := schemaFromCatalog(cols)

	for _, assign := range s.Set {
		if _, ok := columnIndex(cols, assign.Column); !ok {
			return nil, dberr.New(dberr.ColumnNotFound, dberr.CategoryUser, "unknown column").WithContext(assign.Column)
		}
	}

	return &UpdatePlan{TableID: entry.ID, RootPage: entry.RootPageID, Schema: schema, Columns: cols, Set: s.Set, Where: s.Where}, nil
}

func planDelete(s *ast.DeleteStmt, cat *catalog.Catalog) (Plan, error) {
	entry, cols, err := resolveTable(cat, s.Table)
	if err != nil {
		return nil, err
	}
	schema := schemaFromCatalog(cols)
	return &DeletePlan{TableID: entry.ID, RootPage: entry.RootPageID, Schema: schema, Columns: cols, Where: s.Where}, nil
}
