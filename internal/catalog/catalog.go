// Package catalog implements kzdb's system catalog: two heaps (tables and
// columns) stored as ordinary data pages inside the shared database file,
// with an in-memory table cache that warms on first read and invalidates
// on every write.
//
// Grounded on _examples/original_source/src/catalog/catalog_manager.h
// (table_exists/get_table/list_tables/get_columns/create_table/drop_table
// with cascade) for the two-heap split and cache contract, since
// tuannm99-novasql/internal/catalog/model.go and
// internal/engine/db.go's JSON-sidecar TableMeta are both too thin to
// ground the full in-file design.
package catalog

import (
	"log/slog"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/text/cases"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/heap"
	"github.com/kzdb/kzdb/internal/logging"
	"github.com/kzdb/kzdb/internal/storage"
)

// fold canonicalizes an identifier for case-insensitive comparison, using
// Unicode case folding rather than ASCII-only strings.EqualFold, since
// identifiers are UTF-8 text (see rowcodec.go's ColVarchar/ColText).
var foldCaser = cases.Fold()

func fold(s string) string { return foldCaser.String(s) }

// MaxColumnsPerTable and MaxColumnNameLength mirror the original
// implementation's common/config.h limits enforced by its DDL executor.
const (
	MaxColumnsPerTable  = 1024
	MaxColumnNameLength = 255
)

// Constraint mask bits, matching the original implementation's
// catalog/schema.cpp encode_constraints/decode_constraints layout.
const (
	notNullMask    = 0x01
	primaryKeyMask = 0x02
	uniqueMask     = 0x04
	defaultMask    = 0x08
)

// ColumnDef describes one column when creating a table.
type ColumnDef struct {
	Name       string
	Type       storage.ColumnType
	Length     uint32
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	HasDefault bool
	Default    string // literal's textual form; meaningful only if HasDefault
}

// TableCatalogEntry is one row of the tables system heap.
type TableCatalogEntry struct {
	ID         uint32
	Name       string
	RootPageID uint32
	CreateSQL  string
}

// ColumnCatalogEntry is one row of the columns system heap.
type ColumnCatalogEntry struct {
	TableID    uint32
	ColumnID   uint32
	Ordinal    int
	Name       string
	Type       storage.ColumnType
	Length     uint32
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	HasDefault bool
	Default    string
}

var tableEntrySchema = storage.Schema{Columns: []storage.Column{
	{Name: "id", Type: storage.ColBigint},
	{Name: "name", Type: storage.ColVarchar},
	{Name: "root_page_id", Type: storage.ColBigint},
	{Name: "create_sql", Type: storage.ColVarchar},
}}

var columnEntrySchema = storage.Schema{Columns: []storage.Column{
	{Name: "table_id", Type: storage.ColBigint},
	{Name: "column_id", Type: storage.ColBigint},
	{Name: "ordinal", Type: storage.ColBigint},
	{Name: "name", Type: storage.ColVarchar},
	{Name: "type", Type: storage.ColInteger},
	{Name: "length", Type: storage.ColBigint},
	{Name: "constraint_mask", Type: storage.ColInteger},
	{Name: "default_literal", Type: storage.ColVarchar, Nullable: true},
}}

func encodeConstraintMask(col ColumnDef) int32 {
	var mask int32
	if !col.Nullable {
		mask |= notNullMask
	}
	if col.PrimaryKey {
		mask |= primaryKeyMask
	}
	if col.Unique || col.PrimaryKey {
		mask |= uniqueMask
	}
	if col.HasDefault {
		mask |= defaultMask
	}
	return mask
}

func decodeConstraintMask(mask int32) (nullable, primaryKey, unique, hasDefault bool) {
	nullable = mask&notNullMask == 0
	primaryKey = mask&primaryKeyMask != 0
	unique = mask&uniqueMask != 0
	hasDefault = mask&defaultMask != 0
	return
}

type tableCacheEntry struct {
	entry TableCatalogEntry
	loc   heap.RowLocation
}

// Catalog is the top-level system catalog.
type Catalog struct {
	pm      *bufferpool.Pool
	tables  *heap.Heap
	columns *heap.Heap
	log     *slog.Logger

	mu     sync.Mutex
	cache  map[string]*tableCacheEntry // keyed by fold(name)
	loaded bool
}

// Open bootstraps the two system heaps on first use (via the metadata
// page's catalog roots) or reopens them on an existing database file.
func Open(pm *bufferpool.Pool, log *slog.Logger) (*Catalog, error) {
	log = logging.Or(log)

	tablesRoot := pm.TablesRoot()
	columnsRoot := pm.ColumnsRoot()

	var tablesHeap, columnsHeap *heap.Heap
	if tablesRoot == storage.InvalidPageID {
		th, newTablesRoot, err := heap.Create(pm, log)
		if err != nil {
			return nil, err
		}
		ch, newColumnsRoot, err := heap.Create(pm, log)
		if err != nil {
			return nil, err
		}
		if err := pm.SetCatalogRoots(newTablesRoot, newColumnsRoot); err != nil {
			return nil, err
		}
		tablesHeap, columnsHeap = th, ch
		log.Debug("catalog: bootstrapped system heaps", "tables_root", newTablesRoot, "columns_root", newColumnsRoot)
	} else {
		tablesHeap = heap.Open(pm, tablesRoot, log)
		columnsHeap = heap.Open(pm, columnsRoot, log)
	}

	return &Catalog{pm: pm, tables: tablesHeap, columns: columnsHeap, log: log}, nil
}

func (c *Catalog) invalidateLocked() {
	c.cache = nil
	c.loaded = false
}

func (c *Catalog) loadCacheLocked() error {
	if c.loaded {
		return nil
	}
	cache := make(map[string]*tableCacheEntry)
	err := c.tables.Scan(func(loc heap.RowLocation, payload []byte) error {
		values, err := storage.DecodeRow(tableEntrySchema, payload)
		if err != nil {
			return err
		}
		entry := TableCatalogEntry{
			ID:         uint32(values[0].(int64)),
			Name:       values[1].(string),
			RootPageID: uint32(values[2].(int64)),
			CreateSQL:  values[3].(string),
		}
		cache[fold(entry.Name)] = &tableCacheEntry{entry: entry, loc: loc}
		return nil
	})
	if err != nil {
		return err
	}
	c.cache = cache
	c.loaded = true
	return nil
}

// TableExists reports whether name is a known table (case-insensitive).
func (c *Catalog) TableExists(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCacheLocked(); err != nil {
		return false, err
	}
	_, ok := c.cache[fold(name)]
	return ok, nil
}

// GetTable returns the entry for name, or ok=false if it does not exist.
func (c *Catalog) GetTable(name string) (TableCatalogEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCacheLocked(); err != nil {
		return TableCatalogEntry{}, false, err
	}
	ce, ok := c.cache[fold(name)]
	if !ok {
		return TableCatalogEntry{}, false, nil
	}
	return ce.entry, true, nil
}

// ListTables returns every known table, in no particular order.
func (c *Catalog) ListTables() ([]TableCatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCacheLocked(); err != nil {
		return nil, err
	}
	out := make([]TableCatalogEntry, 0, len(c.cache))
	for _, ce := range c.cache {
		out = append(out, ce.entry)
	}
	return out, nil
}

// GetColumns returns tableID's columns in ordinal order.
func (c *Catalog) GetColumns(tableID uint32) ([]ColumnCatalogEntry, error) {
	var out []ColumnCatalogEntry
	err := c.columns.Scan(func(loc heap.RowLocation, payload []byte) error {
		values, err := storage.DecodeRow(columnEntrySchema, payload)
		if err != nil {
			return err
		}
		if uint32(values[0].(int64)) != tableID {
			return nil
		}
		nullable, primaryKey, unique, hasDefault := decodeConstraintMask(values[6].(int32))
		defaultLiteral := ""
		if values[7] != nil {
			defaultLiteral = values[7].(string)
		}
		out = append(out, ColumnCatalogEntry{
			TableID:    tableID,
			ColumnID:   uint32(values[1].(int64)),
			Ordinal:    int(values[2].(int64)),
			Name:       values[3].(string),
			Type:       storage.ColumnType(values[4].(int32)),
			Length:     uint32(values[5].(int64)),
			Nullable:   nullable,
			PrimaryKey: primaryKey,
			Unique:     unique,
			HasDefault: hasDefault,
			Default:    defaultLiteral,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortColumnsByOrdinal(out)
	return out, nil
}

func sortColumnsByOrdinal(cols []ColumnCatalogEntry) {
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j-1].Ordinal > cols[j].Ordinal; j-- {
			cols[j-1], cols[j] = cols[j], cols[j-1]
		}
	}
}

// validateColumns applies the DDL checks the original implementation's
// DDLExecutor::create_from_ast runs before allocating anything: a non-empty
// column list within MaxColumnsPerTable, no duplicate (case-folded) names,
// names within MaxColumnNameLength, and at most one PRIMARY KEY column.
func validateColumns(columns []ColumnDef) error {
	if len(columns) == 0 {
		return dberr.New(dberr.SyntaxError, dberr.CategoryUser, "table must have at least one column")
	}
	if len(columns) > MaxColumnsPerTable {
		return dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "too many columns")
	}

	seen := make(map[string]bool, len(columns))
	primaryKeySeen := false
	for _, col := range columns {
		if col.Name == "" {
			return dberr.New(dberr.SyntaxError, dberr.CategoryUser, "column name must not be empty")
		}
		if len(col.Name) > MaxColumnNameLength {
			return dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "column name too long").WithContext(col.Name)
		}
		folded := fold(col.Name)
		if seen[folded] {
			return dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "duplicate column name").WithContext(col.Name)
		}
		seen[folded] = true

		if col.PrimaryKey {
			if primaryKeySeen {
				return dberr.New(dberr.ConstraintViolation, dberr.CategoryUser, "multiple PRIMARY KEY columns")
			}
			primaryKeySeen = true
		}
	}
	return nil
}

// CreateTable allocates a new row heap for the table, persists its
// catalog entry and column entries, and invalidates the table cache.
func (c *Catalog) CreateTable(name string, columns []ColumnDef, createSQL string) (TableCatalogEntry, error) {
	if exists, err := c.TableExists(name); err != nil {
		return TableCatalogEntry{}, err
	} else if exists {
		return TableCatalogEntry{}, dberr.New(dberr.TableAlreadyExists, dberr.CategoryUser, "table already exists").WithContext(name)
	}

	if err := validateColumns(columns); err != nil {
		return TableCatalogEntry{}, err
	}

	_, rootID, err := heap.Create(c.pm, c.log)
	if err != nil {
		return TableCatalogEntry{}, err
	}

	id, err := c.pm.NextTableID()
	if err != nil {
		return TableCatalogEntry{}, err
	}

	entry := TableCatalogEntry{ID: id, Name: name, RootPageID: rootID, CreateSQL: createSQL}
	payload, err := storage.EncodeRow(tableEntrySchema, []any{
		int64(entry.ID), entry.Name, int64(entry.RootPageID), entry.CreateSQL,
	})
	if err != nil {
		return TableCatalogEntry{}, err
	}
	tableLoc, err := c.tables.Insert(payload)
	if err != nil {
		return TableCatalogEntry{}, err
	}

	var columnLocs []heap.RowLocation
	for i, col := range columns {
		var defaultLiteral any
		if col.HasDefault {
			defaultLiteral = col.Default
		}
		colPayload, err := storage.EncodeRow(columnEntrySchema, []any{
			int64(id), int64(i + 1), int64(i), col.Name, int32(col.Type),
			int64(col.Length), encodeConstraintMask(col), defaultLiteral,
		})
		if err != nil {
			return TableCatalogEntry{}, c.rollbackCreateTable(tableLoc, columnLocs, rootID, err)
		}
		loc, err := c.columns.Insert(colPayload)
		if err != nil {
			return TableCatalogEntry{}, c.rollbackCreateTable(tableLoc, columnLocs, rootID, err)
		}
		columnLocs = append(columnLocs, loc)
	}

	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()

	return entry, nil
}

// rollbackCreateTable undoes a partially-completed CreateTable: the table
// row, every column row already inserted, and the freshly allocated row
// heap are all removed, with any cleanup failures aggregated alongside the
// original cause rather than silently dropped.
func (c *Catalog) rollbackCreateTable(tableLoc heap.RowLocation, columnLocs []heap.RowLocation, rootID uint32, cause error) error {
	combined := multierr.Append(error(nil), cause)
	if err := c.tables.Delete(tableLoc); err != nil {
		combined = multierr.Append(combined, err)
	}
	for _, loc := range columnLocs {
		if err := c.columns.Delete(loc); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	if err := heap.Open(c.pm, rootID, c.log).Truncate(); err != nil {
		combined = multierr.Append(combined, err)
	} else if err := c.pm.FreePage(rootID); err != nil {
		combined = multierr.Append(combined, err)
	}
	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()
	return combined
}

// DropTable removes name's catalog entry, frees its row heap, and cascades
// deletion of its column entries. Per DESIGN.md's Open Question decision,
// drop always cascades; there is no non-cascading variant.
func (c *Catalog) DropTable(name string) error {
	entry, ok, err := c.GetTable(name)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.New(dberr.TableNotFound, dberr.CategoryUser, "table not found").WithContext(name)
	}

	c.mu.Lock()
	loc := c.cache[fold(name)].loc
	c.mu.Unlock()

	if err := c.tables.Delete(loc); err != nil {
		return err
	}

	var columnLocs []heap.RowLocation
	err = c.columns.Scan(func(colLoc heap.RowLocation, payload []byte) error {
		values, err := storage.DecodeRow(columnEntrySchema, payload)
		if err != nil {
			return err
		}
		if uint32(values[0].(int64)) == entry.ID {
			columnLocs = append(columnLocs, colLoc)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, colLoc := range columnLocs {
		if err := c.columns.Delete(colLoc); err != nil {
			return err
		}
	}

	rowHeap := heap.Open(c.pm, entry.RootPageID, c.log)
	if err := rowHeap.Truncate(); err != nil {
		return err
	}
	if err := c.pm.FreePage(entry.RootPageID); err != nil {
		return err
	}

	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()
	return nil
}

// NormalizeIdentifier exposes the catalog's identifier folding rule for
// callers (the parser/executor) that need the same case-insensitive
// comparison outside the catalog itself.
func NormalizeIdentifier(s string) string { return fold(s) }
