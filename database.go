// Package kzdb wires together the storage engine, buffer pool, catalog
// and SQL executor into a single embeddable database handle.
//
// Grounded on tuannm99-novasql's deleted database.go top-level type,
// which opened a FileSet/StorageManager/Catalog triple; re-wired here
// onto the single shared database file (FileManager + bufferpool.Pool)
// plus the heap-backed Catalog.
package kzdb

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/catalog"
	"github.com/kzdb/kzdb/internal/config"
	"github.com/kzdb/kzdb/internal/executor"
	"github.com/kzdb/kzdb/internal/logging"
	"github.com/kzdb/kzdb/internal/storage"
)

// Database is a single open kzdb database file, ready to execute SQL.
type Database struct {
	fm   *storage.FileManager
	pm   *bufferpool.Pool
	cat  *catalog.Catalog
	exec *executor.Executor
	log  *slog.Logger
}

// Open bootstraps or loads the database file named by cfg.Storage,
// creating cfg.Storage.DataDir on fs if it does not already exist.
func Open(fs afero.Fs, cfg config.Config, log *slog.Logger) (*Database, error) {
	log = logging.Or(log)
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, err
	}
	path := cfg.Storage.DataDir + "/" + cfg.Storage.FileName

	fm, err := storage.Open(fs, path, log)
	if err != nil {
		return nil, err
	}

	pm, err := bufferpool.Open(fm, cfg.BufferPool.Capacity, log)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(pm, log)
	if err != nil {
		return nil, err
	}

	exec := executor.New(pm, cat, log)

	log.Info("kzdb: database opened", "path", path)
	return &Database{fm: fm, pm: pm, cat: cat, exec: exec, log: log}, nil
}

// Execute parses, plans, and runs one SQL statement.
func (db *Database) Execute(sql string) (executor.Result, error) {
	return db.exec.Execute(sql)
}

// Close flushes all dirty pages and closes the underlying file.
func (db *Database) Close() error {
	if err := db.pm.FlushAll(); err != nil {
		return err
	}
	return db.fm.Close()
}
