package storage

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/logging"
)

// FileManager owns the single shared database file and performs raw,
// fixed-size page I/O against it. It has no notion of slots, records or
// free lists — that is PageManager's and TableHeap's job.
//
// Grounded on tuannm99-novasql/internal/storage/pager.go's single-file
// *os.File + sync.RWMutex shape, generalized to the offset convention from
// the original file_manager.h (page 1 starts at file offset 0).
type FileManager struct {
	mu     sync.RWMutex
	fs     afero.Fs
	file   afero.File
	path   string
	log    *slog.Logger
	closed bool
}

// Open creates (if missing) and opens the database file at path on fs. A
// nil fs defaults to the OS filesystem via afero.NewOsFs().
func Open(fs afero.Fs, path string, log *slog.Logger) (*FileManager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	log = logging.Or(log)

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.FileNotFound, "Open", "FileManager").WithContext(path)
	}

	log.Debug("filemanager: opened", "path", path)
	return &FileManager{fs: fs, file: f, path: path, log: log}, nil
}

// Path returns the underlying file path.
func (fm *FileManager) Path() string { return fm.path }

// Size returns the current file size in bytes.
func (fm *FileManager) Size() (int64, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	info, err := fm.file.Stat()
	if err != nil {
		return 0, dberr.Wrap(err, dberr.IOError, "Size", "FileManager")
	}
	return info.Size(), nil
}

// PageCount returns how many whole pages currently exist in the file,
// including the metadata page (page id 1 occupies file offset 0).
func (fm *FileManager) PageCount() (uint32, error) {
	size, err := fm.Size()
	if err != nil {
		return 0, err
	}
	return uint32(size / PageSize), nil
}

func pageOffset(id uint32) int64 {
	return int64(id-1) * int64(PageSize)
}

// ReadPage reads the PageSize bytes for page id into a new buffer. Reading
// past the end of file (a page never written) yields a zero-filled buffer,
// matching a freshly allocated but not yet flushed page.
func (fm *FileManager) ReadPage(id uint32) ([]byte, error) {
	if id == InvalidPageID {
		return nil, dberr.New(dberr.InvalidArgument, dberr.CategoryUser, "page id 0 is invalid")
	}

	fm.mu.RLock()
	defer fm.mu.RUnlock()

	buf := make([]byte, PageSize)
	n, err := fm.file.ReadAt(buf, pageOffset(id))
	if err != nil && n == 0 {
		return buf, nil
	}
	if err != nil && n < PageSize {
		return buf, nil
	}
	return buf, nil
}

// WritePage writes buf (which must be exactly PageSize bytes) at page id's
// offset.
func (fm *FileManager) WritePage(id uint32, buf []byte) error {
	if len(buf) != PageSize {
		return ErrWrongPageSize
	}
	if id == InvalidPageID {
		return dberr.New(dberr.InvalidArgument, dberr.CategoryUser, "page id 0 is invalid")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if _, err := fm.file.WriteAt(buf, pageOffset(id)); err != nil {
		return dberr.Wrap(err, dberr.WriteError, "WritePage", "FileManager").WithContext(fmt.Sprintf("page %d", id))
	}
	return nil
}

// Sync flushes the OS file buffers for the database file.
func (fm *FileManager) Sync() error {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	if syncer, ok := fm.file.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return dberr.Wrap(err, dberr.SyncError, "Sync", "FileManager")
		}
	}
	return nil
}

// Close syncs and closes the underlying file.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.closed {
		return nil
	}
	fm.closed = true

	var syncErr error
	if syncer, ok := fm.file.(interface{ Sync() error }); ok {
		syncErr = syncer.Sync()
	}
	closeErr := fm.file.Close()

	fm.log.Debug("filemanager: closed", "path", fm.path)

	combined := multierr.Append(syncErr, closeErr)
	if combined != nil {
		return dberr.Wrap(fmt.Errorf("%w", combined), dberr.SyncError, "Close", "FileManager")
	}
	return nil
}
