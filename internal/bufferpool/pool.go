// Package bufferpool implements PageManager: a fixed-capacity page cache
// with pin/unpin semantics, true LRU eviction of unpinned frames, and a
// persistent free list of reclaimed page ids, all stored in the single
// shared database file owned by storage.FileManager.
//
// Grounded on tuannm99-novasql/internal/bufferpool/pool.go's frame table
// and three-path GetPage (hit / free slot / evict), with the FileSet
// indirection dropped (one shared file) and the Clock replacer swapped for
// a genuine doubly-linked LRU list per spec.md's LRU invariant.
package bufferpool

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/logging"
	"github.com/kzdb/kzdb/internal/storage"
)

const DefaultCapacity = 128

type frame struct {
	pageID   uint32
	page     *storage.Page
	dirty    bool
	pinCount int32
	lruElem  *list.Element // non-nil iff pinCount == 0 and frame is evictable
}

// Pool is PageManager: the buffer pool sitting between TableHeap/Catalog
// and the raw file.
type Pool struct {
	fm       *storage.FileManager
	capacity int
	log      *slog.Logger

	mu        sync.Mutex
	frames    []*frame
	pageTable map[uint32]int // page id -> frame index
	lru       *list.List     // holds frame indices; front = most recently used
	touches   *atomic.Uint64 // monotonic access clock, bumped into page.lsn on dirty writes
	meta      metadata
}

// Open bootstraps or loads the metadata page and returns a ready Pool.
func Open(fm *storage.FileManager, capacity int, log *slog.Logger) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	log = logging.Or(log)

	p := &Pool{
		fm:        fm,
		capacity:  capacity,
		log:       log,
		frames:    make([]*frame, capacity),
		pageTable: make(map[uint32]int),
		lru:       list.New(),
		touches:   atomic.NewUint64(0),
	}

	pageCount, err := fm.PageCount()
	if err != nil {
		return nil, err
	}

	if pageCount == 0 {
		p.meta = newMetadata()
		buf := make([]byte, storage.PageSize)
		pg, _ := storage.NewPage(buf, metadataPageID, storage.PageMetadata)
		p.meta.encodeInto(pg.Buf)
		if err := fm.WritePage(metadataPageID, pg.Buf); err != nil {
			return nil, err
		}
		log.Debug("bufferpool: bootstrapped new metadata page")
		return p, nil
	}

	buf, err := fm.ReadPage(metadataPageID)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(buf)
	if err != nil {
		return nil, err
	}
	p.meta = meta
	log.Debug("bufferpool: loaded metadata page", "tables_root", meta.tablesRoot, "columns_root", meta.columnsRoot)
	return p, nil
}

// TablesRoot / ColumnsRoot / SetCatalogRoots let the catalog persist and
// recover its two system-heap root page ids via the metadata page.
func (p *Pool) TablesRoot() uint32  { p.mu.Lock(); defer p.mu.Unlock(); return p.meta.tablesRoot }
func (p *Pool) ColumnsRoot() uint32 { p.mu.Lock(); defer p.mu.Unlock(); return p.meta.columnsRoot }

func (p *Pool) SetCatalogRoots(tablesRoot, columnsRoot uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta.tablesRoot = tablesRoot
	p.meta.columnsRoot = columnsRoot
	return p.saveMetadataLocked()
}

// NextTableID allocates and persists the next catalog table id.
func (p *Pool) NextTableID() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.meta.nextTableID
	p.meta.nextTableID++
	if err := p.saveMetadataLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Pool) saveMetadataLocked() error {
	buf := make([]byte, storage.PageSize)
	pg, _ := storage.NewPage(buf, metadataPageID, storage.PageMetadata)
	p.meta.encodeInto(pg.Buf)
	return p.fm.WritePage(metadataPageID, pg.Buf)
}

// NewPage allocates a page id — reused from the free list when available,
// otherwise a fresh one past the end of the file — pins it in the buffer
// and returns it zero-initialized as typ. Per spec.md's crash-safety
// ordering, the zeroed page is flushed to disk synchronously before
// NewPage returns.
func (p *Pool) NewPage(typ storage.PageType) (*storage.Page, uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.allocatePageIDLocked()
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, storage.PageSize)
	pg, _ := storage.NewPage(buf, id, typ)
	if err := p.fm.WritePage(id, buf); err != nil {
		return nil, 0, err
	}

	idx, err := p.obtainFrameLocked(id)
	if err != nil {
		return nil, 0, err
	}
	p.frames[idx].page = pg
	p.frames[idx].dirty = false
	p.frames[idx].pinCount = 1
	p.removeFromLRULocked(idx)

	p.log.Debug("bufferpool: new_page", "page_id", id, "type", typ)
	return pg, id, nil
}

func (p *Pool) allocatePageIDLocked() (uint32, error) {
	for p.meta.firstTrunkID != 0 {
		trunkBuf, err := p.fm.ReadPage(p.meta.firstTrunkID)
		if err != nil {
			return 0, err
		}
		body := trunkBuf[storage.HeaderSize:]
		if leaf, ok := trunkPopLeaf(body); ok {
			if err := p.fm.WritePage(p.meta.firstTrunkID, trunkBuf); err != nil {
				return 0, err
			}
			p.meta.freeCount--
			if err := p.saveMetadataLocked(); err != nil {
				return 0, err
			}
			return leaf, nil
		}

		// Head trunk has no leaves of its own: repurpose the trunk page
		// itself as the allocated page and advance past it in the chain.
		id := p.meta.firstTrunkID
		p.meta.firstTrunkID = trunkNext(body)
		p.meta.freeCount--
		if err := p.saveMetadataLocked(); err != nil {
			return 0, err
		}
		return id, nil
	}

	id := p.meta.nextPageID
	p.meta.nextPageID++
	if err := p.saveMetadataLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// FreePage returns id to the free list for reuse. id must not currently be
// pinned. Per spec.md's crash-safety ordering the free-list trunk update
// is flushed synchronously.
func (p *Pool) FreePage(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[id]; ok {
		f := p.frames[idx]
		if f.pinCount != 0 {
			return dberr.New(dberr.PageLocked, dberr.CategoryTransient, "cannot free a pinned page").WithContext(fmt.Sprintf("page %d", id))
		}
		p.removeFromLRULocked(idx)
		delete(p.pageTable, id)
		p.frames[idx] = nil
	}

	capacity := trunkCapacity(storage.PageSize - storage.HeaderSize)

	if p.meta.firstTrunkID != 0 {
		trunkBuf, err := p.fm.ReadPage(p.meta.firstTrunkID)
		if err != nil {
			return err
		}
		body := trunkBuf[storage.HeaderSize:]
		if trunkPushLeaf(body, capacity, id) {
			if err := p.fm.WritePage(p.meta.firstTrunkID, trunkBuf); err != nil {
				return err
			}
			p.meta.freeCount++
			return p.saveMetadataLocked()
		}
	}

	// Current trunk (if any) is full or absent: the freed id itself becomes
	// the new trunk head, pointing at the previous trunk and holding zero
	// leaves so far.
	trunkBuf := make([]byte, storage.PageSize)
	pg, _ := storage.NewPage(trunkBuf, id, storage.PageFree)
	trunkInit(pg.Buf[storage.HeaderSize:], p.meta.firstTrunkID)
	if err := p.fm.WritePage(id, trunkBuf); err != nil {
		return err
	}
	p.meta.firstTrunkID = id
	p.meta.freeCount++
	return p.saveMetadataLocked()
}

// Fetch pins and returns the page for id, loading it from disk (or
// evicting another frame) if it isn't already cached.
func (p *Pool) Fetch(id uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[id]; ok {
		f := p.frames[idx]
		f.pinCount++
		p.removeFromLRULocked(idx)
		return f.page, nil
	}

	idx, err := p.obtainFrameLocked(id)
	if err != nil {
		return nil, err
	}
	buf, err := p.fm.ReadPage(id)
	if err != nil {
		return nil, err
	}
	pg, err := storage.WrapPage(buf)
	if err != nil {
		return nil, err
	}
	p.frames[idx].page = pg
	p.frames[idx].dirty = false
	p.frames[idx].pinCount = 1
	return pg, nil
}

// Unpin releases one pin on id. When dirty is true the frame is marked for
// flush. Once the pin count reaches zero the frame becomes evictable and
// joins the front of the LRU list.
func (p *Pool) Unpin(id uint32, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[id]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if dirty {
		f.dirty = true
	}
	if f.pinCount > 0 {
		f.pinCount--
	}
	if f.pinCount == 0 {
		f.lruElem = p.lru.PushFront(idx)
	}
	return nil
}

// MarkDirty flags a currently-cached page for flush without changing its
// pin count.
func (p *Pool) MarkDirty(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.pageTable[id]; ok {
		p.frames[idx].dirty = true
	}
}

// Flush writes a single cached page back to disk if dirty.
func (p *Pool) Flush(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.pageTable[id]
	if !ok {
		return nil
	}
	return p.flushFrameLocked(idx)
}

// FlushAll writes every dirty cached page back to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for idx, f := range p.frames {
		if f == nil || !f.dirty {
			continue
		}
		if err := p.flushFrameLocked(idx); err != nil {
			return err
		}
	}
	return p.fm.Sync()
}

func (p *Pool) flushFrameLocked(idx int) error {
	f := p.frames[idx]
	if f == nil || !f.dirty {
		return nil
	}
	p.touches.Inc()
	f.page.SetLSN(uint32(p.touches.Load()))
	if err := p.fm.WritePage(f.pageID, f.page.Buf); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

func (p *Pool) removeFromLRULocked(idx int) {
	f := p.frames[idx]
	if f.lruElem != nil {
		p.lru.Remove(f.lruElem)
		f.lruElem = nil
	}
}

// obtainFrameLocked finds a frame slot for id: a free slot if one exists,
// otherwise the least-recently-used evictable frame.
func (p *Pool) obtainFrameLocked(id uint32) (int, error) {
	for i, f := range p.frames {
		if f == nil {
			p.frames[i] = &frame{pageID: id}
			p.pageTable[id] = i
			return i, nil
		}
	}

	back := p.lru.Back()
	if back == nil {
		return 0, dberr.New(dberr.CacheFull, dberr.CategoryTransient, "buffer pool full: all frames pinned")
	}
	victimIdx := back.Value.(int)
	victim := p.frames[victimIdx]
	p.lru.Remove(back)
	victim.lruElem = nil

	if victim.dirty {
		if err := p.flushFrameLocked(victimIdx); err != nil {
			p.frames[victimIdx].lruElem = p.lru.PushFront(victimIdx)
			return 0, err
		}
	}

	delete(p.pageTable, victim.pageID)
	p.frames[victimIdx] = &frame{pageID: id}
	p.pageTable[id] = victimIdx
	return victimIdx, nil
}

func (p *Pool) Capacity() int { return p.capacity }

func (p *Pool) FreeCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta.freeCount
}
