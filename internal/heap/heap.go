// Package heap implements TableHeap: a doubly-linked chain of slotted data
// pages holding one table's (or system catalog's) rows.
//
// Grounded on tuannm99-novasql/internal/heap/table.go's Insert/Get/Update/
// Delete/Scan control flow, re-addressed from that teacher's "own FileSet's
// local page space" model to the shared page-id space navigated purely via
// root_page_id + next_page_id/prev_page_id links, matching
// _examples/original_source/src/storage/table_heap.h's RowLocation and
// find_tail/append_new_page shape.
package heap

import (
	"log/slog"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/logging"
	"github.com/kzdb/kzdb/internal/storage"
)

// RowLocation addresses a single row: the page it lives on and its slot
// within that page's slot directory.
type RowLocation struct {
	PageID uint32
	Slot   uint16
}

// Heap is a TableHeap bound to one page chain's root.
type Heap struct {
	pm   *bufferpool.Pool
	root uint32
	log  *slog.Logger
}

// Create allocates a fresh root page and returns a Heap owning it.
func Create(pm *bufferpool.Pool, log *slog.Logger) (*Heap, uint32, error) {
	log = logging.Or(log)
	_, rootID, err := pm.NewPage(storage.PageData)
	if err != nil {
		return nil, 0, err
	}
	if err := pm.Unpin(rootID, true); err != nil {
		return nil, 0, err
	}
	return &Heap{pm: pm, root: rootID, log: log}, rootID, nil
}

// Open wraps an existing page chain whose root is already rootID.
func Open(pm *bufferpool.Pool, rootID uint32, log *slog.Logger) *Heap {
	return &Heap{pm: pm, root: rootID, log: logging.Or(log)}
}

func (h *Heap) RootPageID() uint32 { return h.root }

// findTail walks the next_page_id chain starting at pageID and returns the
// last page id, pinning and unpinning one page at a time.
func (h *Heap) findTail(pageID uint32) (uint32, error) {
	cur := pageID
	for {
		pg, err := h.pm.Fetch(cur)
		if err != nil {
			return 0, err
		}
		next := pg.NextPageID()
		if err := h.pm.Unpin(cur, false); err != nil {
			return 0, err
		}
		if next == storage.InvalidPageID {
			return cur, nil
		}
		cur = next
	}
}

// Insert appends payload to the tail page of the chain, extending the
// chain with a freshly allocated page when the tail is full.
func (h *Heap) Insert(payload []byte) (RowLocation, error) {
	tail, err := h.findTail(h.root)
	if err != nil {
		return RowLocation{}, err
	}

	pg, err := h.pm.Fetch(tail)
	if err != nil {
		return RowLocation{}, err
	}

	slot, err := pg.Insert(payload)
	if err == nil {
		if err := h.pm.Unpin(tail, true); err != nil {
			return RowLocation{}, err
		}
		return RowLocation{PageID: tail, Slot: slot}, nil
	}
	if err != storage.ErrNoSpace && err != storage.ErrRecordTooLarge {
		_ = h.pm.Unpin(tail, false)
		return RowLocation{}, err
	}
	if err := h.pm.Unpin(tail, false); err != nil {
		return RowLocation{}, err
	}
	if err == storage.ErrRecordTooLarge {
		return RowLocation{}, dberr.New(dberr.RecordTooLarge, dberr.CategoryUser, "record too large for a page")
	}

	newPg, newID, err := h.pm.NewPage(storage.PageData)
	if err != nil {
		return RowLocation{}, err
	}
	newPg.SetPrevPageID(tail)

	slot, err = newPg.Insert(payload)
	if err != nil {
		_ = h.pm.Unpin(newID, false)
		return RowLocation{}, err
	}
	if err := h.pm.Unpin(newID, true); err != nil {
		return RowLocation{}, err
	}

	tailPg, err := h.pm.Fetch(tail)
	if err != nil {
		return RowLocation{}, err
	}
	tailPg.SetNextPageID(newID)
	if err := h.pm.Unpin(tail, true); err != nil {
		return RowLocation{}, err
	}

	return RowLocation{PageID: newID, Slot: slot}, nil
}

// Read returns the payload at loc.
func (h *Heap) Read(loc RowLocation) ([]byte, error) {
	pg, err := h.pm.Fetch(loc.PageID)
	if err != nil {
		return nil, err
	}
	defer h.pm.Unpin(loc.PageID, false)

	payload, err := pg.Read(loc.Slot)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.RecordNotFound, "Read", "heap.Heap")
	}
	return payload, nil
}

// Update overwrites the row at loc. When the new payload no longer fits in
// place, the old row is deleted and a new one is appended to the chain's
// tail; the caller must use the returned RowLocation afterward.
func (h *Heap) Update(loc RowLocation, payload []byte) (RowLocation, error) {
	pg, err := h.pm.Fetch(loc.PageID)
	if err != nil {
		return RowLocation{}, err
	}

	err = pg.Update(loc.Slot, payload)
	if err == nil {
		if err := h.pm.Unpin(loc.PageID, true); err != nil {
			return RowLocation{}, err
		}
		return loc, nil
	}
	if err := h.pm.Unpin(loc.PageID, false); err != nil {
		return RowLocation{}, err
	}
	if err != storage.ErrRecordGrew {
		return RowLocation{}, dberr.Wrap(err, dberr.RecordNotFound, "Update", "heap.Heap")
	}

	newLoc, err := h.Insert(payload)
	if err != nil {
		return RowLocation{}, err
	}
	if err := h.Delete(loc); err != nil {
		return RowLocation{}, err
	}
	return newLoc, nil
}

// Delete tombstones the row at loc.
func (h *Heap) Delete(loc RowLocation) error {
	pg, err := h.pm.Fetch(loc.PageID)
	if err != nil {
		return err
	}
	if err := pg.Delete(loc.Slot); err != nil {
		_ = h.pm.Unpin(loc.PageID, false)
		return dberr.Wrap(err, dberr.RecordNotFound, "Delete", "heap.Heap")
	}
	return h.pm.Unpin(loc.PageID, true)
}

// Scan visits every live row in page-chain order. At most one page is
// pinned at a time; fn receives its own copy of each row's payload, so the
// caller may retain it past the call.
func (h *Heap) Scan(fn func(loc RowLocation, payload []byte) error) error {
	cur := h.root
	for cur != storage.InvalidPageID {
		pg, err := h.pm.Fetch(cur)
		if err != nil {
			return err
		}
		next := pg.NextPageID()
		slotCount := pg.SlotCount()

		for s := uint16(0); s < slotCount; s++ {
			if !pg.IsLive(s) {
				continue
			}
			payload, err := pg.Read(s)
			if err != nil {
				_ = h.pm.Unpin(cur, false)
				return err
			}
			if err := fn(RowLocation{PageID: cur, Slot: s}, payload); err != nil {
				_ = h.pm.Unpin(cur, false)
				return err
			}
		}

		if err := h.pm.Unpin(cur, false); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// Truncate frees every page in the chain except the root, and clears the
// root page back to empty.
func (h *Heap) Truncate() error {
	pg, err := h.pm.Fetch(h.root)
	if err != nil {
		return err
	}
	next := pg.NextPageID()
	pg.Init(h.root, storage.PageData)
	if err := h.pm.Unpin(h.root, true); err != nil {
		return err
	}

	for next != storage.InvalidPageID {
		pg, err := h.pm.Fetch(next)
		if err != nil {
			return err
		}
		following := pg.NextPageID()
		if err := h.pm.Unpin(next, false); err != nil {
			return err
		}
		if err := h.pm.FreePage(next); err != nil {
			return err
		}
		next = following
	}
	return nil
}
