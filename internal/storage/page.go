// Package storage implements the on-disk page format, the single shared
// database file, and the record wire encoding kzdb builds everything else
// on top of.
package storage

import (
	"errors"

	"github.com/kzdb/kzdb/internal/alias/bx"
)

// PageSize is the fixed size of every page in the database file.
const PageSize = 4096

// HeaderSize is the size in bytes of PageHeader as laid out on disk.
const HeaderSize = 24

// InvalidPageID marks the absence of a page link (no next/prev/chain).
const InvalidPageID uint32 = 0

// FirstPageID is the id of the first page in the file (file offset 0),
// which holds the metadata page; NewPage never returns it.
const FirstPageID uint32 = 1

const slotSize = 2

// PageType tags what a page's body holds. Only Data, Metadata and Free
// (free-list trunk) pages are produced by this engine; Index and Overflow
// remain reserved for features
// this version does not implement.
type PageType uint8

const (
	PageInvalid  PageType = 0
	PageData     PageType = 1
	PageIndex    PageType = 2
	PageOverflow PageType = 3
	PageMetadata PageType = 4
	PageFree     PageType = 5
)

// Header offsets within a page's first HeaderSize bytes.
const (
	offPageID          = 0
	offNextPageID      = 4
	offPrevPageID      = 8
	offRecordCount     = 12
	offFreeSpaceOffset = 14
	offSlotCount       = 16
	offPageType        = 18
	offFlags           = 19
	offLSN             = 20
)

var (
	ErrRecordTooLarge = errors.New("storage: record too large for a page")
	ErrNoSpace        = errors.New("storage: not enough free space on page")
	ErrSlotNotFound   = errors.New("storage: slot not found or deleted")
	ErrRecordGrew     = errors.New("storage: updated record no longer fits in place")
	ErrWrongPageSize  = errors.New("storage: buffer size != PageSize")
	ErrWrongPageType  = errors.New("storage: operation not valid for this page type")
)

const tombstone = 0xFFFF

// Page wraps one fixed-size buffer and interprets it as a slotted page:
// a 24-byte header, a record area that grows forward from the header, and
// a slot directory that grows backward from the end of the page. Each
// slot is a single uint16 record offset; 0xFFFF marks a tombstone. Record
// length lives with the record itself as a 2-byte prefix, not in the slot.
type Page struct {
	Buf []byte
}

// NewPage wraps buf (which must be exactly PageSize bytes) and initializes
// it as an empty page of the given type and id.
func NewPage(buf []byte, id uint32, typ PageType) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongPageSize
	}
	p := &Page{Buf: buf}
	p.Init(id, typ)
	return p, nil
}

// WrapPage wraps an existing, already-initialized buffer without zeroing
// it, for pages loaded back off disk.
func WrapPage(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongPageSize
	}
	return &Page{Buf: buf}, nil
}

// Init resets p to an empty page of the given type and id.
func (p *Page) Init(id uint32, typ PageType) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	bx.PutU32At(p.Buf, offPageID, id)
	bx.PutU32At(p.Buf, offNextPageID, InvalidPageID)
	bx.PutU32At(p.Buf, offPrevPageID, InvalidPageID)
	bx.PutU16At(p.Buf, offRecordCount, 0)
	bx.PutU16At(p.Buf, offFreeSpaceOffset, HeaderSize)
	bx.PutU16At(p.Buf, offSlotCount, 0)
	p.Buf[offPageType] = uint8(typ)
	p.Buf[offFlags] = 0
	bx.PutU32At(p.Buf, offLSN, 0)
}

func (p *Page) PageID() uint32      { return bx.U32At(p.Buf, offPageID) }
func (p *Page) NextPageID() uint32  { return bx.U32At(p.Buf, offNextPageID) }
func (p *Page) PrevPageID() uint32  { return bx.U32At(p.Buf, offPrevPageID) }
func (p *Page) RecordCount() uint16 { return bx.U16At(p.Buf, offRecordCount) }
func (p *Page) SlotCount() uint16   { return bx.U16At(p.Buf, offSlotCount) }
func (p *Page) PageType() PageType  { return PageType(p.Buf[offPageType]) }
func (p *Page) LSN() uint32         { return bx.U32At(p.Buf, offLSN) }

func (p *Page) SetNextPageID(id uint32) { bx.PutU32At(p.Buf, offNextPageID, id) }
func (p *Page) SetPrevPageID(id uint32) { bx.PutU32At(p.Buf, offPrevPageID, id) }
func (p *Page) SetLSN(v uint32)         { bx.PutU32At(p.Buf, offLSN, v) }

func (p *Page) freeSpaceOffset() uint16     { return bx.U16At(p.Buf, offFreeSpaceOffset) }
func (p *Page) setFreeSpaceOffset(v uint16) { bx.PutU16At(p.Buf, offFreeSpaceOffset, v) }
func (p *Page) setRecordCount(v uint16)     { bx.PutU16At(p.Buf, offRecordCount, v) }
func (p *Page) setSlotCount(v uint16)       { bx.PutU16At(p.Buf, offSlotCount, v) }

func (p *Page) slotPos(slot uint16) int {
	return PageSize - (int(slot)+1)*slotSize
}

// recordsLimit is the highest byte offset the record area may occupy
// given how many slots currently exist in the directory.
func (p *Page) recordsLimit() int {
	return PageSize - (int(p.SlotCount())+1)*slotSize
}

// FreeSpace returns how many bytes remain available for a new record plus
// its slot entry.
func (p *Page) FreeSpace() int {
	limit := p.recordsLimit()
	off := int(p.freeSpaceOffset())
	if off > limit {
		return 0
	}
	return limit - off
}

// Insert appends payload as a new record and returns its slot index.
func (p *Page) Insert(payload []byte) (uint16, error) {
	if p.PageType() != PageData && p.PageType() != PageMetadata {
		return 0, ErrWrongPageType
	}
	if len(payload) > PageSize-HeaderSize-slotSize-2 {
		return 0, ErrRecordTooLarge
	}

	needed := len(payload) + 2 + slotSize
	if needed > p.FreeSpace() {
		return 0, ErrNoSpace
	}

	recordStart := int(p.freeSpaceOffset())
	bx.PutU16At(p.Buf, recordStart, uint16(len(payload)))
	copy(p.Buf[recordStart+2:], payload)

	slot := p.SlotCount()
	bx.PutU16At(p.Buf, p.slotPos(slot), uint16(recordStart))

	p.setSlotCount(slot + 1)
	p.setRecordCount(p.RecordCount() + 1)
	p.setFreeSpaceOffset(uint16(recordStart + 2 + len(payload)))
	return slot, nil
}

// Read returns the payload stored at slot.
func (p *Page) Read(slot uint16) ([]byte, error) {
	if slot >= p.SlotCount() {
		return nil, ErrSlotNotFound
	}
	recordOff := bx.U16At(p.Buf, p.slotPos(slot))
	if recordOff == tombstone {
		return nil, ErrSlotNotFound
	}
	length := bx.U16At(p.Buf, int(recordOff))
	start := int(recordOff) + 2
	out := make([]byte, length)
	copy(out, p.Buf[start:start+int(length)])
	return out, nil
}

// IsLive reports whether slot currently holds a non-deleted record.
func (p *Page) IsLive(slot uint16) bool {
	if slot >= p.SlotCount() {
		return false
	}
	return bx.U16At(p.Buf, p.slotPos(slot)) != tombstone
}

// Update overwrites the record at slot in place. If the new payload is no
// larger than the stored one it always succeeds; if it grew, Update
// returns ErrRecordGrew and the caller (TableHeap) is responsible for
// deleting the old record and inserting the new one elsewhere.
func (p *Page) Update(slot uint16, payload []byte) error {
	if slot >= p.SlotCount() {
		return ErrSlotNotFound
	}
	recordOff := bx.U16At(p.Buf, p.slotPos(slot))
	if recordOff == tombstone {
		return ErrSlotNotFound
	}
	currentLen := bx.U16At(p.Buf, int(recordOff))
	if len(payload) > int(currentLen) {
		return ErrRecordGrew
	}
	start := int(recordOff)
	bx.PutU16At(p.Buf, start, uint16(len(payload)))
	copy(p.Buf[start+2:], payload)
	for i := len(payload); i < int(currentLen); i++ {
		p.Buf[start+2+i] = 0
	}
	return nil
}

// Delete tombstones the record at slot.
func (p *Page) Delete(slot uint16) error {
	if slot >= p.SlotCount() {
		return ErrSlotNotFound
	}
	pos := p.slotPos(slot)
	recordOff := bx.U16At(p.Buf, pos)
	if recordOff == tombstone {
		return ErrSlotNotFound
	}
	bx.PutU16At(p.Buf, pos, tombstone)
	p.setRecordCount(p.RecordCount() - 1)
	return nil
}
