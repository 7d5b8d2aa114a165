// Package storage implements the disk-facing layers of crabdb: fixed-size
// pages, a disk manager, a disk scheduler, an LRU-K replacer and the buffer
// pool manager that ties them together behind a page-guard API.
package storage

import (
	"fmt"
	"sync"
)

// PageSize is the fixed size, in bytes, of every page on disk and every
// frame in the buffer pool. There is no header or checksum at this layer;
// the full 4096 bytes belong to whatever sits above (the hash index's
// header/directory/bucket layouts, in this repo).
const PageSize = 4096

// PageID identifies a logical page. Page IDs are assigned monotonically by
// the buffer pool manager and are never recycled, even after DeletePage —
// see DESIGN.md for why reuse was deliberately left out.
type PageID int32

// InvalidPageID is the reserved "no page" sentinel. A zero-length hash
// entry in the index's header page holds this value to mean "no
// directory yet".
const InvalidPageID PageID = -1

// FrameID indexes into the buffer pool's frame array. It never escapes
// this package: callers only ever see PageIDs and guards.
type FrameID int32

// Page is a disk-manager-level view of one page: an identifier plus its
// raw bytes. It carries none of the buffer pool's bookkeeping (pin count,
// dirty bit, latch) — that lives on frame, below — so it can be passed
// freely to the disk manager, the scheduler, and out through the admin
// surface's page-dump endpoint without aliasing a live frame.
type Page struct {
	ID   PageID
	Data [PageSize]byte
}

// NewPage allocates a zeroed Page for the given id.
func NewPage(id PageID) *Page {
	return &Page{ID: id}
}

// Serialize returns the page's on-disk byte representation.
func (p *Page) Serialize() []byte {
	buf := make([]byte, PageSize)
	copy(buf, p.Data[:])
	return buf
}

// Deserialize loads page bytes produced by Serialize (or read straight off
// disk) into the page.
func (p *Page) Deserialize(data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("storage: invalid page size: expected %d, got %d", PageSize, len(data))
	}
	copy(p.Data[:], data)
	return nil
}

// frame is one physical slot in the buffer pool. Its identity is the slot;
// the PageID and bytes it holds change every time the BPM repurposes it
// for a different logical page.
type frame struct {
	// latch serializes access to data. Every outstanding page guard holds
	// it (shared or exclusive) for its entire lifetime.
	latch sync.RWMutex
	data  [PageSize]byte

	// The fields below are only ever touched while the buffer pool
	// manager's inner mutex is held.
	pageID   PageID
	pinCount int
	isDirty  bool
}

func newFrame() *frame {
	return &frame{pageID: InvalidPageID}
}

// reset re-initializes the frame for a new logical page. Caller must hold
// the BPM's inner mutex.
func (f *frame) reset(pageID PageID) {
	f.pageID = pageID
	f.pinCount = 0
	f.isDirty = false
	clear(f.data[:])
}
