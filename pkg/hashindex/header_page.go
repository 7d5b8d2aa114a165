package hashindex

import (
	"encoding/binary"

	"github.com/nsavio/crabdb/pkg/storage"
)

// HeaderMaxDepth bounds how many high-order bits of a key's hash the
// header page uses to select a directory slot: 2^HeaderMaxDepth entries.
const HeaderMaxDepth = 9

const headerEntries = 1 << HeaderMaxDepth

// headerOffset is where the directory-page-id array begins, right after
// the max_depth field.
const headerOffset = 4

// HeaderPage is a typed, offset-based view over a raw page's bytes:
//
//	max_depth: u32
//	directory_page_id[1 << max_depth]: i32
//
// A zero-length hash entry holds storage.InvalidPageID, meaning "no
// directory yet" for that slot.
type HeaderPage struct {
	data []byte
}

// NewHeaderPage initializes data (which must be storage.PageSize bytes)
// as a fresh, empty header page with every directory slot invalid.
func NewHeaderPage(data []byte) *HeaderPage {
	h := &HeaderPage{data: data}
	binary.LittleEndian.PutUint32(h.data[0:4], HeaderMaxDepth)
	for i := 0; i < headerEntries; i++ {
		h.setDirectoryPageID(i, storage.InvalidPageID)
	}
	return h
}

// LoadHeaderPage wraps already-initialized bytes without touching them.
func LoadHeaderPage(data []byte) *HeaderPage {
	return &HeaderPage{data: data}
}

// MaxDepth returns the number of high-order hash bits this header uses.
func (h *HeaderPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(h.data[0:4])
}

// DirectoryIndex returns the header slot for a key's hash: its top
// MaxDepth() bits.
func (h *HeaderPage) DirectoryIndex(hash uint64) int {
	depth := h.MaxDepth()
	if depth == 0 {
		return 0
	}
	return int(hash >> (64 - depth))
}

// DirectoryPageID returns the directory page id at slot i, or
// storage.InvalidPageID if none has been installed yet.
func (h *HeaderPage) DirectoryPageID(i int) storage.PageID {
	off := headerOffset + i*4
	return storage.PageID(int32(binary.LittleEndian.Uint32(h.data[off : off+4])))
}

func (h *HeaderPage) setDirectoryPageID(i int, id storage.PageID) {
	off := headerOffset + i*4
	binary.LittleEndian.PutUint32(h.data[off:off+4], uint32(int32(id)))
}

// SetDirectoryPageID installs id at slot i.
func (h *HeaderPage) SetDirectoryPageID(i int, id storage.PageID) {
	h.setDirectoryPageID(i, id)
}
