package hashindex

import (
	"testing"

	"github.com/nsavio/crabdb/pkg/storage"
)

func TestHeaderPage_NewHasAllInvalidSlots(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	h := NewHeaderPage(buf)

	if h.MaxDepth() != HeaderMaxDepth {
		t.Fatalf("MaxDepth() = %d, want %d", h.MaxDepth(), HeaderMaxDepth)
	}
	if h.DirectoryPageID(0) != storage.InvalidPageID {
		t.Errorf("DirectoryPageID(0) on a fresh header = %d, want InvalidPageID", h.DirectoryPageID(0))
	}
}

func TestHeaderPage_SetAndGetDirectoryPageID(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	h := NewHeaderPage(buf)

	h.SetDirectoryPageID(3, 42)
	if got := h.DirectoryPageID(3); got != 42 {
		t.Errorf("DirectoryPageID(3) = %d, want 42", got)
	}
	if h.DirectoryPageID(4) != storage.InvalidPageID {
		t.Error("setting slot 3 disturbed slot 4")
	}
}

func TestHeaderPage_DirectoryIndexUsesTopBits(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	h := NewHeaderPage(buf)

	idx := h.DirectoryIndex(uint64(1) << 63) // top bit set
	if idx == 0 {
		t.Error("DirectoryIndex() of a hash with the top bit set returned 0")
	}
}

func TestHeaderPage_LoadReflectsPersistedState(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	NewHeaderPage(buf).SetDirectoryPageID(1, 99)

	reloaded := LoadHeaderPage(buf)
	if got := reloaded.DirectoryPageID(1); got != 99 {
		t.Errorf("LoadHeaderPage().DirectoryPageID(1) = %d, want 99", got)
	}
}
