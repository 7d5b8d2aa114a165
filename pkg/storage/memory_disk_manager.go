package storage

import (
	"fmt"
	"sync"
	"time"
)

// MemoryDiskManager is the in-memory DiskManager stub used by tests and by
// stress harnesses that want to exercise buffer-pool/replacer contention
// without real file I/O. An optional per-operation Latency can be set to
// simulate a slow backing store.
type MemoryDiskManager struct {
	mu      sync.Mutex
	pages   [][PageSize]byte
	present []bool
	Latency time.Duration
}

// NewMemoryDiskManager returns an empty in-memory disk.
func NewMemoryDiskManager() *MemoryDiskManager {
	return &MemoryDiskManager{}
}

// ReadPage returns a zeroed page if id was never written.
func (dm *MemoryDiskManager) ReadPage(id PageID) (*Page, error) {
	if id < 0 {
		return nil, fmt.Errorf("storage: read negative page id %d", id)
	}
	dm.sleep()

	dm.mu.Lock()
	defer dm.mu.Unlock()

	page := NewPage(id)
	if int(id) < len(dm.present) && dm.present[id] {
		page.Data = dm.pages[id]
	}
	return page, nil
}

// WritePage stores page.Data, growing the backing store as needed.
func (dm *MemoryDiskManager) WritePage(page *Page) error {
	if page.ID < 0 {
		return fmt.Errorf("storage: write negative page id %d", page.ID)
	}
	dm.sleep()

	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.growTo(int(page.ID) + 1)
	dm.pages[page.ID] = page.Data
	dm.present[page.ID] = true
	return nil
}

// ShutDown is a no-op; there is nothing to flush or close.
func (dm *MemoryDiskManager) ShutDown() error { return nil }

func (dm *MemoryDiskManager) growTo(n int) {
	for len(dm.pages) < n {
		dm.pages = append(dm.pages, [PageSize]byte{})
		dm.present = append(dm.present, false)
	}
}

func (dm *MemoryDiskManager) sleep() {
	if dm.Latency > 0 {
		time.Sleep(dm.Latency)
	}
}
