package engine

import (
	"github.com/nsavio/crabdb/pkg/metrics"
	"github.com/nsavio/crabdb/pkg/storage"
)

// trackingDiskManager decorates a storage.DiskManager, feeding every
// completed read/write's byte count into a ResourceTracker. Pages are
// fixed-size, so the byte count is always storage.PageSize; the point is
// the call count, not variable sizing.
type trackingDiskManager struct {
	inner   storage.DiskManager
	tracker *metrics.ResourceTracker
}

func (t *trackingDiskManager) ReadPage(id storage.PageID) (*storage.Page, error) {
	page, err := t.inner.ReadPage(id)
	if err == nil {
		t.tracker.RecordRead(storage.PageSize)
	}
	return page, err
}

func (t *trackingDiskManager) WritePage(page *storage.Page) error {
	err := t.inner.WritePage(page)
	if err == nil {
		t.tracker.RecordWrite(storage.PageSize)
	}
	return err
}

func (t *trackingDiskManager) ShutDown() error {
	return t.inner.ShutDown()
}
