package hashindex

import (
	"testing"

	"github.com/nsavio/crabdb/pkg/storage"
)

func TestDirectoryPage_NewHasSingleSlot(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	d := NewDirectoryPage(buf, 7)

	if d.GlobalDepth() != 0 {
		t.Fatalf("GlobalDepth() = %d, want 0", d.GlobalDepth())
	}
	if d.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", d.Size())
	}
	if d.BucketPageID(0) != 7 {
		t.Errorf("BucketPageID(0) = %d, want 7", d.BucketPageID(0))
	}
}

func TestDirectoryPage_GrowDuplicatesSlots(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	d := NewDirectoryPage(buf, 7)
	d.SetBucket(0, 7, 0)

	d.Grow()

	if d.GlobalDepth() != 1 {
		t.Fatalf("GlobalDepth() after Grow() = %d, want 1", d.GlobalDepth())
	}
	if d.Size() != 2 {
		t.Fatalf("Size() after Grow() = %d, want 2", d.Size())
	}
	if d.BucketPageID(0) != d.BucketPageID(1) {
		t.Error("Grow() did not duplicate the bucket pointer into the upper half")
	}
}

func TestDirectoryPage_SplitImage(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	d := NewDirectoryPage(buf, 7)
	d.Grow()
	d.Grow()
	d.SetBucket(0, 1, 2)
	d.SetBucket(2, 2, 2)

	if got := d.SplitImage(0); got != 2 {
		t.Errorf("SplitImage(0) with local_depth 2 = %d, want 2", got)
	}
}

func TestDirectoryPage_CanShrink(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	d := NewDirectoryPage(buf, 7)
	d.Grow()

	if !d.CanShrink() {
		t.Fatal("CanShrink() = false when every slot's local_depth is 0 < global_depth 1")
	}

	d.SetBucket(0, 7, 1)
	if d.CanShrink() {
		t.Error("CanShrink() = true when a slot's local_depth equals global_depth")
	}
}

func TestDirectoryPage_LoadReflectsPersistedState(t *testing.T) {
	buf := make([]byte, storage.PageSize)
	NewDirectoryPage(buf, 3).Grow()

	reloaded := LoadDirectoryPage(buf)
	if reloaded.GlobalDepth() != 1 {
		t.Errorf("LoadDirectoryPage().GlobalDepth() = %d, want 1", reloaded.GlobalDepth())
	}
}
