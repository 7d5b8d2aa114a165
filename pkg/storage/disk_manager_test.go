package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileDiskManager_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("NewFileDiskManager() error: %v", err)
	}
	defer dm.ShutDown()

	page := NewPage(3)
	copy(page.Data[:], []byte("payload"))

	if err := dm.WritePage(page); err != nil {
		t.Fatalf("WritePage() error: %v", err)
	}

	got, err := dm.ReadPage(3)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	if got.Data != page.Data {
		t.Error("ReadPage() after WritePage() returned different bytes")
	}
}

func TestFileDiskManager_ReadPastEOFReturnsZeroedPage(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("NewFileDiskManager() error: %v", err)
	}
	defer dm.ShutDown()

	page, err := dm.ReadPage(40)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	for i, b := range page.Data {
		if b != 0 {
			t.Fatalf("ReadPage() past EOF byte %d = %d, want 0", i, b)
		}
	}
}

func TestFileDiskManager_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	dm1, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("NewFileDiskManager() error: %v", err)
	}
	page := NewPage(0)
	copy(page.Data[:], []byte("persisted"))
	if err := dm1.WritePage(page); err != nil {
		t.Fatalf("WritePage() error: %v", err)
	}
	if err := dm1.ShutDown(); err != nil {
		t.Fatalf("ShutDown() error: %v", err)
	}

	dm2, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("re-open NewFileDiskManager() error: %v", err)
	}
	defer dm2.ShutDown()

	got, err := dm2.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	if got.Data != page.Data {
		t.Error("page contents did not survive a close/reopen cycle")
	}
}

func TestFileDiskManager_Stats(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("NewFileDiskManager() error: %v", err)
	}
	defer dm.ShutDown()

	dm.WritePage(NewPage(0))
	dm.WritePage(NewPage(1))
	dm.ReadPage(0)

	reads, writes := dm.Stats()
	if writes != 2 {
		t.Errorf("Stats() writes = %d, want 2", writes)
	}
	if reads != 1 {
		t.Errorf("Stats() reads = %d, want 1", reads)
	}
}

func TestMemoryDiskManager_WriteReadRoundTrip(t *testing.T) {
	dm := NewMemoryDiskManager()

	page := NewPage(7)
	copy(page.Data[:], []byte("in-memory"))
	if err := dm.WritePage(page); err != nil {
		t.Fatalf("WritePage() error: %v", err)
	}

	got, err := dm.ReadPage(7)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	if got.Data != page.Data {
		t.Error("ReadPage() after WritePage() returned different bytes")
	}
}

func TestMemoryDiskManager_ReadUnwrittenPageIsZeroed(t *testing.T) {
	dm := NewMemoryDiskManager()

	page, err := dm.ReadPage(5)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	for i, b := range page.Data {
		if b != 0 {
			t.Fatalf("ReadPage() of never-written page byte %d = %d, want 0", i, b)
		}
	}
}

func TestMemoryDiskManager_RejectsNegativeID(t *testing.T) {
	dm := NewMemoryDiskManager()
	if _, err := dm.ReadPage(-1); err == nil {
		t.Error("ReadPage(-1) did not error")
	}
	if err := dm.WritePage(NewPage(-1)); err == nil {
		t.Error("WritePage() with negative id did not error")
	}
}

func TestMemoryDiskManager_ShutDownIsNoop(t *testing.T) {
	dm := NewMemoryDiskManager()
	if err := dm.ShutDown(); err != nil {
		t.Errorf("ShutDown() error: %v", err)
	}
}

func TestFileDiskManager_OpenFailure(t *testing.T) {
	if _, err := NewFileDiskManager(filepath.Join(string([]byte{0}), "data.db")); err == nil {
		t.Error("NewFileDiskManager() with an invalid path did not error")
	}
}

func TestDiskManager_InterfaceSatisfiedByBothImplementations(t *testing.T) {
	var _ DiskManager = (*FileDiskManager)(nil)
	var _ DiskManager = (*MemoryDiskManager)(nil)
}

func TestFileDiskManager_CreatesFileIfMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.db")

	if _, err := os.Stat(path); err == nil {
		t.Fatal("file already exists before NewFileDiskManager()")
	}

	dm, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("NewFileDiskManager() error: %v", err)
	}
	defer dm.ShutDown()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("backing file was not created: %v", err)
	}
}
