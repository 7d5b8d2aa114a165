package storage

import (
	"fmt"
	"sync"

	"github.com/nsavio/crabdb/pkg/concurrent"
)

// BufferPoolManager is the fixed-size cache of pages sitting between
// callers and the disk scheduler: a frame table, pin counts, dirty bits,
// an LRU-K replacer to pick eviction victims and a free list of frames
// that have never held a page or whose page was deleted. Frames are
// allocated once at construction and reused for the life of the manager;
// only the logical page occupying
// a frame changes over time.
type BufferPoolManager struct {
	scheduler *DiskScheduler

	mu        sync.Mutex
	frames    []*frame
	pageTable map[PageID]FrameID
	freeList  *concurrent.Stack[FrameID]
	replacer  *Replacer
	nextID    *concurrent.Counter

	hits, misses, evictions int64
	pins, unpins            int64
}

// NewBufferPoolManager allocates poolSize frames backed by scheduler,
// using k for the LRU-K replacer.
func NewBufferPoolManager(poolSize int, k int, scheduler *DiskScheduler) *BufferPoolManager {
	bpm := &BufferPoolManager{
		scheduler: scheduler,
		frames:    make([]*frame, poolSize),
		pageTable: make(map[PageID]FrameID, poolSize),
		freeList:  concurrent.NewStack[FrameID](),
		replacer:  NewReplacer(k),
		nextID:    concurrent.NewCounter(),
	}
	for i := 0; i < poolSize; i++ {
		bpm.frames[i] = newFrame()
		bpm.freeList.Push(FrameID(i))
	}
	return bpm
}

// Size returns the number of frames managed by the pool.
func (bpm *BufferPoolManager) Size() int {
	return len(bpm.frames)
}

// pickVictim selects a frame for a new logical page: the free list first,
// then the replacer's eviction policy. It flushes the victim's contents
// if dirty before handing it back. Caller must hold bpm.mu; it is
// released and reacquired around any disk I/O.
func (bpm *BufferPoolManager) pickVictim() (FrameID, bool) {
	if id, ok := bpm.freeList.Pop(); ok {
		return id, true
	}

	id, ok := bpm.replacer.Evict()
	if !ok {
		return 0, false
	}

	f := bpm.frames[id]
	if f.isDirty {
		oldPageID := f.pageID
		snapshot := &Page{ID: oldPageID, Data: f.data}
		bpm.mu.Unlock()
		bpm.scheduler.ScheduleWrite(snapshot)
		bpm.mu.Lock()
	}
	delete(bpm.pageTable, f.pageID)
	bpm.evictions++
	return id, true
}

// NewPage allocates a fresh PageID, assigns it a frame (free list first,
// then eviction), zeroes the frame's bytes and returns a write guard
// pinned to 1.
func (bpm *BufferPoolManager) NewPage() (PageID, *WritePageGuard, error) {
	bpm.mu.Lock()

	id, ok := bpm.pickVictim()
	if !ok {
		bpm.mu.Unlock()
		return InvalidPageID, nil, ErrNoAvailableFrame
	}

	pageID := PageID(bpm.nextID.Inc() - 1)
	f := bpm.frames[id]
	f.reset(pageID)
	f.pinCount = 1
	bpm.pageTable[pageID] = id
	bpm.pins++

	bpm.replacer.RecordAccess(id)
	bpm.replacer.SetEvictable(id, false)
	bpm.mu.Unlock()

	return pageID, newWritePageGuard(bpm, f, pageID), nil
}

// FetchPageRead returns a shared-latched guard on pid, reading it from
// disk on a miss.
func (bpm *BufferPoolManager) FetchPageRead(pid PageID) (*ReadPageGuard, error) {
	f, err := bpm.fetch(pid)
	if err != nil {
		return nil, err
	}
	return newReadPageGuard(bpm, f, pid), nil
}

// FetchPageWrite returns an exclusively-latched guard on pid, reading it
// from disk on a miss.
func (bpm *BufferPoolManager) FetchPageWrite(pid PageID) (*WritePageGuard, error) {
	f, err := bpm.fetch(pid)
	if err != nil {
		return nil, err
	}
	return newWritePageGuard(bpm, f, pid), nil
}

// fetch implements the shared bookkeeping of FetchPageRead/Write: resolve
// pid to a pinned frame, reading it in if necessary. The returned frame's
// latch has NOT yet been acquired; that happens in newReadPageGuard /
// newWritePageGuard after fetch returns, outside the inner mutex.
func (bpm *BufferPoolManager) fetch(pid PageID) (*frame, error) {
	bpm.mu.Lock()

	if id, ok := bpm.pageTable[pid]; ok {
		f := bpm.frames[id]
		f.pinCount++
		bpm.pins++
		bpm.hits++
		bpm.replacer.RecordAccess(id)
		bpm.replacer.SetEvictable(id, false)
		bpm.mu.Unlock()
		return f, nil
	}

	bpm.misses++
	id, ok := bpm.pickVictim()
	if !ok {
		bpm.mu.Unlock()
		return nil, ErrNoAvailableFrame
	}

	// pickVictim has already flushed the frame if it held a dirty page, so
	// reset starts it clean for pid; no second flush is needed here.
	f := bpm.frames[id]
	f.reset(pid)
	f.pinCount = 1
	bpm.pageTable[pid] = id
	bpm.pins++
	bpm.replacer.RecordAccess(id)
	bpm.replacer.SetEvictable(id, false)

	// pid is now visible to other goroutines via pageTable, but its bytes
	// haven't been read in yet. Hold the frame's exclusive latch across
	// the I/O below so a concurrent FetchPageRead/FetchPageWrite hit on
	// pid blocks in newReadPageGuard/newWritePageGuard until the load
	// completes, instead of observing the zero bytes f.reset just wrote.
	f.latch.Lock()
	bpm.mu.Unlock()

	into := &Page{ID: pid}
	ok2 := bpm.scheduler.ScheduleRead(into)

	if !ok2 {
		f.latch.Unlock()
		bpm.mu.Lock()
		// I/O failed; undo the bookkeeping and surface the page as
		// unreadable rather than handing back garbage bytes.
		f.pinCount--
		delete(bpm.pageTable, pid)
		bpm.mu.Unlock()
		return nil, fmt.Errorf("storage: fetch page %d: disk I/O failed", pid)
	}
	f.data = into.Data
	f.latch.Unlock()

	return f, nil
}

// unpinFrame implements pinOwner for page guards: decrement the frame's
// pin count, OR in the dirty bit, and mark the frame evictable once its
// pin count reaches zero.
func (bpm *BufferPoolManager) unpinFrame(pid PageID, f *frame, dirty bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if f.pinCount == 0 {
		panic(fmt.Sprintf("storage: unpin of page %d with zero pin count", pid))
	}
	if dirty {
		f.isDirty = true
	}
	f.pinCount--
	bpm.unpins++

	if id, ok := bpm.pageTable[pid]; ok && f.pinCount == 0 {
		bpm.replacer.SetEvictable(id, true)
	}
}

// Unpin is the non-guard-mediated form of unpin, matching the public API
// shape in §6: decrement pin; mark evictable at zero; OR in dirty.
func (bpm *BufferPoolManager) Unpin(pid PageID, dirty bool) error {
	bpm.mu.Lock()
	id, ok := bpm.pageTable[pid]
	if !ok {
		bpm.mu.Unlock()
		return ErrInvalidPageID
	}
	f := bpm.frames[id]
	bpm.mu.Unlock()

	bpm.unpinFrame(pid, f, dirty)
	return nil
}

// FlushPage writes pid's current bytes to disk via the scheduler and
// clears its dirty bit on success. It never touches pin count or
// evictability.
func (bpm *BufferPoolManager) FlushPage(pid PageID) error {
	bpm.mu.Lock()
	id, ok := bpm.pageTable[pid]
	if !ok {
		bpm.mu.Unlock()
		return ErrInvalidPageID
	}
	f := bpm.frames[id]
	snapshot := &Page{ID: pid, Data: f.data}
	bpm.mu.Unlock()

	if ok := bpm.scheduler.ScheduleWrite(snapshot); !ok {
		return fmt.Errorf("storage: flush page %d: disk I/O failed", pid)
	}

	bpm.mu.Lock()
	f.isDirty = false
	bpm.mu.Unlock()
	return nil
}

// FlushAll flushes every resident page.
func (bpm *BufferPoolManager) FlushAll() error {
	bpm.mu.Lock()
	ids := make([]PageID, 0, len(bpm.pageTable))
	for pid := range bpm.pageTable {
		ids = append(ids, pid)
	}
	bpm.mu.Unlock()

	for _, pid := range ids {
		if err := bpm.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes pid from the pool if it is not pinned, returning
// false without effect otherwise. PageIds are never recycled: a deleted
// id's frame goes back on the free list, but nextID keeps counting up.
func (bpm *BufferPoolManager) DeletePage(pid PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	id, ok := bpm.pageTable[pid]
	if !ok {
		return true
	}

	f := bpm.frames[id]
	if f.pinCount > 0 {
		return false
	}

	delete(bpm.pageTable, pid)
	f.reset(InvalidPageID)
	bpm.freeList.Push(id)
	bpm.replacer.SetEvictable(id, true)
	bpm.replacer.Remove(id)
	return true
}

// Stats reports a snapshot of buffer pool counters, surfaced by the
// admin metrics and debug-pool endpoints.
type Stats struct {
	PoolSize  int
	Resident  int
	Hits      int64
	Misses    int64
	Evictions int64
	Pins      int64
	Unpins    int64
	Evictable int
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (bpm *BufferPoolManager) Stats() Stats {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	return Stats{
		PoolSize:  len(bpm.frames),
		Resident:  len(bpm.pageTable),
		Hits:      bpm.hits,
		Misses:    bpm.misses,
		Evictions: bpm.evictions,
		Pins:      bpm.pins,
		Unpins:    bpm.unpins,
		Evictable: bpm.replacer.Size(),
	}
}

// ReplacerStats passes through the pool's replacer counters, separated
// from Stats because the replacer's lifetime eviction count is tracked
// independently of the pool's own eviction counter (which counts the
// evictions the pool itself performed).
func (bpm *BufferPoolManager) ReplacerStats() ReplacerStats {
	return bpm.replacer.Stats()
}

// SchedulerStats passes through the pool's disk scheduler counters.
func (bpm *BufferPoolManager) SchedulerStats() SchedulerStats {
	return bpm.scheduler.Stats()
}
