package storage

import (
	"sync"
	"sync/atomic"
)

// requestKind tags what a scheduled disk request should do.
type requestKind int

const (
	requestRead requestKind = iota
	requestWrite
	// requestWriteThenRead atomically flushes a dirty frame being
	// repurposed, then reads the incoming page into the same bytes — no
	// concurrent fetch can observe a half-state between the two, since
	// both run as one request on the single worker.
	requestWriteThenRead
)

// diskRequest is one unit of scheduled work. Done is the promise: the
// caller receives exactly one value on it, true on success.
type diskRequest struct {
	kind requestKind

	// readPage / writePage: which page to operate on for each half of a
	// requestWriteThenRead. For a plain read or write only the relevant
	// one is set.
	readPage  *Page
	writePage *Page

	Done chan bool
}

// DiskScheduler decouples buffer-pool request threads from the disk
// manager by queuing read/write/write-then-read requests and resolving
// each with a promise: a single consumer goroutine draining a buffered
// channel, with shutdown guarded by sync.Once so closing the channel
// happens exactly once.
//
// Requests submitted by one goroutine complete in submission order,
// because the single worker drains the channel FIFO; no ordering is
// promised across goroutines (see DESIGN.md).
type DiskScheduler struct {
	disk DiskManager

	queue     chan *diskRequest
	wg        sync.WaitGroup
	closeOnce sync.Once

	reads, writes, writeThenReads, failures int64
}

// SchedulerStats is a point-in-time read of request counts by kind.
type SchedulerStats struct {
	Reads          int64
	Writes         int64
	WriteThenReads int64
	Failures       int64
	QueueDepth     int
}

// Stats reports how many requests of each kind have been scheduled, how
// many failed, and the queue's current depth.
func (ds *DiskScheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Reads:          atomic.LoadInt64(&ds.reads),
		Writes:         atomic.LoadInt64(&ds.writes),
		WriteThenReads: atomic.LoadInt64(&ds.writeThenReads),
		Failures:       atomic.LoadInt64(&ds.failures),
		QueueDepth:     len(ds.queue),
	}
}

// NewDiskScheduler starts the worker goroutine and returns a ready
// scheduler. queueSize bounds how many requests can be in flight before
// Schedule blocks.
func NewDiskScheduler(disk DiskManager, queueSize int) *DiskScheduler {
	if queueSize < 1 {
		queueSize = 1
	}
	ds := &DiskScheduler{
		disk:  disk,
		queue: make(chan *diskRequest, queueSize),
	}
	ds.wg.Add(1)
	go ds.worker()
	return ds
}

// worker drains the queue until it is closed, so a Shutdown always
// processes every request already accepted before terminating.
func (ds *DiskScheduler) worker() {
	defer ds.wg.Done()
	for req := range ds.queue {
		ds.handle(req)
	}
}

func (ds *DiskScheduler) handle(req *diskRequest) {
	switch req.kind {
	case requestRead:
		atomic.AddInt64(&ds.reads, 1)
		page, err := ds.disk.ReadPage(req.readPage.ID)
		if err != nil {
			atomic.AddInt64(&ds.failures, 1)
			req.Done <- false
			return
		}
		req.readPage.Data = page.Data
		req.Done <- true

	case requestWrite:
		atomic.AddInt64(&ds.writes, 1)
		err := ds.disk.WritePage(req.writePage)
		if err != nil {
			atomic.AddInt64(&ds.failures, 1)
		}
		req.Done <- err == nil

	case requestWriteThenRead:
		atomic.AddInt64(&ds.writeThenReads, 1)
		if err := ds.disk.WritePage(req.writePage); err != nil {
			atomic.AddInt64(&ds.failures, 1)
			req.Done <- false
			return
		}
		page, err := ds.disk.ReadPage(req.readPage.ID)
		if err != nil {
			atomic.AddInt64(&ds.failures, 1)
			req.Done <- false
			return
		}
		req.readPage.Data = page.Data
		req.Done <- true
	}
}

// ScheduleRead enqueues a read of id into dst in place, blocking if the
// queue is full. It returns once the request completes.
func (ds *DiskScheduler) ScheduleRead(dst *Page) bool {
	req := &diskRequest{kind: requestRead, readPage: dst, Done: make(chan bool, 1)}
	ds.queue <- req
	return <-req.Done
}

// ScheduleWrite enqueues a write of page, blocking until it completes.
func (ds *DiskScheduler) ScheduleWrite(page *Page) bool {
	req := &diskRequest{kind: requestWrite, writePage: page, Done: make(chan bool, 1)}
	ds.queue <- req
	return <-req.Done
}

// ScheduleWriteThenRead flushes dirty (which must already hold the bytes
// to persist, with its own PageID) and then reads into into in place, as
// one combined request so no fetch on another goroutine can interleave
// between the flush and the read that repurposes the same frame.
func (ds *DiskScheduler) ScheduleWriteThenRead(dirty, into *Page) bool {
	req := &diskRequest{
		kind:      requestWriteThenRead,
		writePage: dirty,
		readPage:  into,
		Done:      make(chan bool, 1),
	}
	ds.queue <- req
	return <-req.Done
}

// Shutdown closes the queue with a sentinel close, lets the worker drain
// whatever was already enqueued, and waits for it to exit. Callers must not
// schedule further requests afterwards.
func (ds *DiskScheduler) Shutdown() {
	ds.closeOnce.Do(func() {
		close(ds.queue)
	})
	ds.wg.Wait()
}
