package hashindex

import (
	"fmt"

	"github.com/nsavio/crabdb/pkg/storage"
)

// ExtendibleHashTable is a three-level on-disk hash table — header,
// directory, bucket pages — built as a client of a storage.BufferPoolManager.
// All latching is done through the BPM's page guards; the table itself
// holds no extra locks beyond what the guards provide, so concurrent
// callers are serialized exactly as described by the root-to-leaf
// latch-crabbing algorithm below.
type ExtendibleHashTable struct {
	bpm           *storage.BufferPoolManager
	headerPageID  storage.PageID
	bucketMaxSize int

	inserts, removes, gets int64
	splits, merges         int64
	dirGrows, dirShrinks   int64
	fullErrors             int64
}

// NewExtendibleHashTable allocates a header page and returns a table
// ready for use. bucketMaxSize overrides DefaultBucketMaxSize; pass 0 to
// use the default (useful for shrinking fixtures in tests that want to
// exercise split/merge without huge data sets).
func NewExtendibleHashTable(bpm *storage.BufferPoolManager, bucketMaxSize int) (*ExtendibleHashTable, error) {
	if bucketMaxSize <= 0 {
		bucketMaxSize = DefaultBucketMaxSize
	}

	headerID, guard, err := bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("hashindex: allocate header page: %w", err)
	}
	NewHeaderPage(guard.Data())
	guard.MarkDirty()
	guard.Drop()

	return &ExtendibleHashTable{
		bpm:           bpm,
		headerPageID:  headerID,
		bucketMaxSize: bucketMaxSize,
	}, nil
}

// HeaderPageID returns the table's root page id.
func (t *ExtendibleHashTable) HeaderPageID() storage.PageID {
	return t.headerPageID
}

// Get looks up key, read-latching header, directory and bucket in turn
// and releasing each as soon as the next is safely acquired.
func (t *ExtendibleHashTable) Get(key Key) (RID, error) {
	t.gets++
	hash := hashKey(key)

	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return RID{}, fmt.Errorf("hashindex: fetch header: %w", err)
	}
	header := LoadHeaderPage(headerGuard.Data())
	dirPageID := header.DirectoryPageID(header.DirectoryIndex(hash))
	headerGuard.Drop()

	if dirPageID == storage.InvalidPageID {
		return RID{}, ErrKeyNotFound
	}

	dirGuard, err := t.bpm.FetchPageRead(dirPageID)
	if err != nil {
		return RID{}, fmt.Errorf("hashindex: fetch directory: %w", err)
	}
	dir := LoadDirectoryPage(dirGuard.Data())
	bucketPageID := dir.BucketPageID(dir.BucketIndex(hash))
	dirGuard.Drop()

	bucketGuard, err := t.bpm.FetchPageRead(bucketPageID)
	if err != nil {
		return RID{}, fmt.Errorf("hashindex: fetch bucket: %w", err)
	}
	defer bucketGuard.Drop()

	bucket := LoadBucketPage(bucketGuard.Data())
	value, ok := bucket.Find(key)
	if !ok {
		return RID{}, ErrKeyNotFound
	}
	return value, nil
}

// Insert adds (key, value), splitting buckets and growing the directory
// as needed. It returns ErrDuplicateKey if key is already present and
// ErrHashTableFull if the directory is already at max depth and the
// target bucket cannot be split further.
func (t *ExtendibleHashTable) Insert(key Key, value RID) error {
	hash := hashKey(key)

	headerGuard, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch header: %w", err)
	}
	header := LoadHeaderPage(headerGuard.Data())
	headerIdx := header.DirectoryIndex(hash)
	dirPageID := header.DirectoryPageID(headerIdx)

	var dirGuard *storage.WritePageGuard

	if dirPageID == storage.InvalidPageID {
		bucketPageID, bucketGuard, err := t.bpm.NewPage()
		if err != nil {
			headerGuard.Drop()
			return fmt.Errorf("hashindex: allocate initial bucket: %w", err)
		}
		NewBucketPage(bucketGuard.Data(), t.bucketMaxSize)
		bucketGuard.MarkDirty()
		bucketGuard.Drop()

		newDirID, newDirGuard, err := t.bpm.NewPage()
		if err != nil {
			headerGuard.Drop()
			return fmt.Errorf("hashindex: allocate directory: %w", err)
		}
		NewDirectoryPage(newDirGuard.Data(), bucketPageID)
		newDirGuard.MarkDirty()

		header.SetDirectoryPageID(headerIdx, newDirID)
		headerGuard.MarkDirty()

		dirPageID = newDirID
		dirGuard = newDirGuard
	} else {
		dirGuard, err = t.bpm.FetchPageWrite(dirPageID)
		if err != nil {
			headerGuard.Drop()
			return fmt.Errorf("hashindex: fetch directory: %w", err)
		}
	}
	headerGuard.Drop()

	err = t.insertIntoDirectory(dirGuard, hash, key, value)
	dirGuard.Drop()
	return err
}

// insertIntoDirectory runs steps 3-6 of the insert algorithm with the
// directory already write-latched: try the target bucket, split on
// overflow, grow the directory if the bucket's local depth has caught up
// to the global depth, and fail once the directory is at max depth and
// still full.
func (t *ExtendibleHashTable) insertIntoDirectory(dirGuard *storage.WritePageGuard, hash uint64, key Key, value RID) error {
	dir := LoadDirectoryPage(dirGuard.Data())

	for {
		bucketIdx := dir.BucketIndex(hash)
		bucketPageID := dir.BucketPageID(bucketIdx)

		bucketGuard, err := t.bpm.FetchPageWrite(bucketPageID)
		if err != nil {
			return fmt.Errorf("hashindex: fetch bucket: %w", err)
		}
		bucket := LoadBucketPage(bucketGuard.Data())

		if _, exists := bucket.Find(key); exists {
			bucketGuard.Drop()
			return ErrDuplicateKey
		}

		if !bucket.IsFull() {
			bucket.Insert(key, value)
			bucketGuard.MarkDirty()
			bucketGuard.Drop()
			t.inserts++
			return nil
		}

		localDepth := dir.LocalDepth(bucketIdx)
		if localDepth < uint8(dir.GlobalDepth()) {
			if err := t.splitBucket(dir, dirGuard, bucketIdx, bucketGuard, bucket); err != nil {
				return err
			}
			t.splits++
			continue
		}

		bucketGuard.Drop()

		if dir.CanGrow() {
			dir.Grow()
			dirGuard.MarkDirty()
			t.dirGrows++
			continue
		}

		t.fullErrors++
		return ErrHashTableFull
	}
}

// splitBucket allocates a sibling bucket, redistributes bucket's entries
// between the two by the newly-significant hash bit, and repoints every
// directory slot that used to point at bucket to whichever of the two
// now owns it. bucketGuard is dropped before returning; callers must
// refetch via the updated directory on their next loop iteration. If no
// frame is available for the sibling, the bucket and directory are left
// unchanged and the allocation error is returned.
func (t *ExtendibleHashTable) splitBucket(dir *DirectoryPage, dirGuard *storage.WritePageGuard, bucketIdx int, bucketGuard *storage.WritePageGuard, bucket *BucketPage) error {
	oldLocalDepth := dir.LocalDepth(bucketIdx)
	newLocalDepth := oldLocalDepth + 1
	newBit := uint(oldLocalDepth)

	newBucketPageID, newBucketGuard, err := t.bpm.NewPage()
	if err != nil {
		bucketGuard.Drop()
		return fmt.Errorf("hashindex: allocate split bucket: %w", err)
	}
	newBucket := NewBucketPage(newBucketGuard.Data(), bucket.MaxSize())

	entries := bucket.All()
	bucket.Clear()
	for _, e := range entries {
		if (hashKey(e.Key)>>newBit)&1 == 1 {
			newBucket.Insert(e.Key, e.Value)
		} else {
			bucket.Insert(e.Key, e.Value)
		}
	}
	bucketGuard.MarkDirty()
	newBucketGuard.MarkDirty()
	bucketGuard.Drop()
	newBucketGuard.Drop()

	oldBucketPageID := dir.BucketPageID(bucketIdx)
	for i := 0; i < dir.Size(); i++ {
		if dir.LocalDepth(i) != oldLocalDepth || dir.BucketPageID(i) != oldBucketPageID {
			continue
		}
		if (uint64(i)>>newBit)&1 == 1 {
			dir.SetBucket(i, newBucketPageID, newLocalDepth)
		} else {
			dir.SetBucket(i, oldBucketPageID, newLocalDepth)
		}
	}
	dirGuard.MarkDirty()
	return nil
}

// Remove deletes key's entry. If the owning bucket becomes empty it is
// merged with its sibling whenever the sibling shares the same local
// depth, repeating while possible, and the directory is halved whenever
// every slot's local depth has fallen below the global depth.
func (t *ExtendibleHashTable) Remove(key Key) error {
	hash := hashKey(key)

	headerGuard, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch header: %w", err)
	}
	header := LoadHeaderPage(headerGuard.Data())
	dirPageID := header.DirectoryPageID(header.DirectoryIndex(hash))
	headerGuard.Drop()

	if dirPageID == storage.InvalidPageID {
		return ErrKeyNotFound
	}

	dirGuard, err := t.bpm.FetchPageWrite(dirPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch directory: %w", err)
	}
	defer dirGuard.Drop()
	dir := LoadDirectoryPage(dirGuard.Data())

	bucketIdx := dir.BucketIndex(hash)
	bucketPageID := dir.BucketPageID(bucketIdx)

	bucketGuard, err := t.bpm.FetchPageWrite(bucketPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch bucket: %w", err)
	}
	bucket := LoadBucketPage(bucketGuard.Data())

	if !bucket.Remove(key) {
		bucketGuard.Drop()
		return ErrKeyNotFound
	}
	bucketGuard.MarkDirty()
	t.removes++

	if !bucket.IsEmpty() {
		bucketGuard.Drop()
		return nil
	}
	bucketGuard.Drop()

	t.mergeFrom(dir, dirGuard, bucketIdx)

	for dir.CanShrink() {
		dir.Shrink()
		dirGuard.MarkDirty()
		t.dirShrinks++
	}

	return nil
}

// mergeFrom repeatedly merges bucketIdx's (now-empty) bucket with its
// sibling as long as the sibling has the same local depth, per the
// remove algorithm's "repeat while possible" clause.
func (t *ExtendibleHashTable) mergeFrom(dir *DirectoryPage, dirGuard *storage.WritePageGuard, bucketIdx int) {
	for {
		localDepth := dir.LocalDepth(bucketIdx)
		if localDepth == 0 {
			return
		}
		siblingIdx := dir.SplitImage(bucketIdx)
		if dir.LocalDepth(siblingIdx) != localDepth {
			return
		}

		emptyBucketID := dir.BucketPageID(bucketIdx)
		siblingBucketID := dir.BucketPageID(siblingIdx)

		newLocalDepth := localDepth - 1
		for i := 0; i < dir.Size(); i++ {
			if dir.BucketPageID(i) == emptyBucketID || dir.BucketPageID(i) == siblingBucketID {
				dir.SetBucket(i, siblingBucketID, newLocalDepth)
			}
		}
		dirGuard.MarkDirty()
		t.bpm.DeletePage(emptyBucketID)
		t.merges++

		siblingGuard, err := t.bpm.FetchPageRead(siblingBucketID)
		if err != nil {
			return
		}
		sibling := LoadBucketPage(siblingGuard.Data())
		empty := sibling.IsEmpty()
		siblingGuard.Drop()
		if !empty {
			return
		}

		bucketIdx = siblingIdx
	}
}

// IndexSnapshot is a JSON-friendly report of directory/bucket shape, used
// by the admin surface's debug-index endpoint.
type IndexSnapshot struct {
	GlobalDepth uint32
	Slots       []SlotSnapshot
}

// SlotSnapshot describes a single directory slot.
type SlotSnapshot struct {
	Index       int
	LocalDepth  uint8
	BucketPage  storage.PageID
	BucketSize  int
	BucketLimit int
}

// VerifyIntegrity checks the directory invariants from the index's
// design: every slot's local depth is at most the global depth, and a
// bucket with local depth d is pointed to by exactly 1<<(global_depth-d)
// slots.
func (t *ExtendibleHashTable) VerifyIntegrity() error {
	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch header: %w", err)
	}
	header := LoadHeaderPage(headerGuard.Data())

	var dirPageIDs []storage.PageID
	for i := 0; i < headerEntries; i++ {
		if id := header.DirectoryPageID(i); id != storage.InvalidPageID {
			dirPageIDs = append(dirPageIDs, id)
		}
	}
	headerGuard.Drop()

	for _, dirPageID := range dirPageIDs {
		if err := t.verifyDirectory(dirPageID); err != nil {
			return err
		}
	}
	return nil
}

func (t *ExtendibleHashTable) verifyDirectory(dirPageID storage.PageID) error {
	dirGuard, err := t.bpm.FetchPageRead(dirPageID)
	if err != nil {
		return fmt.Errorf("hashindex: fetch directory: %w", err)
	}
	defer dirGuard.Drop()
	dir := LoadDirectoryPage(dirGuard.Data())

	global := dir.GlobalDepth()
	counts := make(map[storage.PageID]int)
	depths := make(map[storage.PageID]uint8)

	for i := 0; i < dir.Size(); i++ {
		local := dir.LocalDepth(i)
		if local > uint8(global) {
			return fmt.Errorf("hashindex: slot %d local_depth %d exceeds global_depth %d", i, local, global)
		}
		bucketID := dir.BucketPageID(i)
		counts[bucketID]++
		if existing, ok := depths[bucketID]; ok && existing != local {
			return fmt.Errorf("hashindex: bucket %d has inconsistent local_depth across slots", bucketID)
		}
		depths[bucketID] = local
	}

	for bucketID, count := range counts {
		want := 1 << (global - uint32(depths[bucketID]))
		if count != want {
			return fmt.Errorf("hashindex: bucket %d pointed to by %d slots, want %d", bucketID, count, want)
		}
	}
	return nil
}

// Snapshot walks the first directory reachable from the header and
// reports its shape, for the admin surface's GET /debug/index endpoint.
// It returns the zero IndexSnapshot if no directory has been created yet.
func (t *ExtendibleHashTable) Snapshot() (IndexSnapshot, error) {
	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return IndexSnapshot{}, fmt.Errorf("hashindex: fetch header: %w", err)
	}
	header := LoadHeaderPage(headerGuard.Data())

	var dirPageID storage.PageID = storage.InvalidPageID
	for i := 0; i < headerEntries; i++ {
		if id := header.DirectoryPageID(i); id != storage.InvalidPageID {
			dirPageID = id
			break
		}
	}
	headerGuard.Drop()

	if dirPageID == storage.InvalidPageID {
		return IndexSnapshot{}, nil
	}

	dirGuard, err := t.bpm.FetchPageRead(dirPageID)
	if err != nil {
		return IndexSnapshot{}, fmt.Errorf("hashindex: fetch directory: %w", err)
	}
	defer dirGuard.Drop()
	dir := LoadDirectoryPage(dirGuard.Data())

	snap := IndexSnapshot{GlobalDepth: dir.GlobalDepth()}
	for i := 0; i < dir.Size(); i++ {
		bucketID := dir.BucketPageID(i)
		slot := SlotSnapshot{Index: i, LocalDepth: dir.LocalDepth(i), BucketPage: bucketID}

		if bucketGuard, err := t.bpm.FetchPageRead(bucketID); err == nil {
			bucket := LoadBucketPage(bucketGuard.Data())
			slot.BucketSize = bucket.Size()
			slot.BucketLimit = bucket.MaxSize()
			bucketGuard.Drop()
		}
		snap.Slots = append(snap.Slots, slot)
	}
	return snap, nil
}

// Stats reports cumulative operation counters, surfaced by the admin
// metrics endpoint.
type Stats struct {
	Inserts, Removes, Gets int64
	Splits, Merges         int64
	DirectoryGrows         int64
	DirectoryShrinks       int64
	HashTableFullErrors    int64
}

// Stats returns a point-in-time snapshot of the table's counters.
func (t *ExtendibleHashTable) Stats() Stats {
	return Stats{
		Inserts:             t.inserts,
		Removes:             t.removes,
		Gets:                t.gets,
		Splits:              t.splits,
		Merges:              t.merges,
		DirectoryGrows:      t.dirGrows,
		DirectoryShrinks:    t.dirShrinks,
		HashTableFullErrors: t.fullErrors,
	}
}
