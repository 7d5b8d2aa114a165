package hashindex

import (
	"encoding/binary"

	"github.com/nsavio/crabdb/pkg/storage"
)

// entryWidth is the on-disk size of one (Key, Value) pair.
const entryWidth = keySize + valueSize

// bucketHeaderWidth is size:u32 + max_size:u32.
const bucketHeaderWidth = 8

// DefaultBucketMaxSize is the largest bucket capacity that fits in a
// single storage.PageSize page alongside the 8-byte header. Smaller
// capacities can be configured per table (useful for exercising
// split/merge behavior in tests without huge fixtures).
const DefaultBucketMaxSize = (storage.PageSize - bucketHeaderWidth) / entryWidth

// Entry is one (key, value) pair, used when enumerating a bucket's
// contents for split/merge redistribution.
type Entry struct {
	Key   Key
	Value RID
}

// BucketPage is a typed, offset-based view over a raw page's bytes:
//
//	size: u32
//	max_size: u32
//	entries[max_size]: (Key, Value)
type BucketPage struct {
	data []byte
}

// NewBucketPage initializes data as a fresh, empty bucket with the given
// capacity.
func NewBucketPage(data []byte, maxSize int) *BucketPage {
	b := &BucketPage{data: data}
	binary.LittleEndian.PutUint32(b.data[0:4], 0)
	binary.LittleEndian.PutUint32(b.data[4:8], uint32(maxSize))
	return b
}

// LoadBucketPage wraps already-initialized bytes without touching them.
func LoadBucketPage(data []byte) *BucketPage {
	return &BucketPage{data: data}
}

// Size returns the current number of entries.
func (b *BucketPage) Size() int {
	return int(binary.LittleEndian.Uint32(b.data[0:4]))
}

func (b *BucketPage) setSize(n int) {
	binary.LittleEndian.PutUint32(b.data[0:4], uint32(n))
}

// MaxSize returns the bucket's configured capacity.
func (b *BucketPage) MaxSize() int {
	return int(binary.LittleEndian.Uint32(b.data[4:8]))
}

// IsFull reports whether the bucket has reached its capacity.
func (b *BucketPage) IsFull() bool {
	return b.Size() >= b.MaxSize()
}

// IsEmpty reports whether the bucket holds no entries.
func (b *BucketPage) IsEmpty() bool {
	return b.Size() == 0
}

func (b *BucketPage) entryOffset(i int) int {
	return bucketHeaderWidth + i*entryWidth
}

func (b *BucketPage) keyAt(i int) Key {
	off := b.entryOffset(i)
	var k Key
	copy(k[:], b.data[off:off+keySize])
	return k
}

func (b *BucketPage) valueAt(i int) RID {
	off := b.entryOffset(i) + keySize
	return decodeRID(b.data[off : off+valueSize])
}

func (b *BucketPage) setEntry(i int, key Key, value RID) {
	off := b.entryOffset(i)
	copy(b.data[off:off+keySize], key[:])
	value.encode(b.data[off+keySize : off+entryWidth])
}

// Find linearly scans for key, as mandated by the lookup algorithm:
// entries are kept in insertion order with no secondary index.
func (b *BucketPage) Find(key Key) (RID, bool) {
	n := b.Size()
	for i := 0; i < n; i++ {
		if b.keyAt(i) == key {
			return b.valueAt(i), true
		}
	}
	return RID{}, false
}

// Insert appends (key, value) if there is room and key is not already
// present. It reports whether the insert happened; a full bucket or a
// duplicate key both report false without mutating the bucket.
func (b *BucketPage) Insert(key Key, value RID) bool {
	if _, exists := b.Find(key); exists {
		return false
	}
	if b.IsFull() {
		return false
	}
	n := b.Size()
	b.setEntry(n, key, value)
	b.setSize(n + 1)
	return true
}

// Remove deletes the entry for key, compacting the remaining entries to
// keep them contiguous from index 0. Reports whether an entry was
// removed.
func (b *BucketPage) Remove(key Key) bool {
	n := b.Size()
	for i := 0; i < n; i++ {
		if b.keyAt(i) != key {
			continue
		}
		for j := i; j < n-1; j++ {
			k := b.keyAt(j + 1)
			v := b.valueAt(j + 1)
			b.setEntry(j, k, v)
		}
		b.setSize(n - 1)
		return true
	}
	return false
}

// All returns every entry currently stored, in insertion order. Used
// during a split to redistribute entries between the old and new bucket.
func (b *BucketPage) All() []Entry {
	n := b.Size()
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{Key: b.keyAt(i), Value: b.valueAt(i)}
	}
	return entries
}

// Clear empties the bucket without touching its configured MaxSize.
func (b *BucketPage) Clear() {
	b.setSize(0)
}
