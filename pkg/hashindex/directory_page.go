package hashindex

import (
	"encoding/binary"

	"github.com/nsavio/crabdb/pkg/storage"
)

// DirectoryMaxDepth bounds how large a directory page's global_depth may
// grow: at most 2^DirectoryMaxDepth slots.
const DirectoryMaxDepth = 9

const directoryMaxEntries = 1 << DirectoryMaxDepth

// Directory page layout offsets:
//
//	max_depth: u32
//	global_depth: u32
//	local_depth[1 << max_depth]: u8
//	bucket_page_id[1 << max_depth]: i32
const (
	dirMaxDepthOffset    = 0
	dirGlobalDepthOffset = 4
	dirLocalDepthOffset  = 8
)

// DirectoryPage is a typed, offset-based view over a raw page's bytes
// implementing one level of an extendible hash table's directory.
type DirectoryPage struct {
	data []byte
}

// NewDirectoryPage initializes data as a fresh directory with
// global_depth 0, a single slot pointing at bucketPageID.
func NewDirectoryPage(data []byte, bucketPageID storage.PageID) *DirectoryPage {
	d := &DirectoryPage{data: data}
	binary.LittleEndian.PutUint32(d.data[dirMaxDepthOffset:dirMaxDepthOffset+4], DirectoryMaxDepth)
	binary.LittleEndian.PutUint32(d.data[dirGlobalDepthOffset:dirGlobalDepthOffset+4], 0)
	for i := 0; i < directoryMaxEntries; i++ {
		d.setLocalDepth(i, 0)
		d.setBucketPageID(i, storage.InvalidPageID)
	}
	d.setBucketPageID(0, bucketPageID)
	return d
}

// LoadDirectoryPage wraps already-initialized bytes without touching them.
func LoadDirectoryPage(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

func (d *DirectoryPage) bucketIDOffset() int {
	return dirLocalDepthOffset + directoryMaxEntries
}

// MaxDepth returns DirectoryMaxDepth as stored in the page.
func (d *DirectoryPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[dirMaxDepthOffset : dirMaxDepthOffset+4])
}

// GlobalDepth returns the directory's current global depth.
func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[dirGlobalDepthOffset : dirGlobalDepthOffset+4])
}

func (d *DirectoryPage) setGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.data[dirGlobalDepthOffset:dirGlobalDepthOffset+4], depth)
}

// Size returns 1 << GlobalDepth(), the number of slots currently in use.
func (d *DirectoryPage) Size() int {
	return 1 << d.GlobalDepth()
}

// LocalDepth returns slot i's local depth.
func (d *DirectoryPage) LocalDepth(i int) uint8 {
	return d.data[dirLocalDepthOffset+i]
}

func (d *DirectoryPage) setLocalDepth(i int, depth uint8) {
	d.data[dirLocalDepthOffset+i] = depth
}

// BucketPageID returns the bucket page id that slot i points to.
func (d *DirectoryPage) BucketPageID(i int) storage.PageID {
	off := d.bucketIDOffset() + i*4
	return storage.PageID(int32(binary.LittleEndian.Uint32(d.data[off : off+4])))
}

func (d *DirectoryPage) setBucketPageID(i int, id storage.PageID) {
	off := d.bucketIDOffset() + i*4
	binary.LittleEndian.PutUint32(d.data[off:off+4], uint32(int32(id)))
}

// BucketIndex returns the directory slot a key's hash resolves to: its
// low GlobalDepth() bits. Low-order addressing is what makes Grow's
// duplicate-into-the-upper-half scheme correct: growing the directory
// adds one new high-order bit to the mask without disturbing any
// existing slot's meaning.
func (d *DirectoryPage) BucketIndex(hash uint64) int {
	depth := d.GlobalDepth()
	if depth == 0 {
		return 0
	}
	return int(hash & (uint64(1)<<depth - 1))
}

// SplitImage returns the slot whose bucket is i's split sibling at i's
// current local depth: i with bit local_depth-1 flipped, the slot a bucket
// at i merges with. A slot with local depth 0 has no sibling; i is
// returned unchanged.
func (d *DirectoryPage) SplitImage(i int) int {
	localDepth := d.LocalDepth(i)
	if localDepth == 0 {
		return i
	}
	return i ^ (1 << (localDepth - 1))
}

// CanGrow reports whether GlobalDepth can still be incremented.
func (d *DirectoryPage) CanGrow() bool {
	return d.GlobalDepth() < d.MaxDepth()
}

// Grow doubles the directory: every existing slot's bucket pointer and
// local depth are copied into slot+oldSize, and global_depth increments.
func (d *DirectoryPage) Grow() {
	oldSize := d.Size()
	for i := 0; i < oldSize; i++ {
		d.setBucketPageID(i+oldSize, d.BucketPageID(i))
		d.setLocalDepth(i+oldSize, d.LocalDepth(i))
	}
	d.setGlobalDepth(d.GlobalDepth() + 1)
}

// CanShrink reports whether every occupied slot's local depth is
// strictly less than the current global depth, i.e. the directory can be
// halved without losing any distinct bucket mapping.
func (d *DirectoryPage) CanShrink() bool {
	depth := d.GlobalDepth()
	if depth == 0 {
		return false
	}
	for i := 0; i < d.Size(); i++ {
		if d.LocalDepth(i) >= depth {
			return false
		}
	}
	return true
}

// Shrink halves the directory, decrementing global_depth. Callers must
// check CanShrink first.
func (d *DirectoryPage) Shrink() {
	d.setGlobalDepth(d.GlobalDepth() - 1)
}

// SetBucket installs bucketID at slot i with the given local depth, used
// after a split or merge to repoint the affected slots.
func (d *DirectoryPage) SetBucket(i int, bucketID storage.PageID, localDepth uint8) {
	d.setBucketPageID(i, bucketID)
	d.setLocalDepth(i, localDepth)
}

// UpdateLocalDepth sets slot i's local depth without touching its bucket
// pointer.
func (d *DirectoryPage) UpdateLocalDepth(i int, localDepth uint8) {
	d.setLocalDepth(i, localDepth)
}
