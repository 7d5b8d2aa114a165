package hashindex

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// keySize is the width, in bytes, of a fixed Key. Go has no value-level
// (const) generics, so the "fixed-size types parameterized at compile
// time" requirement is met with a concrete array width instead of a
// template parameter.
const keySize = 16

// Key is a fixed-width index key. Shorter inputs are zero-padded on the
// right; longer ones are truncated, so callers that need the full
// distinguishing power of a long string should hash it down to 16 bytes
// themselves before calling KeyFromString.
type Key [keySize]byte

// KeyFromUint64 packs a uint64 into the low 8 bytes of a Key, big-endian,
// leaving the upper 8 bytes zero.
func KeyFromUint64(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[8:], v)
	return k
}

// KeyFromString copies up to 16 bytes of s into a Key, zero-padding if s
// is shorter.
func KeyFromString(s string) Key {
	var k Key
	copy(k[:], s)
	return k
}

// RID ("record identifier") is the index's Value type: a pointer to a row
// elsewhere in the storage engine, the canonical shape used by the
// storage lineage's on-disk B+Tree for the same purpose.
type RID struct {
	PageID uint32
	SlotID uint32
}

// valueSize is the on-disk width of an RID: two uint32 fields.
const valueSize = 8

func (r RID) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], r.PageID)
	binary.LittleEndian.PutUint32(dst[4:8], r.SlotID)
}

func decodeRID(src []byte) RID {
	return RID{
		PageID: binary.LittleEndian.Uint32(src[0:4]),
		SlotID: binary.LittleEndian.Uint32(src[4:8]),
	}
}

// hashSeed keys the blake2b hash so the index's bucket distribution isn't
// trivially predictable from the raw key bytes; any fixed seed works
// since we only need a well-mixed 64-bit hash, not a cryptographic MAC.
var hashSeed = []byte("crabdb-hashindex")

// hashKey returns a well-distributed 64-bit hash of key, used by the
// header to pick a directory bits prefix and by the directory to pick a
// bucket.
func hashKey(key Key) uint64 {
	h, err := blake2b.New(8, hashSeed)
	if err != nil {
		panic("hashindex: blake2b.New: " + err.Error())
	}
	h.Write(key[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum)
}
