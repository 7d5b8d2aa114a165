// Package hashindex implements a disk-backed extendible hash table built
// as a client of the buffer pool manager: a header page routes a key's
// hash to a directory page, the directory routes to a bucket page, and
// the bucket holds the actual (key, value) entries.
package hashindex

import "errors"

var (
	// ErrKeyNotFound is returned by Remove and surfaced by Get when no
	// entry for the key exists.
	ErrKeyNotFound = errors.New("hashindex: key not found")

	// ErrDuplicateKey is returned by Insert when the key is already
	// present; this index does not support multi-valued keys.
	ErrDuplicateKey = errors.New("hashindex: duplicate key")

	// ErrHashTableFull is returned by Insert when the directory is
	// already at its maximum depth and the target bucket is full, so no
	// further split or directory growth can make room.
	ErrHashTableFull = errors.New("hashindex: hash table full")
)
