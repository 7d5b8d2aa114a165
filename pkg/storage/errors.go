package storage

import "errors"

var (
	// ErrNoAvailableFrame is returned by NewPage and the fetch paths when
	// every frame is pinned and the replacer has nothing evictable.
	ErrNoAvailableFrame = errors.New("storage: no available frame")

	// ErrInvalidPageID is returned by Unpin and FlushPage when given a
	// page id that is not resident in the buffer pool. Unlike unpinning
	// an already-unpinned page —
	// a caller bug, which panics — an unknown id can legitimately arise
	// from racing with a concurrent DeletePage, so it is a returned error.
	ErrInvalidPageID = errors.New("storage: invalid page id")
)
