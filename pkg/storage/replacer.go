package storage

import (
	"fmt"
	"math"
	"sync"
)

// frameHistory is one frame's replacer node: up to k of its most recent
// accesses (the k in LRU-K) and whether it is evictable.
type frameHistory struct {
	accesses  []int64 // bounded to k entries, oldest first
	evictable bool
}

// Replacer picks an eviction victim for the buffer pool manager using the
// LRU-K policy: backward k-distance (now minus the k-th most recent
// access), with frames that have fewer than k accesses treated as having
// infinite distance and broken by classical LRU among themselves.
//
// All public methods lock internally and are safe to call concurrently;
// the buffer pool manager may additionally hold its own inner mutex around
// a call, or not, either is safe.
type Replacer struct {
	mu sync.Mutex

	k       int
	clock   int64
	nodes   map[FrameID]*frameHistory
	evictN  int
	evicted int64
}

// NewReplacer creates a replacer tracking backward k-distance over the
// last k accesses per frame.
func NewReplacer(k int) *Replacer {
	if k < 1 {
		k = 1
	}
	return &Replacer{
		k:     k,
		nodes: make(map[FrameID]*frameHistory),
	}
}

// RecordAccess appends the current logical tick to frame's history,
// creating its node if this is the first time the frame has been seen.
// New frames default to not evictable.
func (r *Replacer) RecordAccess(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	node, ok := r.nodes[frame]
	if !ok {
		node = &frameHistory{}
		r.nodes[frame] = node
	}

	node.accesses = append(node.accesses, r.clock)
	if len(node.accesses) > r.k {
		node.accesses = node.accesses[len(node.accesses)-r.k:]
	}
}

// SetEvictable toggles whether frame participates in eviction. The frame
// must already have a node (i.e. RecordAccess was called for it at least
// once); calling this on an unknown frame is a caller bug and panics.
func (r *Replacer) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frame]
	if !ok {
		panic(fmt.Sprintf("storage: SetEvictable on frame %d with no access history", frame))
	}

	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		r.evictN++
	} else {
		r.evictN--
	}
}

// Evict selects and removes the frame with the largest backward k-distance
// among evictable frames, breaking ties by the earliest recorded access
// (classical LRU). It reports ok=false when no frame is evictable.
func (r *Replacer) Evict() (frame FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		victim      FrameID
		victimFound bool
		bestDist    int64 = -1
		bestOldest  int64
	)

	for id, node := range r.nodes {
		if !node.evictable {
			continue
		}

		dist, oldest := kDistance(node, r.clock, r.k)

		better := !victimFound
		if !better {
			if dist == bestDist {
				better = oldest < bestOldest
			} else {
				better = dist > bestDist
			}
		}

		if better {
			victim = id
			victimFound = true
			bestDist = dist
			bestOldest = oldest
		}
	}

	if !victimFound {
		return 0, false
	}

	delete(r.nodes, victim)
	r.evictN--
	r.evicted++
	return victim, true
}

// infiniteDistance represents a backward k-distance of +infinity: the
// frame has fewer than k recorded accesses. It must outrank every finite
// distance in Evict's "largest wins" comparison, hence math.MaxInt64
// rather than a negative sentinel.
const infiniteDistance = int64(math.MaxInt64)

// kDistance returns the frame's backward k-distance and the timestamp of
// its single oldest recorded access (used to break +infinity ties via
// classical LRU).
func kDistance(node *frameHistory, now int64, k int) (dist, oldest int64) {
	oldest = node.accesses[0]
	if len(node.accesses) < k {
		return infiniteDistance, oldest
	}
	kth := node.accesses[0]
	return now - kth, oldest
}

// Remove discards frame's node outright, independent of victim selection,
// used when the buffer pool manager destroys a page. It panics if frame
// is known but marked non-evictable; an unknown frame is a silent no-op.
func (r *Replacer) Remove(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frame]
	if !ok {
		return
	}
	if !node.evictable {
		panic(fmt.Sprintf("storage: Remove on non-evictable frame %d", frame))
	}

	delete(r.nodes, frame)
	r.evictN--
}

// Size returns the number of frames currently eligible for eviction.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictN
}

// Stats reports the current evictable count and the lifetime number of
// victims this replacer has served to Evict callers.
type ReplacerStats struct {
	Evictable      int
	TotalEvictions int64
}

func (r *Replacer) Stats() ReplacerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReplacerStats{Evictable: r.evictN, TotalEvictions: r.evicted}
}
