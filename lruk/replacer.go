// Package lruk implements the LRU-K page replacement policy (spec.md
// §4.C): it tracks the last K accesses per frame and, on request,
// names the frame that should be evicted next.
//
// Adapted from BusTub's original_source/src/buffer/lru_k_replacer.cpp:
// the history/cache list split and the tail-to-front eviction scan are
// taken from there verbatim, since spec.md §9 calls out that an
// implementer "must preserve this precise rule to match S3".
package lruk

import (
	"container/list"
	"sync"

	"go.uber.org/zap"

	"storagecore/internal/invariant"
)

// FrameID indexes a frame in the buffer pool's frame array.
type FrameID uint64

// Replacer tracks access history for frames 0..N-1 and selects an
// eviction victim among those marked evictable.
//
// All public methods are critical sections under mu, per spec.md §5:
// "the replacer each hold an internal mutex; all public replacer
// operations are critical sections on that mutex."
type Replacer struct {
	mu sync.Mutex

	size int
	k    int

	useCount   []int
	evictable  []bool
	history    *list.List // front = most-recently-first-seen; back = oldest
	cache      *list.List // front = most-recently-used; back = least-recently-used
	historyPos map[FrameID]*list.Element
	cachePos   map[FrameID]*list.Element

	currSize int

	log *zap.Logger
}

// New constructs a replacer over numFrames frames with history depth k.
// log may be nil, in which case the replacer logs nothing (mirroring
// the rest of this module's "logger optional, defaults to silence"
// convention — see bufferpool.Manager).
func New(numFrames int, k int, log *zap.Logger) *Replacer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Replacer{
		size:       numFrames,
		k:          k,
		useCount:   make([]int, numFrames),
		evictable:  make([]bool, numFrames),
		history:    list.New(),
		cache:      list.New(),
		historyPos: make(map[FrameID]*list.Element, numFrames),
		cachePos:   make(map[FrameID]*list.Element, numFrames),
		log:        log,
	}
}

func (r *Replacer) checkBounds(frameID FrameID) {
	invariant.Checkf(int(frameID) < r.size, "lruk: frame id %d is out of range [0, %d)", frameID, r.size)
}

// RecordAccess registers a new access to frameID, advancing it through
// the Absent → History → Cache state machine described in spec.md
// §4.C. Invalid frame identifiers are a programming error (spec.md
// §7) and panic.
func (r *Replacer) RecordAccess(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkBounds(frameID)

	r.useCount[frameID]++
	switch {
	case r.useCount[frameID] == r.k:
		// Crossing into the cache ring: drop from history if present,
		// insert at the front of the cache ring.
		if el, ok := r.historyPos[frameID]; ok {
			r.history.Remove(el)
			delete(r.historyPos, frameID)
		}
		r.cachePos[frameID] = r.cache.PushFront(frameID)
	case r.useCount[frameID] > r.k:
		// Standard LRU update: move to the front of the cache ring.
		if el, ok := r.cachePos[frameID]; ok {
			r.cache.MoveToFront(el)
		} else {
			r.cachePos[frameID] = r.cache.PushFront(frameID)
		}
	default:
		// Sub-K access: insert at the front only on first access.
		// History ordering reflects *first* access time, so later
		// sub-K accesses never reorder it (spec.md §4.C).
		if _, ok := r.historyPos[frameID]; !ok {
			r.historyPos[frameID] = r.history.PushFront(frameID)
		}
	}

	r.log.Debug("lruk: recorded access", zap.Uint64("frame_id", uint64(frameID)), zap.Int("use_count", r.useCount[frameID]))
}

// SetEvictable toggles whether frameID may be chosen by Evict. A
// no-op when the frame has never been accessed (use_count == 0).
func (r *Replacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkBounds(frameID)

	if r.useCount[frameID] == 0 {
		return
	}

	if r.evictable[frameID] && !evictable {
		r.currSize--
	} else if !r.evictable[frameID] && evictable {
		r.currSize++
	}
	r.evictable[frameID] = evictable
}

// Evict returns the frame that should be evicted next and removes it
// from the replacer's tracking, or reports ok == false if no frame is
// currently evictable.
//
// Victim choice (spec.md §4.C): prefer any evictable frame in the
// history ring, scanning from the tail (oldest-by-first-access) to
// the front; only if none is evictable there, scan the cache ring
// tail-to-front.
func (r *Replacer) Evict() (frameID FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for el := r.history.Back(); el != nil; el = el.Prev() {
		fid := el.Value.(FrameID)
		if !r.evictable[fid] {
			continue
		}
		r.history.Remove(el)
		delete(r.historyPos, fid)
		r.clearFrame(fid)
		r.log.Debug("lruk: evicted from history ring", zap.Uint64("frame_id", uint64(fid)))
		return fid, true
	}

	for el := r.cache.Back(); el != nil; el = el.Prev() {
		fid := el.Value.(FrameID)
		if !r.evictable[fid] {
			continue
		}
		r.cache.Remove(el)
		delete(r.cachePos, fid)
		r.clearFrame(fid)
		r.log.Debug("lruk: evicted from cache ring", zap.Uint64("frame_id", uint64(fid)))
		return fid, true
	}

	return 0, false
}

// Remove forces frameID out of the replacer's tracking — used by the
// buffer pool when a page is deleted outright (spec.md §4.C). A
// no-op unless the frame is currently evictable.
func (r *Replacer) Remove(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkBounds(frameID)

	if !r.evictable[frameID] {
		return
	}

	if el, ok := r.historyPos[frameID]; ok {
		r.history.Remove(el)
		delete(r.historyPos, frameID)
	}
	if el, ok := r.cachePos[frameID]; ok {
		r.cache.Remove(el)
		delete(r.cachePos, frameID)
	}
	r.clearFrame(frameID)
}

// clearFrame zeroes use_count, clears the evictable flag and
// decrements curr_size for a frame leaving the replacer entirely.
// Caller must hold mu.
func (r *Replacer) clearFrame(frameID FrameID) {
	r.useCount[frameID] = 0
	r.evictable[frameID] = false
	r.currSize--
}

// Size reports the number of frames currently eligible for eviction.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
