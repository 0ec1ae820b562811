package lruk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEvictHistoryBeforeCache covers spec.md S3: frames with fewer
// than K accesses dominate eviction order, and among them the
// oldest-by-first-access frame goes first.
func TestEvictHistoryBeforeCache(t *testing.T) {
	r := New(3, 2, nil)

	// A, B, C each accessed once (sub-K, history ring), then A again
	// (crosses into the cache ring).
	r.RecordAccess(0) // A
	r.RecordAccess(1) // B
	r.RecordAccess(2) // C
	r.RecordAccess(0) // A -> cache ring

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	require.Equal(t, 3, r.Size())

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(1), victim, "B is oldest-by-first-access in history ring")
	require.Equal(t, 2, r.Size())

	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(2), victim, "C is next oldest in history ring")
	require.Equal(t, 1, r.Size())

	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(0), victim, "A is the only frame left, now in the cache ring")
	require.Equal(t, 0, r.Size())

	_, ok = r.Evict()
	require.False(t, ok)
}

func TestRecordAccessSubKDoesNotReorderHistory(t *testing.T) {
	r := New(2, 4, nil)

	r.RecordAccess(0)
	r.RecordAccess(1)
	// Further sub-K accesses to frame 0 must not move it back to the
	// front of the history ring (ordering reflects first access only).
	r.RecordAccess(0)
	r.RecordAccess(0)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(0), victim, "frame 0 was accessed first and stays oldest in history order")
}

func TestRecordAccessCrossesIntoCacheRingAtK(t *testing.T) {
	r := New(2, 2, nil)

	r.RecordAccess(0)
	r.RecordAccess(0) // use_count == k: moves into cache ring
	r.RecordAccess(1) // use_count == 1: stays in history ring

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	// Frame 1 (history, use_count < k) must be preferred over frame 0
	// (cache, use_count == k), regardless of recency.
	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(1), victim)
}

func TestRecordAccessAboveKMovesToFrontOfCacheRing(t *testing.T) {
	r := New(2, 1, nil)

	r.RecordAccess(0) // use_count == 1 == k, enters cache ring
	r.RecordAccess(1) // enters cache ring, now front
	r.RecordAccess(0) // use_count == 2 > k, moved back to front

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	// Frame 1 is now least-recently-used in the cache ring.
	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(1), victim)
}

func TestSetEvictableIsNoopBeforeFirstAccess(t *testing.T) {
	r := New(1, 2, nil)
	r.SetEvictable(0, true)
	require.Equal(t, 0, r.Size())
}

func TestSetEvictableIsIdempotent(t *testing.T) {
	r := New(1, 2, nil)
	r.RecordAccess(0)
	r.SetEvictable(0, true)
	r.SetEvictable(0, true)
	require.Equal(t, 1, r.Size())
	r.SetEvictable(0, false)
	r.SetEvictable(0, false)
	require.Equal(t, 0, r.Size())
}

func TestEvictReturnsFalseWhenNothingEvictable(t *testing.T) {
	r := New(2, 2, nil)
	r.RecordAccess(0)
	r.RecordAccess(1)
	_, ok := r.Evict()
	require.False(t, ok)
}

func TestRemoveOnlyAppliesWhenEvictable(t *testing.T) {
	r := New(1, 2, nil)
	r.RecordAccess(0)
	r.Remove(0) // not evictable yet: no-op
	require.Equal(t, 0, r.Size())

	r.SetEvictable(0, true)
	require.Equal(t, 1, r.Size())
	r.Remove(0)
	require.Equal(t, 0, r.Size())

	// Frame is back to Absent: a fresh access starts a new history entry.
	r.RecordAccess(0)
	r.SetEvictable(0, true)
	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, FrameID(0), victim)
}

func TestRecordAccessRejectsOutOfRangeFrame(t *testing.T) {
	r := New(2, 2, nil)
	require.Panics(t, func() { r.RecordAccess(5) })
}

func TestSetEvictableRejectsOutOfRangeFrame(t *testing.T) {
	r := New(2, 2, nil)
	require.Panics(t, func() { r.SetEvictable(5, true) })
}
