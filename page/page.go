// Package page defines the fixed-size frame that the buffer pool slabs
// memory out of, and the page identifiers those frames hold.
package page

import "sync"

// Size is the size in bytes of every page the disk manager and buffer
// pool deal in, fixed at compile time per spec.md §6.
const Size = 4096

// ID identifies a page on disk. InvalidID is reserved and never
// resolves to a resident frame.
type ID uint32

// InvalidID is the sentinel page identifier: a frame holding it is free.
const InvalidID ID = 0

// Frame is a resident slot in the buffer pool: a page-sized byte
// buffer plus the metadata the buffer pool and replacer need to decide
// whether it may be evicted.
//
// Frame's own mutex guards only the byte contents (the "content latch"
// of spec.md §4.A / §5); PageID, PinCount and Dirty are metadata owned
// by the buffer pool's master latch, not this mutex.
type Frame struct {
	Data     [Size]byte
	PageID   ID
	PinCount int32
	Dirty    bool
	LSN      uint64 // highest LSN of a log record this page's bytes depend on

	mu sync.RWMutex
}

// Reset clears a frame back to its just-freed state: zero bytes,
// sentinel page id, no pins, not dirty. Called by the buffer pool
// before installing a new occupant.
func (f *Frame) Reset() {
	f.Data = [Size]byte{}
	f.PageID = InvalidID
	f.PinCount = 0
	f.Dirty = false
	f.LSN = 0
}

// Lock acquires the frame's exclusive content latch.
func (f *Frame) Lock() { f.mu.Lock() }

// Unlock releases the frame's exclusive content latch.
func (f *Frame) Unlock() { f.mu.Unlock() }

// RLock acquires the frame's shared content latch.
func (f *Frame) RLock() { f.mu.RLock() }

// RUnlock releases the frame's shared content latch.
func (f *Frame) RUnlock() { f.mu.RUnlock() }

// TryLock attempts to acquire the exclusive content latch without
// blocking, reporting whether it succeeded. FlushAllPages uses this to
// skip a page currently held by an in-flight writer rather than
// stalling every other buffer pool operation behind it while holding
// the pool's master latch.
func (f *Frame) TryLock() bool { return f.mu.TryLock() }
