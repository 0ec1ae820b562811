package bufferpool

import (
	"storagecore/page"
)

// BasicGuard is a scoped, RAII-style handle on a pinned page: it
// guarantees the page is unpinned exactly once, on whichever exit path
// releases it (spec.md §4.D). The zero value is a released guard, so
// a guard built from a failed fetch can be returned safely without a
// nil check at the call site (SPEC_FULL.md §11).
type BasicGuard struct {
	pool     *Manager
	pageID   page.ID
	frame    *page.Frame
	dirty    bool
	released bool
}

// newBasicGuard wraps frame (which may be nil, meaning the fetch
// failed) in a guard over pool.
func newBasicGuard(pool *Manager, pageID page.ID, frame *page.Frame) BasicGuard {
	if frame == nil {
		return BasicGuard{released: true}
	}
	return BasicGuard{pool: pool, pageID: pageID, frame: frame}
}

// Ok reports whether the guard holds a live page.
func (g *BasicGuard) Ok() bool { return !g.released && g.frame != nil }

// Frame returns the guarded frame, or nil if the guard doesn't hold one.
func (g *BasicGuard) Frame() *page.Frame { return g.frame }

// PageID returns the guarded page's identifier.
func (g *BasicGuard) PageID() page.ID { return g.pageID }

// MarkDirty records that the caller modified the page's bytes; the
// dirty hint is passed to UnpinPage on Release.
func (g *BasicGuard) MarkDirty() { g.dirty = true }

// Release unpins the guarded page. It is a no-op after the first call
// or after Move (spec.md §4.D: "a release method that is a no-op
// after transfer").
func (g *BasicGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	if g.pool != nil {
		g.pool.UnpinPage(g.pageID, g.dirty, AccessUnknown)
	}
}

// Move transfers ownership of the guard to the caller and marks the
// receiver released, so releasing g a second time is a no-op — the
// non-copyable/move-only semantics of spec.md §4.D modeled the way Go
// can: by disabling the source instead of forbidding the copy.
func (g *BasicGuard) Move() BasicGuard {
	moved := *g
	g.released = true
	g.pool = nil
	return moved
}

// ReadGuard additionally holds the frame's shared content latch,
// acquired after the pool mutex has already been released by the
// fetch that produced it (spec.md §5).
type ReadGuard struct {
	BasicGuard
	locked bool
}

func newReadGuard(pool *Manager, pageID page.ID, frame *page.Frame) ReadGuard {
	g := ReadGuard{BasicGuard: newBasicGuard(pool, pageID, frame)}
	if g.Ok() {
		frame.RLock()
		g.locked = true
	}
	return g
}

// Release unlatches before unpinning, matching spec.md §5's release
// order ("releases latch then unpins on drop").
func (g *ReadGuard) Release() {
	if g.locked {
		g.frame.RUnlock()
		g.locked = false
	}
	g.BasicGuard.Release()
}

// Move transfers ownership of the guard, including the held content
// latch, to the caller and disables the receiver. Shadows the
// embedded BasicGuard.Move so the latch's locked bool and frame
// reference survive the transfer instead of being silently dropped —
// releasing the moved guard still calls frame.RUnlock exactly once.
func (g *ReadGuard) Move() ReadGuard {
	moved := ReadGuard{BasicGuard: g.BasicGuard.Move(), locked: g.locked}
	g.locked = false
	return moved
}

// WriteGuard additionally holds the frame's exclusive content latch.
type WriteGuard struct {
	BasicGuard
	locked bool
}

func newWriteGuard(pool *Manager, pageID page.ID, frame *page.Frame) WriteGuard {
	g := WriteGuard{BasicGuard: newBasicGuard(pool, pageID, frame)}
	if g.Ok() {
		frame.Lock()
		g.locked = true
	}
	return g
}

// Release unlatches before unpinning, same order as ReadGuard.
func (g *WriteGuard) Release() {
	if g.locked {
		g.frame.Unlock()
		g.locked = false
	}
	g.BasicGuard.Release()
}

// Move transfers ownership of the guard, including the held exclusive
// content latch, to the caller and disables the receiver. See
// ReadGuard.Move for why this override is required.
func (g *WriteGuard) Move() WriteGuard {
	moved := WriteGuard{BasicGuard: g.BasicGuard.Move(), locked: g.locked}
	g.locked = false
	return moved
}

// FetchPageBasic fetches pageID and wraps it in a BasicGuard.
func (m *Manager) FetchPageBasic(pageID page.ID, accessType AccessType) BasicGuard {
	frame, _ := m.FetchPage(pageID, accessType)
	return newBasicGuard(m, pageID, frame)
}

// FetchPageRead fetches pageID and wraps it in a ReadGuard, acquiring
// the frame's shared latch.
func (m *Manager) FetchPageRead(pageID page.ID, accessType AccessType) ReadGuard {
	frame, _ := m.FetchPage(pageID, accessType)
	return newReadGuard(m, pageID, frame)
}

// FetchPageWrite fetches pageID and wraps it in a WriteGuard, acquiring
// the frame's exclusive latch.
func (m *Manager) FetchPageWrite(pageID page.ID, accessType AccessType) WriteGuard {
	frame, _ := m.FetchPage(pageID, accessType)
	return newWriteGuard(m, pageID, frame)
}

// NewPageGuarded allocates a fresh page and wraps it in a BasicGuard.
func (m *Manager) NewPageGuarded(accessType AccessType) (page.ID, BasicGuard) {
	id, frame, _ := m.NewPage(accessType)
	return id, newBasicGuard(m, id, frame)
}
