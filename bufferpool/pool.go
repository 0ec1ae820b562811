package bufferpool

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storagecore/lruk"
	"storagecore/page"
)

// New constructs a buffer pool of poolSize frames backed by disk, with
// an LRU-K replacer of depth replacerK. logger may be nil (defaults to a
// no-op logger, mirroring the teacher's bufferpool package working
// with or without an attached WAL manager).
func New(poolSize uint64, replacerK int, disk DiskManager, logger *zap.Logger) *Manager {
	if poolSize == 0 {
		panic("bufferpool: pool size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	logger = logger.With(zap.String("pool", id.String()))

	freeList := make([]uint64, poolSize)
	for i := range freeList {
		freeList[i] = uint64(i)
	}

	return &Manager{
		id:          id,
		poolSize:    poolSize,
		nextPageID:  1, // 0 is page.InvalidID
		frames:      make([]page.Frame, poolSize),
		pageTable:   make(map[page.ID]uint64, poolSize),
		freeList:    freeList,
		accessTypes: make([]AccessType, poolSize),
		replacer:    lruk.New(int(poolSize), replacerK, logger),
		disk:        disk,
		logger:      logger,
	}
}

// SetLogManager attaches the optional log manager consulted by
// FlushPage / FlushAllPages (SPEC_FULL.md §11).
func (m *Manager) SetLogManager(log LogManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

// reserveFrame returns a free frame index from the free list, or
// noFrame if none remain.
const noFrame = ^uint64(0)

func (m *Manager) reserveFrame() uint64 {
	if len(m.freeList) == 0 {
		return noFrame
	}
	id := m.freeList[len(m.freeList)-1]
	m.freeList = m.freeList[:len(m.freeList)-1]
	return id
}

// evictVictim asks the replacer for a frame to reuse, writing it back
// to disk first if dirty and removing its page-table entry. Returns
// the freed frame index, or noFrame/false if no victim is available.
//
// A candidate whose writeback is rejected by the log-flush gate (or
// fails for any other reason) is not evicted: its dirty bytes would be
// lost and the WAL-ordering invariant broken. Instead it is set aside
// and the next candidate is tried; every candidate set aside is
// restored to the replacer as evictable when this call returns. If
// every evictable candidate is rejected, eviction gives up.
func (m *Manager) evictVictim() (uint64, bool) {
	var tried map[uint64]bool
	defer func() {
		for fi := range tried {
			m.replacer.RecordAccess(lruk.FrameID(fi))
			m.replacer.SetEvictable(lruk.FrameID(fi), true)
		}
	}()

	for {
		frameID, ok := m.replacer.Evict()
		if !ok {
			return noFrame, false
		}
		fi := uint64(frameID)

		frame := &m.frames[fi]
		if frame.Dirty {
			if err := m.writeBack(frame.PageID, frame); err != nil {
				m.logger.Warn("bufferpool: eviction candidate rejected, trying next victim",
					zap.Uint32("page_id", uint32(frame.PageID)), zap.Error(err))
				if tried == nil {
					tried = make(map[uint64]bool)
				}
				tried[fi] = true
				continue
			}
		}

		delete(m.pageTable, frame.PageID)
		return fi, true
	}
}

// writeBack checks the log-manager gate (SPEC_FULL.md §11) before
// handing the frame to the disk manager.
func (m *Manager) writeBack(pageID page.ID, frame *page.Frame) error {
	if m.log != nil && frame.LSN > m.log.GetFlushedLSN() {
		return fmt.Errorf("bufferpool: page %d has unflushed LSN %d ahead of log flush point", pageID, frame.LSN)
	}
	return m.disk.WritePage(pageID, frame)
}

// NewPage allocates a fresh page identifier, pins a frame for it in
// the pool, and returns both (spec.md §4.D). Returns ok == false only
// when the pool is full and the replacer has no evictable victim.
func (m *Manager) NewPage(accessType AccessType) (page.ID, *page.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fi := m.reserveFrame()
	if fi == noFrame {
		var ok bool
		fi, ok = m.evictVictim()
		if !ok {
			return page.InvalidID, nil, false
		}
	}

	newID := page.ID(m.nextPageID)
	m.nextPageID++

	frame := &m.frames[fi]
	frame.Reset()
	frame.PageID = newID
	frame.PinCount = 1

	m.pageTable[newID] = fi
	m.accessTypes[fi] = accessType
	m.replacer.RecordAccess(lruk.FrameID(fi))
	m.replacer.SetEvictable(lruk.FrameID(fi), false)

	m.logger.Debug("bufferpool: new page", zap.Uint32("page_id", uint32(newID)))
	return newID, frame, true
}

// FetchPage returns the frame holding pageID, pinning it, loading it
// from disk first if it isn't already resident (spec.md §4.D).
// Returns ok == false when pageID isn't resident and no frame — free
// or evictable — is available to load it into, or when the disk read
// fails.
func (m *Manager) FetchPage(pageID page.ID, accessType AccessType) (*page.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fi, ok := m.pageTable[pageID]; ok {
		frame := &m.frames[fi]
		frame.PinCount++
		m.accessTypes[fi] = accessType
		m.replacer.RecordAccess(lruk.FrameID(fi))
		m.replacer.SetEvictable(lruk.FrameID(fi), false)
		m.logger.Debug("bufferpool: fetch hit", zap.Uint32("page_id", uint32(pageID)), zap.Stringer("access", accessType))
		return frame, true
	}

	fi := m.reserveFrame()
	if fi == noFrame {
		var ok bool
		fi, ok = m.evictVictim()
		if !ok {
			m.logger.Debug("bufferpool: fetch miss, pool exhausted", zap.Uint32("page_id", uint32(pageID)))
			return nil, false
		}
	}

	frame := &m.frames[fi]
	frame.Reset()
	if err := m.disk.ReadPage(pageID, frame); err != nil {
		m.freeList = append(m.freeList, fi)
		m.logger.Warn("bufferpool: disk read failed", zap.Error(err))
		return nil, false
	}
	frame.PageID = pageID
	frame.PinCount = 1

	m.pageTable[pageID] = fi
	m.accessTypes[fi] = accessType
	m.replacer.RecordAccess(lruk.FrameID(fi))
	m.replacer.SetEvictable(lruk.FrameID(fi), false)

	m.logger.Debug("bufferpool: fetch miss, loaded from disk", zap.Uint32("page_id", uint32(pageID)), zap.Stringer("access", accessType))
	return frame, true
}

// UnpinPage decrements pageID's pin count, marking its frame evictable
// once it reaches zero (spec.md §4.D). dirty is OR'd into the frame's
// dirty flag rather than overwriting it — SPEC_FULL.md / spec.md §9
// resolve the open question this way so that a caller passing
// dirty=false on an already-dirty page can never erase the dirty bit
// out from under a previous writer.
func (m *Manager) UnpinPage(pageID page.ID, dirty bool, accessType AccessType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pageID == page.InvalidID {
		return false
	}
	fi, ok := m.pageTable[pageID]
	if !ok {
		return false
	}

	frame := &m.frames[fi]
	if frame.PinCount == 0 {
		return false
	}

	frame.Dirty = frame.Dirty || dirty
	frame.PinCount--
	if frame.PinCount == 0 {
		m.replacer.SetEvictable(lruk.FrameID(fi), true)
	}
	m.accessTypes[fi] = accessType
	return true
}

// FlushPage unconditionally writes pageID's bytes to disk and clears
// its dirty flag, without affecting pin state or evictability
// (spec.md §4.D). Returns false if pageID is not resident.
func (m *Manager) FlushPage(pageID page.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fi, ok := m.pageTable[pageID]
	if !ok {
		return false
	}

	frame := &m.frames[fi]
	if err := m.writeBack(pageID, frame); err != nil {
		m.logger.Warn("bufferpool: flush failed", zap.Error(err))
		return false
	}
	frame.Dirty = false
	return true
}

// FlushAllPages writes every resident dirty page to disk, clearing
// each dirty flag (spec.md §4.D). It holds the pool's master latch for
// the whole sweep, so it only takes a frame's content latch on a
// best-effort, non-blocking basis (page.Frame.TryLock): a page
// currently held by an in-flight writer is skipped for this sweep
// rather than stalling every other buffer pool operation behind it.
func (m *Manager) FlushAllPages() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID, fi := range m.pageTable {
		frame := &m.frames[fi]
		if !frame.Dirty {
			continue
		}
		if !frame.TryLock() {
			m.logger.Debug("bufferpool: flush-all skipped page held by a writer", zap.Uint32("page_id", uint32(pageID)))
			continue
		}
		err := m.writeBack(pageID, frame)
		frame.Unlock()
		if err != nil {
			m.logger.Warn("bufferpool: flush-all skipped page", zap.Uint32("page_id", uint32(pageID)), zap.Error(err))
			continue
		}
		frame.Dirty = false
	}
}

// DeletePage removes pageID from the pool entirely: false if it's
// resident and still pinned, or if it's dirty and the defensive
// writeback is rejected (the log-flush gate, or a disk error) — in
// both failure cases the page's state is left untouched. True
// otherwise, including when it was never resident (spec.md §4.D
// normalizes this to "true on success", flagging in spec.md §9 that
// the BusTub source this is distilled from inverts that polarity and
// returns the page identifier, not the frame identifier, to its free
// list; both are corrected here).
func (m *Manager) DeletePage(pageID page.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fi, ok := m.pageTable[pageID]
	if !ok {
		return true
	}

	frame := &m.frames[fi]
	if frame.PinCount != 0 {
		return false
	}

	if frame.Dirty {
		if err := m.writeBack(pageID, frame); err != nil {
			m.logger.Warn("bufferpool: delete-page writeback failed, page not deleted", zap.Error(err))
			return false
		}
	}

	frame.Reset()
	delete(m.pageTable, pageID)
	m.replacer.Remove(lruk.FrameID(fi))
	m.freeList = append(m.freeList, fi)

	if err := m.disk.DeallocatePage(pageID); err != nil {
		m.logger.Warn("bufferpool: deallocate failed", zap.Error(err))
	}
	return true
}
