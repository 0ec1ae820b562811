package bufferpool

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storagecore/lruk"
	"storagecore/page"
)

// AccessType is a hint about why a page was fetched, supplied by
// higher layers (spec.md §6, supplemented in SPEC_FULL.md §11 from
// BusTub's AccessType enum). The reference replacer treats it as
// informational only — it is recorded per frame for introspection and
// logging, never used to bias LRU-K ranking.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessScan
	AccessLookup
	AccessIndex
)

func (a AccessType) String() string {
	switch a {
	case AccessScan:
		return "scan"
	case AccessLookup:
		return "lookup"
	case AccessIndex:
		return "index"
	default:
		return "unknown"
	}
}

// DiskManager is the collaborator the buffer pool reads pages from and
// writes pages to (spec.md §6). diskio.Manager and
// diskio.CachingDiskManager both satisfy it.
type DiskManager interface {
	ReadPage(id page.ID, dst *page.Frame) error
	WritePage(id page.ID, src *page.Frame) error
	DeallocatePage(id page.ID) error
}

// LogManager is the optional sink the buffer pool references but does
// not drive (spec.md §6 / SPEC_FULL.md §11): when set, a dirty frame
// is never flushed past the point its bytes depend on an
// not-yet-durable log record.
type LogManager interface {
	GetFlushedLSN() uint64
}

// Manager is the buffer pool: it orchestrates the frame array, page
// table and LRU-K replacer against a disk manager, exposing
// New/Fetch/Unpin/Flush/Delete and scoped page guards (spec.md §4.D).
//
// All public operations acquire mu for their entire duration — a
// deliberate coarse-grained simplification per spec.md §5 ("Disk I/O
// occurs inside the critical section").
//
// Grounded on the teacher's storage_engine/bufferpool.BufferPool,
// generalized from its hard-coded access-order slice to the LRU-K
// replacer of package lruk, and on BusTub's BufferPoolManager for the
// free-list-then-evict sequencing original_source/src/buffer/buffer_pool_manager.cpp
// encodes.
type Manager struct {
	id uuid.UUID

	mu sync.Mutex

	poolSize   uint64
	nextPageID uint32

	frames      []page.Frame
	pageTable   map[page.ID]uint64 // page id -> frame index
	freeList    []uint64
	accessTypes []AccessType

	replacer *lruk.Replacer
	disk     DiskManager
	log      LogManager

	logger *zap.Logger
}
