// Package logmgr adapts the teacher's write-ahead log into a generic,
// payload-agnostic append-only log: the buffer pool only ever needs to
// know how far the log has been synced (spec.md §6's optional
// LogManager collaborator), never what the records mean.
//
// Grounded on the teacher's wal_manager package (segment rotation, CRC
// framing, append-only file handling), generalized from its
// SQL-specific types.Operation payload to an opaque []byte so the
// buffer pool's log dependency stays domain-free (SPEC_FULL.md §11).
package logmgr

import (
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

const (
	recordHeaderSize = 16
	// SegmentSize is the rotation threshold the teacher's wal_manager
	// uses verbatim.
	SegmentSize = 16 * 1024 * 1024
)

// Manager is an append-only, segmented, CRC-checked log. It satisfies
// bufferpool.LogManager via GetFlushedLSN.
type Manager struct {
	fs        afero.Fs
	directory string

	mu          sync.RWMutex
	currSegment *segment
	currentLSN  uint64
	segments    map[uint64]*segment

	flushedLSN atomic.Uint64

	logger logger
}

// logger is the minimal structured-logging surface this package needs,
// satisfied by *zap.SugaredLogger without importing zap's full API
// into every call site.
type logger interface {
	Debugw(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
}

type segment struct {
	fs afero.Fs

	id       uint64
	filePath string

	mu   sync.Mutex
	file afero.File
	size int64
}

// record is a single length-prefixed, CRC-checked log entry.
type record struct {
	lsn     uint64
	payload []byte
	crc     uint32
}
