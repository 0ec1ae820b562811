// Package diskio is the disk manager the buffer pool consumes: fixed-size
// page reads and writes by page identifier, and page identifier
// deallocation. It owns no knowledge of pinning, dirtiness or eviction —
// that's the buffer pool's job (spec.md §1, §6).
package diskio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"

	"storagecore/page"
)

// Manager is the disk manager consumed by the buffer pool: it reads and
// writes fixed-size pages at a deterministic offset within a single
// backing file, and tracks page identifiers freed by DeallocatePage for
// reuse. Grounded on the teacher's storage_engine/disk_manager/main.go
// FileDescriptor/ReadAt/WriteAt pattern, collapsed from a multi-file
// catalog-backed layout down to the single data file this spec's core
// needs — the buffer pool owns the page-id counter (spec.md §6), so the
// disk manager here is asked only to read, write and deallocate.
type Manager struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	file afero.File
	free map[page.ID]struct{}
}

// New opens (creating if necessary) the backing file at path on fs.
func New(fs afero.Fs, path string) (*Manager, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskio: open %s: %w", path, err)
	}

	return &Manager{
		fs:   fs,
		path: path,
		file: f,
		free: make(map[page.ID]struct{}),
	}, nil
}

// offset returns the byte offset of page id within the backing file.
// Page identifiers start at 1 (0 is page.InvalidID), so id 1 sits at
// offset 0.
func offset(id page.ID) int64 {
	return int64(id-1) * page.Size
}

// ReadPage fills dst.Data with the on-disk bytes of page id. A short
// read past end-of-file (a page that was allocated but never written)
// is zero-filled rather than treated as an error, matching a freshly
// extended file being implicitly zero.
func (m *Manager) ReadPage(id page.ID, dst *page.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == page.InvalidID {
		return fmt.Errorf("diskio: read of invalid page id")
	}

	n, err := m.file.ReadAt(dst.Data[:], offset(id))
	if err != nil && n == 0 {
		if err == io.EOF {
			for i := range dst.Data {
				dst.Data[i] = 0
			}
			return nil
		}
		return fmt.Errorf("diskio: read page %d: %w", id, err)
	}
	for i := n; i < page.Size; i++ {
		dst.Data[i] = 0
	}
	return nil
}

// WritePage persists src.Data to the on-disk location of page id.
func (m *Manager) WritePage(id page.ID, src *page.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == page.InvalidID {
		return fmt.Errorf("diskio: write of invalid page id")
	}

	if _, err := m.file.WriteAt(src.Data[:], offset(id)); err != nil {
		return fmt.Errorf("diskio: write page %d: %w", id, err)
	}
	return nil
}

// DeallocatePage records that id's backing storage may be reused. The
// spec assigns page-identifier allocation to the buffer pool's
// monotonic counter (spec.md §6) — the disk manager is asked only to
// deallocate, never to allocate.
func (m *Manager) DeallocatePage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free[id] = struct{}{}
	return nil
}

// Close releases the backing file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
