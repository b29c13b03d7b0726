// Package disk is the out-of-scope "disk manager" collaborator
// spec.md §1 and §6 name: a blocking, page-granular store the buffer
// pool reads from and writes to. It owns the backing file, the
// page-id → offset mapping, and file growth; it knows nothing about
// frames, pins, or eviction.
package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash"

	"github.com/File-creater/bustub/internal/storage/page"
	util "github.com/File-creater/bustub/internal/utils"
)

// slotHeaderSize is the on-disk per-page header: a 4-byte page id and
// a 4-byte "written" flag (for distinguishing a never-written slot
// from one holding real data), followed by an 8-byte xxhash64
// checksum of the payload.
const slotHeaderSize = 16
const slotSize = slotHeaderSize + util.PageSize

const slotWritten = 1

// MaxMapSize bounds how large the backing file is allowed to grow to,
// mirroring the guard the teacher's mmap-based manager applied before
// remapping.
const MaxMapSize = 1 << 40

// Manager is the interface the buffer pool depends on. It is
// satisfied by *FileManager; tests may substitute a fake.
type Manager interface {
	ReadPage(pid util.PageID, dst *page.Page) error
	WritePage(pid util.PageID, src *page.Page) error
	DeallocatePage(pid util.PageID) error
	Close() error
}

// FileManager is a single-file disk manager. Pages are stored at a
// fixed offset keyed by page id: slot i holds page i's header and
// payload, so deallocated ids simply leave a hole (the pool manager
// never reuses a deallocated id, per spec.md §3).
type FileManager struct {
	mu    sync.Mutex
	file  *os.File
	size  int64
	freed map[util.PageID]struct{}
}

// NewFileManager opens (creating if necessary) the file at path and
// pre-sizes it to hold initialPages pages.
func NewFileManager(path string, initialPages int) (*FileManager, error) {
	if initialPages <= 0 {
		return nil, util.ErrInvalidInitialPages
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	size := int64(initialPages) * int64(slotSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate to %d: %w", size, err)
	}

	return &FileManager{
		file:  f,
		size:  size,
		freed: make(map[util.PageID]struct{}),
	}, nil
}

func (fm *FileManager) offsetOf(pid util.PageID) (int64, error) {
	if pid == util.InvalidPageID || pid < 0 {
		return 0, util.ErrInvalidPageID
	}
	return int64(pid) * int64(slotSize), nil
}

// ReadPage blocks until pid's payload is read from disk into dst.
func (fm *FileManager) ReadPage(pid util.PageID, dst *page.Page) error {
	offset, err := fm.offsetOf(pid)
	if err != nil {
		return err
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if offset+int64(slotSize) > fm.size {
		return fmt.Errorf("read page %d: %w", pid, util.ErrPageOutOfBounds)
	}

	slot := make([]byte, slotSize)
	if _, err := fm.file.ReadAt(slot, offset); err != nil {
		return fmt.Errorf("read page %d: %w", pid, err)
	}

	storedID := util.PageID(binary.LittleEndian.Uint32(slot[0:4]))
	written := binary.LittleEndian.Uint32(slot[4:8])
	wantChecksum := binary.LittleEndian.Uint64(slot[8:16])
	payload := slot[slotHeaderSize:]

	if written != slotWritten {
		// Never written: not corruption, just a page the pool manager
		// allocated but has not yet flushed. Spec.md treats a freshly
		// allocated page's contents as zero-initialized.
		dst.Reset()
		return nil
	}

	if xxhash.Sum64(payload) != wantChecksum || storedID != pid {
		return fmt.Errorf("read page %d: %w", pid, util.ErrChecksumMismatch)
	}

	dst.CopyFrom(payload)
	return nil
}

// WritePage blocks until src's payload is written to disk at pid's
// slot, growing the backing file if needed.
func (fm *FileManager) WritePage(pid util.PageID, src *page.Page) error {
	offset, err := fm.offsetOf(pid)
	if err != nil {
		return err
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if needed := offset + int64(slotSize); needed > fm.size {
		newSize := fm.size * 2
		if newSize < needed {
			newSize = needed
		}
		if newSize > MaxMapSize {
			return util.ErrMaxMapSizeExceeded
		}
		if err := fm.file.Truncate(newSize); err != nil {
			return fmt.Errorf("grow file to %d: %w", newSize, err)
		}
		fm.size = newSize
	}

	slot := make([]byte, slotSize)
	binary.LittleEndian.PutUint32(slot[0:4], uint32(pid))
	binary.LittleEndian.PutUint32(slot[4:8], slotWritten)
	binary.LittleEndian.PutUint64(slot[8:16], xxhash.Sum64(src.Data[:]))
	copy(slot[slotHeaderSize:], src.Data[:])

	if _, err := fm.file.WriteAt(slot, offset); err != nil {
		return fmt.Errorf("write page %d: %w", pid, err)
	}

	delete(fm.freed, pid)
	return nil
}

// DeallocatePage marks pid as released. This implementation's only
// obligation, per spec.md §6, is bookkeeping — the pool manager owns
// page-id allocation and never reuses a deallocated id, so there is
// no space to reclaim.
func (fm *FileManager) DeallocatePage(pid util.PageID) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.freed[pid] = struct{}{}
	return nil
}

// Close syncs and releases the backing file. Idempotent.
func (fm *FileManager) Close() error {
	if fm == nil || fm.file == nil {
		return nil
	}
	var err error
	if e := fm.file.Sync(); e != nil {
		err = errors.Join(err, fmt.Errorf("sync file: %w", e))
	}
	if e := fm.file.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("close file: %w", e))
	}
	fm.file = nil
	return err
}
