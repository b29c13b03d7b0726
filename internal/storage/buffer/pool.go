// Package buffer is the pool manager spec.md §4.3 describes: it owns
// the frame array, the free list, and references to the directory
// and replacer, and mediates new_page, fetch_page, unpin_page,
// flush_page, flush_all, and delete_page against a disk manager. Every
// public method takes the pool-wide mutex for its entire duration,
// per spec.md §5's locking discipline (pool → directory/replacer,
// never the reverse, never both nested at once).
package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/negrel/assert"

	"github.com/File-creater/bustub/internal/logmgr"
	"github.com/File-creater/bustub/internal/storage/disk"
	"github.com/File-creater/bustub/internal/storage/hashdir"
	"github.com/File-creater/bustub/internal/storage/page"
	"github.com/File-creater/bustub/internal/storage/replacer"
	util "github.com/File-creater/bustub/internal/utils"
)

type frame struct {
	latch    sync.RWMutex
	buf      page.Page
	pageID   util.PageID
	pinCount int32
	dirty    bool
}

// Frame is the caller-facing handle new_page/fetch_page hand back: a
// pointer into the pool's frame array whose payload the caller may
// read or mutate freely until it calls UnpinPage. Higher layers that
// want page-level concurrency control may take Latch; the core itself
// never blocks on it.
type Frame struct {
	Latch *sync.RWMutex
	Page  *page.Page
}

// Manager is the buffer pool coordinator.
type Manager struct {
	mu sync.Mutex

	frames   []frame
	freeList []util.FrameID

	directory *hashdir.Directory[util.PageID, util.FrameID]
	replacer  *replacer.LRUK
	disk      disk.Manager
	log       *logmgr.Manager
	logger    *slog.Logger

	nextPageID util.PageID
}

// New constructs a pool manager of poolSize frames, using K for the
// LRU-K replacer and bucketSize for the directory's bucket capacity.
// Construction order is disk manager → log manager → pool manager,
// per spec.md §9; all three are passed in already built, never
// reached for as singletons.
func New(poolSize, replacerK, bucketSize int, dm disk.Manager, lm *logmgr.Manager) *Manager {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	if replacerK < 1 {
		panic(util.ErrInvalidReplacerK)
	}
	if bucketSize < 1 {
		panic(util.ErrInvalidBucketSize)
	}

	freeList := make([]util.FrameID, poolSize)
	frames := make([]frame, poolSize)
	for i := range freeList {
		freeList[i] = util.FrameID(i)
		frames[i].pageID = util.InvalidPageID
	}

	return &Manager{
		frames:    frames,
		freeList:  freeList,
		directory: hashdir.New[util.PageID, util.FrameID](bucketSize, hashdir.HashPageID),
		replacer:  replacer.New(poolSize, replacerK),
		disk:      dm,
		log:       lm,
		logger:    slog.Default(),
	}
}

// grabFrame obtains a frame slot: the free list head if non-empty,
// else a replacer-chosen victim. A dirty victim is written back
// before reuse (spec.md I4, "write-back ordering"). Returns
// util.ErrOutOfFrames if neither source yields a frame.
func (m *Manager) grabFrame() (util.FrameID, error) {
	if len(m.freeList) > 0 {
		fid := m.freeList[0]
		m.freeList = m.freeList[1:]
		return fid, nil
	}

	fid, ok := m.replacer.Evict()
	if !ok {
		return 0, util.ErrOutOfFrames
	}

	fr := &m.frames[fid]
	if fr.dirty {
		if err := m.disk.WritePage(fr.pageID, &fr.buf); err != nil {
			// m.replacer.Evict() already dropped fid from the replacer's
			// bookkeeping; it is no longer a frame id the replacer
			// tracks, so there is nothing safe to put back. Per spec.md
			// §7 a disk write failure here is fatal to the pool, not
			// recoverable — propagate it rather than fabricate a new
			// replacer entry for fid.
			return 0, fmt.Errorf("flush victim frame %d before reuse: %w", fid, err)
		}
		fr.dirty = false
	}
	if fr.pageID != util.InvalidPageID {
		m.directory.Remove(fr.pageID)
	}

	return fid, nil
}

// NewPage allocates a fresh, zero-initialized page pinned into a
// frame. It never reads from disk: a freshly allocated page has no
// prior on-disk contents worth fetching, per spec.md §9's resolved
// Open Question.
func (m *Manager) NewPage() (util.PageID, *Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, err := m.grabFrame()
	if err != nil {
		if errors.Is(err, util.ErrOutOfFrames) {
			m.logger.Warn("buffer pool exhausted", "op", "new_page")
		} else {
			m.logger.Error("obtain frame failed", "op", "new_page", "err", err)
		}
		return util.InvalidPageID, nil, err
	}

	pid := m.nextPageID
	m.nextPageID++

	fr := &m.frames[fid]
	fr.buf.Reset()
	fr.pageID = pid
	fr.pinCount = 1
	fr.dirty = false

	m.directory.Insert(pid, fid)
	m.replacer.SetEvictable(fid, false)
	m.replacer.RecordAccess(fid)

	return pid, &Frame{Latch: &fr.latch, Page: &fr.buf}, nil
}

// FetchPage returns the frame holding pid, pinning it. A directory
// hit never touches disk, per spec.md §9's resolved Open Question; a
// miss obtains a frame (possibly evicting, possibly writing back a
// dirty victim) and reads pid's contents from disk.
func (m *Manager) FetchPage(pid util.PageID) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fid, ok := m.directory.Find(pid); ok {
		fr := &m.frames[fid]
		fr.pinCount++
		m.replacer.SetEvictable(fid, false)
		m.replacer.RecordAccess(fid)
		return &Frame{Latch: &fr.latch, Page: &fr.buf}, nil
	}

	fid, err := m.grabFrame()
	if err != nil {
		if errors.Is(err, util.ErrOutOfFrames) {
			m.logger.Warn("buffer pool exhausted", "op", "fetch_page", "page_id", pid)
		} else {
			m.logger.Error("obtain frame failed", "op", "fetch_page", "page_id", pid, "err", err)
		}
		return nil, err
	}

	fr := &m.frames[fid]
	fr.buf.Reset()
	if err := m.disk.ReadPage(pid, &fr.buf); err != nil {
		// The frame slot stays free; return it to the free list so this
		// failure doesn't leak a frame. grabFrame already removed any
		// prior occupant's directory entry, but fr still carries that
		// occupant's page id until we clear it here — left alone, a
		// later FlushAll would mistake this frame for still resident
		// and write its zeroed buffer over the prior occupant's page.
		fr.pageID = util.InvalidPageID
		fr.pinCount = 0
		fr.dirty = false
		m.freeList = append(m.freeList, fid)
		return nil, fmt.Errorf("fetch page %d: %w", pid, err)
	}

	fr.pageID = pid
	fr.pinCount = 1
	fr.dirty = false

	m.directory.Insert(pid, fid)
	m.replacer.SetEvictable(fid, false)
	m.replacer.RecordAccess(fid)

	return &Frame{Latch: &fr.latch, Page: &fr.buf}, nil
}

// UnpinPage releases one pin on pid, OR-ing isDirty into the frame's
// dirty flag. When the pin count reaches zero the frame becomes
// evictable. Returns false if pid is not resident or was not pinned.
func (m *Manager) UnpinPage(pid util.PageID, isDirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.directory.Find(pid)
	if !ok {
		return false
	}
	fr := &m.frames[fid]
	if fr.pinCount <= 0 {
		return false
	}

	fr.dirty = fr.dirty || isDirty
	fr.pinCount--
	if fr.pinCount == 0 {
		m.replacer.SetEvictable(fid, true)
	}
	return true
}

// FlushPage writes pid's frame to disk and clears its dirty flag.
// Pin state is unchanged; it may be called on a pinned page. Returns
// false if pid is not resident.
func (m *Manager) FlushPage(pid util.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.directory.Find(pid)
	if !ok {
		return false
	}
	fr := &m.frames[fid]
	if err := m.disk.WritePage(pid, &fr.buf); err != nil {
		m.logger.Error("flush failed", "page_id", pid, "err", err)
		return false
	}
	fr.dirty = false
	return true
}

// FlushAll writes every resident frame to disk and clears its dirty
// flag.
func (m *Manager) FlushAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.frames {
		fr := &m.frames[i]
		if fr.pageID == util.InvalidPageID {
			continue
		}
		if err := m.disk.WritePage(fr.pageID, &fr.buf); err != nil {
			m.logger.Error("flush_all write failed", "page_id", fr.pageID, "err", err)
			continue
		}
		fr.dirty = false
	}
}

// DeletePage removes pid from the pool and deallocates it on disk.
// A page with an outstanding pin cannot be deleted (returns false).
// Deleting an already-absent page vacuously succeeds.
func (m *Manager) DeletePage(pid util.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.directory.Find(pid)
	if !ok {
		return true
	}
	fr := &m.frames[fid]
	if fr.pinCount > 0 {
		return false
	}

	m.directory.Remove(pid)
	m.replacer.SetEvictable(fid, true)
	m.replacer.Remove(fid)

	fr.buf.Reset()
	fr.pageID = util.InvalidPageID
	fr.pinCount = 0
	fr.dirty = false
	m.freeList = append(m.freeList, fid)

	if err := m.disk.DeallocatePage(pid); err != nil {
		m.logger.Error("deallocate failed", "page_id", pid, "err", err)
	}
	return true
}

// PinCount reports a resident frame's current pin count, for tests
// and diagnostics.
func (m *Manager) PinCount(pid util.PageID) (int32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fid, ok := m.directory.Find(pid)
	if !ok {
		return 0, false
	}
	return m.frames[fid].pinCount, true
}

// checkInvariants is a test-only helper validating spec.md I5/I6: the
// replacer's size matches the number of resident, unpinned frames,
// and every frame is either free or resident, never both.
func (m *Manager) checkInvariants() {
	residentCount := 0
	unpinnedResidentCount := 0
	for i := range m.frames {
		fr := &m.frames[i]
		if fr.pageID == util.InvalidPageID {
			continue
		}
		residentCount++
		if fr.pinCount == 0 {
			unpinnedResidentCount++
		}
	}

	assert.True(unpinnedResidentCount == m.replacer.Size(),
		"replacer size must equal the number of resident, unpinned frames")
	assert.True(len(m.freeList)+residentCount == len(m.frames),
		"free_list and resident frames must partition the frame array")
}
