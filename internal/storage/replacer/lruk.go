// Package replacer implements the LRU-K victim-selection policy
// spec.md §4.2 describes: frames with fewer than K accesses have
// infinite backward K-distance and are preferred victims (ordered
// FIFO on first access); frames with at least K accesses are ordered
// by most-recent access, oldest first. This is the source's simpler
// variant of textbook LRU-K, codified deliberately per spec.md §9.
package replacer

import (
	"container/list"
	"sync"

	"github.com/negrel/assert"

	util "github.com/File-creater/bustub/internal/utils"
)

type node struct {
	frameID     util.FrameID
	accessCount int
	evictable   bool
	inInf       bool
}

// LRUK tracks per-frame access history for a fixed set of frames and
// selects eviction victims by the LRU-K policy. It knows nothing
// about page contents, only frame indices (spec.md §4.2).
type LRUK struct {
	mu            sync.Mutex
	k             int
	replacerSize  int
	infList       *list.List
	countableList *list.List
	lookup        map[util.FrameID]*list.Element
	currSize      int
}

// New creates a replacer over up to replacerSize frames using the
// given K. K=1 reduces to classical LRU, per spec.md §6.
func New(replacerSize, k int) *LRUK {
	assert.GreaterOrEqual(k, 1, "replacer k must be >= 1")
	return &LRUK{
		k:             k,
		replacerSize:  replacerSize,
		infList:       list.New(),
		countableList: list.New(),
		lookup:        make(map[util.FrameID]*list.Element),
	}
}

// RecordAccess records one access to fid, transitioning it between
// the infinite-distance and countable lists as its access count
// crosses K.
func (r *LRUK) RecordAccess(fid util.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Less(int(fid), r.replacerSize, "invalid frame id")

	el, ok := r.lookup[fid]
	if !ok {
		n := &node{frameID: fid, accessCount: 1}
		if r.k == 1 {
			n.inInf = false
			r.lookup[fid] = r.countableList.PushBack(n)
		} else {
			n.inInf = true
			r.lookup[fid] = r.infList.PushBack(n)
		}
		return
	}

	n := el.Value.(*node)
	n.accessCount++

	switch {
	case n.accessCount < r.k:
		r.infList.Remove(el)
		r.lookup[fid] = r.infList.PushBack(n)
	case n.accessCount == r.k:
		r.infList.Remove(el)
		n.inInf = false
		r.lookup[fid] = r.countableList.PushBack(n)
	default:
		r.countableList.Remove(el)
		r.lookup[fid] = r.countableList.PushBack(n)
	}
}

// SetEvictable toggles fid's evictability, adjusting Size()
// accordingly. Unknown frame ids are a no-op.
func (r *LRUK) SetEvictable(fid util.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.lookup[fid]
	if !ok {
		return
	}
	n := el.Value.(*node)
	if n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
}

// Evict selects and removes a victim: the first evictable frame in
// infList, scanning from the head, else the first evictable frame in
// countableList. It returns false if no evictable frame exists.
func (r *LRUK) Evict() (util.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.infList.Front(); e != nil; e = e.Next() {
		if n := e.Value.(*node); n.evictable {
			r.removeElementLocked(e, n)
			return n.frameID, true
		}
	}
	for e := r.countableList.Front(); e != nil; e = e.Next() {
		if n := e.Value.(*node); n.evictable {
			r.removeElementLocked(e, n)
			return n.frameID, true
		}
	}
	return 0, false
}

// Remove unconditionally drops fid from the replacer. fid must
// currently be evictable; violating that is a programmer error.
func (r *LRUK) Remove(fid util.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.lookup[fid]
	if !ok {
		return
	}
	n := el.Value.(*node)
	assert.True(n.evictable, "removed a non-evictable frame from the replacer")
	r.removeElementLocked(el, n)
}

func (r *LRUK) removeElementLocked(el *list.Element, n *node) {
	if n.inInf {
		r.infList.Remove(el)
	} else {
		r.countableList.Remove(el)
	}
	delete(r.lookup, n.frameID)
	r.currSize--
}

// Size returns the number of evictable frames currently tracked.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
