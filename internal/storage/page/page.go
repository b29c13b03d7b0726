package page

import (
	util "github.com/File-creater/bustub/internal/utils"
)

// Page is the fixed-size payload a buffer pool frame holds. Identity
// (page id), pin count, and dirty state are frame metadata owned by
// the buffer pool, not by Page itself — a frame's buffer is the "page
// image" spec.md §3 describes, and nothing more.
type Page struct {
	Data [util.PageSize]byte
}

// Reset zeroes the page in place, as happens on a freshly allocated
// page or a frame returning to the free list after delete.
func (p *Page) Reset() {
	for i := range p.Data {
		p.Data[i] = 0
	}
}

// CopyFrom overwrites p's payload with src, truncating or
// zero-padding to PageSize.
func (p *Page) CopyFrom(src []byte) {
	p.Reset()
	copy(p.Data[:], src)
}
