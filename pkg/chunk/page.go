// pkg/chunk/page.go

package chunk

import "sync/atomic"

// Page is a refcounted byte buffer holding one cached chunk, or a
// slice of a larger coalesced fetch.
type Page struct {
	refs int32
	dep  *Page
	Data []byte
}

// NewPage create a new page.
func NewPage(data []byte) *Page {
	return &Page{refs: 1, Data: data}
}

// Slice returns a sub-page sharing the underlying buffer; the parent
// stays alive until every slice is released.
func (p *Page) Slice(off, len int) *Page {
	p.Acquire()
	np := NewPage(p.Data[off : off+len : off+len])
	np.dep = p
	return np
}

// Acquire increase the refcount
func (p *Page) Acquire() {
	atomic.AddInt32(&p.refs, 1)
}

// Release decreases the refcount
func (p *Page) Release() {
	if atomic.AddInt32(&p.refs, -1) == 0 {
		if p.dep != nil {
			p.dep.Release()
			p.dep = nil
		}
		p.Data = nil
	}
}
