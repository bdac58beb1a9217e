// pkg/njdot/pagination.go

package njdot

import "sync"

// Pager tracks the page/page-size state of one paginated view.
// Changing the page size resets to the first page, since old page
// boundaries are meaningless under the new size. The total is
// informational only and never clamps navigation.
type Pager struct {
	sync.Mutex
	page    int
	perPage int
	total   int
}

func NewPager(perPage int) *Pager {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Pager{perPage: perPage}
}

func (p *Pager) SetPage(n int) error {
	if n < 0 {
		return errorf(KindInvalidPagination, "negative page %d", n)
	}
	p.Lock()
	defer p.Unlock()
	p.page = n
	return nil
}

func (p *Pager) SetPerPage(n int) error {
	if n <= 0 {
		return errorf(KindInvalidPagination, "page size %d is not positive", n)
	}
	p.Lock()
	defer p.Unlock()
	if n != p.perPage {
		p.page = 0
	}
	p.perPage = n
	return nil
}

// SetTotal records the latest known total of the underlying set.
func (p *Pager) SetTotal(n int) {
	p.Lock()
	defer p.Unlock()
	p.total = n
}

// State snapshots the current pagination for issuing a query.
func (p *Pager) State() Pagination {
	p.Lock()
	defer p.Unlock()
	return Pagination{Page: p.page, PerPage: p.perPage}
}

// Pages returns the page count implied by the last known total.
func (p *Pager) Pages() int {
	p.Lock()
	defer p.Unlock()
	return (p.total + p.perPage - 1) / p.perPage
}
