// pkg/chunk/singleflight.go

package chunk

import "sync"

type request struct {
	wg  sync.WaitGroup
	val *Page
	ref int
	err error
}

// Controller deduplicates concurrent loads of the same chunk: all
// callers for one index share a single fetch and receive the same
// resolved page.
type Controller struct {
	sync.Mutex
	rs map[int64]*request
}

func (con *Controller) Execute(id int64, fn func() (*Page, error)) (*Page, error) {
	con.Lock()
	if con.rs == nil {
		con.rs = make(map[int64]*request)
	}
	if c, ok := con.rs[id]; ok {
		c.ref++
		con.Unlock()
		c.wg.Wait()
		if c.val != nil {
			c.val.Acquire()
		}
		con.Lock()
		c.ref--
		if c.ref == 0 && c.val != nil {
			c.val.Release()
		}
		con.Unlock()
		return c.val, c.err
	}
	c := new(request)
	c.wg.Add(1)
	c.ref++
	con.rs[id] = c
	con.Unlock()

	c.val, c.err = fn()
	if c.val != nil {
		c.val.Acquire()
	}
	c.wg.Done()

	con.Lock()
	c.ref--
	if c.ref == 0 && c.val != nil {
		c.val.Release()
	}
	delete(con.rs, id)
	con.Unlock()

	return c.val, c.err
}

// TryReserve marks id as in flight if nobody is loading it yet. The
// reserver must publish the outcome with Commit. Used to attach the
// trailing chunks of a coalesced fetch to the dedup table.
func (con *Controller) TryReserve(id int64) bool {
	con.Lock()
	defer con.Unlock()
	if con.rs == nil {
		con.rs = make(map[int64]*request)
	}
	if _, ok := con.rs[id]; ok {
		return false
	}
	c := new(request)
	c.wg.Add(1)
	c.ref++
	con.rs[id] = c
	return true
}

// Commit resolves a reserved id and wakes its waiters.
func (con *Controller) Commit(id int64, p *Page, err error) {
	con.Lock()
	c, ok := con.rs[id]
	con.Unlock()
	if !ok {
		return
	}
	c.val, c.err = p, err
	if c.val != nil {
		c.val.Acquire()
	}
	c.wg.Done()

	con.Lock()
	c.ref--
	if c.ref == 0 && c.val != nil {
		c.val.Release()
	}
	delete(con.rs, id)
	con.Unlock()
}

// Busy reports whether a load of id is in flight.
func (con *Controller) Busy(id int64) bool {
	con.Lock()
	defer con.Unlock()
	_, ok := con.rs[id]
	return ok
}
