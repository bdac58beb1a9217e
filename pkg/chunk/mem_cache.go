// pkg/chunk/mem_cache.go

package chunk

import (
	"sync"
	"time"

	"NJCrashes/pkg/utils"
)

type memItem struct {
	atime time.Time
	page  *Page
}

type memCache struct {
	sync.Mutex
	capacity int64 // 0 means unbounded
	used     int64
	pages    map[int64]memItem
}

func newMemCache(capacity int64) *memCache {
	return &memCache{
		capacity: capacity,
		pages:    make(map[int64]memItem),
	}
}

func (c *memCache) usedMemory() int64 {
	c.Lock()
	defer c.Unlock()
	return c.used
}

func (c *memCache) stats() (int64, int64) {
	c.Lock()
	defer c.Unlock()
	return int64(len(c.pages)), c.used
}

func (c *memCache) cache(id int64, p *Page) {
	c.Lock()
	defer c.Unlock()
	if _, ok := c.pages[id]; ok {
		return
	}
	size := int64(cap(p.Data))
	p.Acquire()
	c.pages[id] = memItem{utils.Now(), p}
	c.used += size
	if c.capacity > 0 && c.used > c.capacity {
		c.cleanup()
	}
}

// locked
func (c *memCache) delete(id int64, p *Page) {
	c.used -= int64(cap(p.Data))
	p.Release()
	delete(c.pages, id)
}

func (c *memCache) remove(id int64) {
	c.Lock()
	defer c.Unlock()
	if item, ok := c.pages[id]; ok {
		c.delete(id, item.page)
		logger.Debugf("remove chunk %d from cache", id)
	}
}

func (c *memCache) contains(id int64) bool {
	c.Lock()
	defer c.Unlock()
	_, ok := c.pages[id]
	return ok
}

// load returns the cached page with an extra reference held for the
// caller, or nil on a miss.
func (c *memCache) load(id int64) *Page {
	c.Lock()
	defer c.Unlock()
	if item, ok := c.pages[id]; ok {
		c.pages[id] = memItem{utils.Now(), item.page}
		item.page.Acquire()
		return item.page
	}
	return nil
}

// locked
func (c *memCache) cleanup() {
	var cnt int
	var lastKey int64
	var lastValue memItem
	var now = utils.Now()
	// for each two random keys, then compare the access time, evict the older one
	for k, v := range c.pages {
		if cnt == 0 || lastValue.atime.After(v.atime) {
			lastKey = k
			lastValue = v
		}
		cnt++
		if cnt > 1 {
			logger.Debugf("remove chunk %d from cache, age: %d", lastKey, now.Sub(lastValue.atime))
			c.delete(lastKey, lastValue.page)
			cnt = 0
			if c.used < c.capacity {
				break
			}
		}
	}
}
