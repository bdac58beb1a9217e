// pkg/njdot/cache.go

package njdot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status reports what a view should render for a cache key.
type Status int

const (
	StatusMissing Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

type cacheEntry struct {
	seq  uint64
	done chan struct{} // closed once the query resolved

	val interface{}
	err error

	// last successful value for this key, kept while a newer query is
	// in flight so the view can keep rendering it
	prev interface{}

	atime time.Time
}

// CacheStats counts cache outcomes since startup.
type CacheStats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Superseded int64 `json:"superseded"`
	Entries    int   `json:"entries"`
}

// ResultCache memoizes query results keyed by the full request tuple
// (shape, filter, pagination). Every issued query gets a monotonic
// sequence number; for a fixed key the highest sequence number wins,
// so a stale query resolving after a newer one never overwrites it.
// Concurrent callers of an in-flight key share one execution.
type ResultCache struct {
	engine *Engine

	sync.Mutex
	seq        uint64
	entries    map[string]*cacheEntry
	maxEntries int

	hits       int64
	misses     int64
	superseded int64
}

func NewResultCache(engine *Engine, maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &ResultCache{
		engine:     engine,
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
	}
}

// CrashPageKey is the cache key of one crash page request.
func CrashPageKey(f Filter, p Pagination) string {
	return fmt.Sprintf("crashes|%s|%s", f, p)
}

func YearStatsKey(f Filter) string {
	return fmt.Sprintf("years|%s", f)
}

func TotalsKey(f Filter) string {
	return fmt.Sprintf("totals|%s", f)
}

// CrashPage returns the cached page for (f, p) or executes the query.
func (c *ResultCache) CrashPage(ctx context.Context, f Filter, p Pagination) (*CrashPage, error) {
	v, err := c.get(ctx, CrashPageKey(f, p), false, func(ctx context.Context) (interface{}, error) {
		return c.engine.CrashPage(ctx, f, p)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CrashPage), nil
}

// YearStats returns the cached per-year series for f or executes the
// query.
func (c *ResultCache) YearStats(ctx context.Context, f Filter) ([]YearStat, error) {
	v, err := c.get(ctx, YearStatsKey(f), false, func(ctx context.Context) (interface{}, error) {
		return c.engine.YearStats(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.([]YearStat), nil
}

// Totals returns the cached all-years aggregate for f or executes the
// query.
func (c *ResultCache) Totals(ctx context.Context, f Filter) (*TotalsRecord, error) {
	v, err := c.get(ctx, TotalsKey(f), false, func(ctx context.Context) (interface{}, error) {
		return c.engine.Totals(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TotalsRecord), nil
}

// RefreshCrashPage re-executes the query even if a result or an older
// in-flight query exists; the new query supersedes them.
func (c *ResultCache) RefreshCrashPage(ctx context.Context, f Filter, p Pagination) (*CrashPage, error) {
	v, err := c.get(ctx, CrashPageKey(f, p), true, func(ctx context.Context) (interface{}, error) {
		return c.engine.CrashPage(ctx, f, p)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CrashPage), nil
}

// Peek reports the state of a key without issuing a query. During a
// refetch it returns the retained previous value with StatusLoading.
func (c *ResultCache) Peek(key string) (interface{}, Status) {
	c.Lock()
	defer c.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, StatusMissing
	}
	select {
	case <-e.done:
		if e.err != nil {
			return e.prev, StatusFailed
		}
		return e.val, StatusReady
	default:
		return e.prev, StatusLoading
	}
}

// Stats snapshots the cache counters.
func (c *ResultCache) Stats() CacheStats {
	c.Lock()
	defer c.Unlock()
	return CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		Superseded: c.superseded,
		Entries:    len(c.entries),
	}
}

func (c *ResultCache) get(ctx context.Context, key string, force bool, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	c.Lock()
	if e, ok := c.entries[key]; ok && !force {
		select {
		case <-e.done:
			if e.err == nil {
				c.hits++
				e.atime = time.Now()
				c.Unlock()
				return e.val, nil
			}
			// failed entries are not sticky: fall through and reissue
		default:
			// join the in-flight query
			c.Unlock()
			select {
			case <-e.done:
				return e.val, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	c.misses++
	c.seq++
	ne := &cacheEntry{seq: c.seq, done: make(chan struct{}), atime: time.Now()}
	if old := c.entries[key]; old != nil {
		select {
		case <-old.done:
			if old.err == nil {
				ne.prev = old.val
			} else {
				ne.prev = old.prev
			}
		default:
			ne.prev = old.prev
		}
	}
	c.entries[key] = ne
	c.Unlock()

	val, err := fn(ctx)

	c.Lock()
	cur := c.entries[key]
	if cur == ne {
		ne.val, ne.err = val, err
		if err == nil {
			ne.prev = nil
		}
		c.cleanupLocked()
	} else {
		// a newer query for this key was issued while we ran; our
		// result must not replace its entry
		c.superseded++
		logger.Debugf("result for %s (seq %d) superseded", key, ne.seq)
		ne.val, ne.err = val, err
	}
	c.Unlock()
	close(ne.done)
	return val, err
}

// cleanupLocked evicts the least recently touched resolved entries
// once the cache is over capacity.
func (c *ResultCache) cleanupLocked() {
	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldest *cacheEntry
		for k, e := range c.entries {
			select {
			case <-e.done:
			default:
				continue // never evict in-flight entries
			}
			if oldest == nil || e.atime.Before(oldest.atime) {
				oldestKey, oldest = k, e
			}
		}
		if oldest == nil {
			return
		}
		delete(c.entries, oldestKey)
	}
}
