// pkg/chunk/disk_cache.go

package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"NJCrashes/pkg/compress"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// diskCache keeps fetched chunks on local disk so later sessions over
// the same data file can skip the network entirely. Chunks are stored
// one file per index, optionally compressed.
type diskCache struct {
	sync.Mutex
	dir        string
	capacity   int64
	used       int64
	chunkSize  int
	compressor compress.Compressor
}

func newDiskCache(dir string, capacity int64, chunkSize int, compName string) (*diskCache, error) {
	compressor := compress.NewCompressor(compName)
	if compressor == nil {
		return nil, fmt.Errorf("unsupported compress algorithm: %s", compName)
	}
	dir = filepath.Join(dir, "chunks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithMessagef(err, "create cache dir %s", dir)
	}
	c := &diskCache{
		dir:        dir,
		capacity:   capacity,
		chunkSize:  chunkSize,
		compressor: compressor,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if fi, err := e.Info(); err == nil {
			c.used += fi.Size()
		}
	}
	return c, nil
}

func (c *diskCache) path(id int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d.%s", id, c.compressor.Name()))
}

func (c *diskCache) contains(id int64) bool {
	_, err := os.Stat(c.path(id))
	return err == nil
}

func (c *diskCache) load(id int64) *Page {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		return nil
	}
	buf := make([]byte, c.chunkSize)
	n, err := c.compressor.Decompress(buf, data)
	if err != nil {
		logger.Warnf("decompress cached chunk %d: %s", id, err)
		_ = os.Remove(c.path(id))
		return nil
	}
	return NewPage(buf[:n])
}

func (c *diskCache) save(id int64, p *Page) {
	if freeRatio(c.dir) < 0.1 {
		logger.Warnf("%s is nearly full, skip caching chunk %d", c.dir, id)
		return
	}
	buf := make([]byte, c.compressor.CompressBound(len(p.Data)))
	n, err := c.compressor.Compress(buf, p.Data)
	if err != nil {
		logger.Warnf("compress chunk %d: %s", id, err)
		return
	}
	path := c.path(id)
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, buf[:n], 0644); err != nil {
		logger.Warnf("stage chunk %d: %s", id, err)
		_ = os.Remove(tmp)
		return
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return
	}

	c.Lock()
	c.used += int64(n)
	needClean := c.capacity > 0 && c.used > c.capacity
	c.Unlock()
	if needClean {
		c.cleanup()
	}
}

func (c *diskCache) stats() (int64, int64) {
	c.Lock()
	defer c.Unlock()
	return -1, c.used
}

type diskItem struct {
	path  string
	size  int64
	atime time.Time
}

// cleanup drops least recently used chunk files until usage is below
// 90% of capacity.
func (c *diskCache) cleanup() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	items := make([]diskItem, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, diskItem{filepath.Join(c.dir, e.Name()), fi.Size(), getAtime(fi)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].atime.Before(items[j].atime) })

	goal := c.capacity * 9 / 10
	var freed int64
	for _, it := range items {
		c.Lock()
		done := c.used-freed <= goal
		c.Unlock()
		if done {
			break
		}
		if err = os.Remove(it.path); err == nil {
			freed += it.size
			logger.Debugf("evict %s from disk cache", filepath.Base(it.path))
		}
	}
	c.Lock()
	c.used -= freed
	c.Unlock()
}

func freeRatio(path string) float32 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 1.0
	}
	if st.Blocks == 0 {
		return 1.0
	}
	return float32(st.Bavail) / float32(st.Blocks)
}
