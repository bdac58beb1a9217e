// pkg/chunk/store.go

package chunk

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"NJCrashes/pkg/fetch"
	"NJCrashes/pkg/utils"
)

var logger = utils.GetLogger("njcrashes")

// maxRunChunks bounds how many missing chunks one coalesced fetch may
// cover (32 * 64 KiB = 2 MiB by default).
const maxRunChunks = 32

// Config controls the chunked reader.
type Config struct {
	ChunkSize     int           // bytes per chunk
	CacheSize     int64         // bytes of page cache, 0 means unbounded
	CacheDir      string        // disk cache location, empty disables it
	DiskCacheSize int64         // bytes, 0 means unbounded
	Compress      string        // codec for disk cached chunks (none, lz4, zstd)
	Redis         string        // redis URL for a shared cache tier, empty disables it
	RedisTTL      time.Duration // expiry for redis cached chunks
	MaxFetch      int           // max concurrent range fetches
	FetchTimeout  time.Duration // timeout of a single fetch attempt
}

// DefaultConfig returns the settings used by the CLI when no flags are
// given.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:    64 << 10,
		MaxFetch:     8,
		RedisTTL:     time.Hour * 24,
		FetchTimeout: time.Second * 30,
	}
}

// Stats is a point-in-time snapshot of reader counters.
type Stats struct {
	CacheHits    int64
	CacheMisses  int64
	Fetches      int64
	FetchedBytes int64
	Retries      int64
	FetchErrors  int64
}

// FetchError reports a range fetch that failed even after the
// immediate retry. Callers may retry the whole read with backoff.
type FetchError struct {
	Off int64
	Len int64
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch [%d,%d): %s", e.Off, e.Off+e.Len, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Store reads byte spans of a remote immutable file through a cache of
// fixed-size aligned chunks. A read returns exactly the bytes a
// sequential read of the source would, regardless of access pattern.
type Store struct {
	conf    Config
	fetcher fetch.Fetcher

	mem      *memCache
	disk     *diskCache
	redis    *redisCache
	fetching Controller

	sync.Mutex
	pending  int
	slotCond *utils.Cond

	sizeMu sync.Mutex
	sized  bool
	size   int64

	cacheHits    int64
	cacheMisses  int64
	fetches      int64
	fetchedBytes int64
	retries      int64
	fetchErrors  int64
}

// NewStore creates a chunked reader over f.
func NewStore(f fetch.Fetcher, conf *Config) (*Store, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if conf.ChunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", conf.ChunkSize)
	}
	if conf.MaxFetch <= 0 {
		conf.MaxFetch = 8
	}
	if conf.FetchTimeout <= 0 {
		conf.FetchTimeout = time.Second * 30
	}
	s := &Store{
		conf:    *conf,
		fetcher: f,
		mem:     newMemCache(conf.CacheSize),
	}
	s.slotCond = utils.NewCond(&s.Mutex)
	if conf.CacheDir != "" {
		var err error
		s.disk, err = newDiskCache(conf.CacheDir, conf.DiskCacheSize, conf.ChunkSize, conf.Compress)
		if err != nil {
			return nil, err
		}
	}
	if conf.Redis != "" {
		var err error
		s.redis, err = newRedisCache(conf.Redis, f.String(), conf.RedisTTL)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Size returns the size of the underlying file. Only a successful
// probe is cached: a transient failure is reported to the caller and
// the next call probes again.
func (s *Store) Size(ctx context.Context) (int64, error) {
	s.sizeMu.Lock()
	defer s.sizeMu.Unlock()
	if s.sized {
		return s.size, nil
	}
	size, err := s.fetcher.Size(ctx)
	if err != nil {
		return 0, err
	}
	s.size = size
	s.sized = true
	return size, nil
}

// ReadAt fills buf with the bytes at off, using cached chunks where
// possible. It returns io.EOF together with a short count when the
// span extends past the end of the file.
func (s *Store) ReadAt(ctx context.Context, buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	size, err := s.Size(ctx)
	if err != nil {
		return 0, &FetchError{Off: off, Len: int64(len(buf)), Err: err}
	}
	if off >= size {
		return 0, io.EOF
	}
	n := len(buf)
	var eof bool
	if off+int64(n) > size {
		n = int(size - off)
		eof = true
	}

	chunkSize := int64(s.conf.ChunkSize)
	var got int
	for got < n {
		pos := off + int64(got)
		id := pos / chunkSize
		p, err := s.fetching.Execute(id, func() (*Page, error) {
			return s.loadChunk(ctx, id)
		})
		if err != nil {
			return got, err
		}
		inner := int(pos - id*chunkSize)
		got += copy(buf[got:n], p.Data[inner:])
		p.Release()
	}
	if eof {
		return got, io.EOF
	}
	return got, nil
}

// FillRange warms the cache for the chunks covering [off, off+length).
func (s *Store) FillRange(ctx context.Context, off, length int64) error {
	size, err := s.Size(ctx)
	if err != nil {
		return err
	}
	if off >= size {
		return nil
	}
	if off+length > size {
		length = size - off
	}
	chunkSize := int64(s.conf.ChunkSize)
	for id := off / chunkSize; id*chunkSize < off+length; id++ {
		cid := id
		p, err := s.fetching.Execute(cid, func() (*Page, error) {
			return s.loadChunk(ctx, cid)
		})
		if err != nil {
			return err
		}
		p.Release()
	}
	return nil
}

// UsedMemory returns the bytes held by the in-memory page cache.
func (s *Store) UsedMemory() int64 {
	return s.mem.usedMemory()
}

// Stats returns a snapshot of the reader counters.
func (s *Store) Stats() Stats {
	return Stats{
		CacheHits:    atomic.LoadInt64(&s.cacheHits),
		CacheMisses:  atomic.LoadInt64(&s.cacheMisses),
		Fetches:      atomic.LoadInt64(&s.fetches),
		FetchedBytes: atomic.LoadInt64(&s.fetchedBytes),
		Retries:      atomic.LoadInt64(&s.retries),
		FetchErrors:  atomic.LoadInt64(&s.fetchErrors),
	}
}

func (s *Store) chunkLen(id int64) int {
	return utils.Min(s.conf.ChunkSize, int(s.size-id*int64(s.conf.ChunkSize)))
}

func (s *Store) lastChunk() int64 {
	return (s.size - 1) / int64(s.conf.ChunkSize)
}

// loadChunk is always called under the singleflight controller for id.
func (s *Store) loadChunk(ctx context.Context, id int64) (*Page, error) {
	if p := s.mem.load(id); p != nil {
		atomic.AddInt64(&s.cacheHits, 1)
		return p, nil
	}
	if s.disk != nil {
		if p := s.disk.load(id); p != nil {
			atomic.AddInt64(&s.cacheHits, 1)
			s.mem.cache(id, p)
			return p, nil
		}
	}
	if s.redis != nil {
		if p := s.redis.load(ctx, id); p != nil {
			atomic.AddInt64(&s.cacheHits, 1)
			s.mem.cache(id, p)
			return p, nil
		}
	}
	atomic.AddInt64(&s.cacheMisses, 1)

	// extend the fetch over the following missing chunks, one request
	// per contiguous gap
	end := id
	var reserved []int64
	last := s.lastChunk()
	for end < last && end-id+1 < maxRunChunks {
		next := end + 1
		if s.mem.contains(next) || (s.disk != nil && s.disk.contains(next)) {
			break
		}
		if !s.fetching.TryReserve(next) {
			break
		}
		reserved = append(reserved, next)
		end = next
	}

	off := id * int64(s.conf.ChunkSize)
	var length int64
	for j := id; j <= end; j++ {
		length += int64(s.chunkLen(j))
	}
	span, err := s.fetchSpan(ctx, off, length)
	if err != nil {
		for _, j := range reserved {
			s.fetching.Commit(j, nil, err)
		}
		return nil, err
	}

	var pos int
	p0 := span.Slice(0, s.chunkLen(id))
	pos += s.chunkLen(id)
	s.cachePage(ctx, id, p0)
	for _, j := range reserved {
		pj := span.Slice(pos, s.chunkLen(j))
		pos += s.chunkLen(j)
		s.cachePage(ctx, j, pj)
		s.fetching.Commit(j, pj, nil)
		pj.Release()
	}
	span.Release()
	return p0, nil
}

func (s *Store) cachePage(ctx context.Context, id int64, p *Page) {
	s.mem.cache(id, p)
	if s.disk != nil {
		s.disk.save(id, p)
	}
	if s.redis != nil {
		s.redis.save(ctx, id, p)
	}
}

// fetchSpan fetches [off, off+length) with one immediate retry;
// repeated failure surfaces as FetchError so the caller stays in
// charge of backoff.
func (s *Store) fetchSpan(ctx context.Context, off, length int64) (*Page, error) {
	s.acquireSlot()
	defer s.releaseSlot()

	try := func() ([]byte, error) {
		fctx, cancel := context.WithTimeout(ctx, s.conf.FetchTimeout)
		defer cancel()
		data, err := fetch.ReadRange(fctx, s.fetcher, off, length)
		if err == nil && int64(len(data)) < length {
			err = fmt.Errorf("short fetch: %d < %d", len(data), length)
		}
		return data, err
	}
	data, err := try()
	if err != nil {
		atomic.AddInt64(&s.retries, 1)
		logger.Warnf("fetch [%d,%d) of %s: %s, retrying", off, off+length, s.fetcher, err)
		data, err = try()
	}
	if err != nil {
		atomic.AddInt64(&s.fetchErrors, 1)
		return nil, &FetchError{Off: off, Len: length, Err: err}
	}
	atomic.AddInt64(&s.fetches, 1)
	atomic.AddInt64(&s.fetchedBytes, length)
	return NewPage(data), nil
}

func (s *Store) acquireSlot() {
	s.Lock()
	for s.pending >= s.conf.MaxFetch {
		s.slotCond.WaitWithTimeout(time.Second)
	}
	s.pending++
	s.Unlock()
}

func (s *Store) releaseSlot() {
	s.Lock()
	s.pending--
	s.Unlock()
	s.slotCond.Signal()
}

// Close releases the cache tiers; the fetcher stays owned by the
// caller.
func (s *Store) Close() error {
	if s.redis != nil {
		return s.redis.close()
	}
	return nil
}
