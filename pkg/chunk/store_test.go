// pkg/chunk/store_test.go

package chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFetcher serves an in-memory file and counts what was fetched.
type memFetcher struct {
	data []byte

	sync.Mutex
	fetches      int
	fetchedBytes int64
	failures     int // fail the next N fetches
	sizeFailures int // fail the next N size probes
}

func (f *memFetcher) Fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	f.Lock()
	if f.failures > 0 {
		f.failures--
		f.Unlock()
		return nil, errors.New("injected failure")
	}
	end := off + length
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	f.fetches++
	f.fetchedBytes += end - off
	f.Unlock()
	return io.NopCloser(bytes.NewReader(f.data[off:end])), nil
}

func (f *memFetcher) Size(ctx context.Context) (int64, error) {
	f.Lock()
	defer f.Unlock()
	if f.sizeFailures > 0 {
		f.sizeFailures--
		return 0, errors.New("injected size failure")
	}
	return int64(len(f.data)), nil
}

func (f *memFetcher) String() string { return "mem" }

func testData(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(7)).Read(data)
	return data
}

func testConfig() *Config {
	conf := DefaultConfig()
	conf.ChunkSize = 4 << 10
	return conf
}

func TestStoreRead(t *testing.T) {
	data := testData(300<<10 + 123) // not chunk aligned
	f := &memFetcher{data: data}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	for _, c := range []struct {
		off, length int
	}{
		{0, 1},
		{0, len(data)},
		{1, 4096},        // crosses a chunk boundary
		{4095, 2},        // straddles exactly one boundary
		{100<<10 + 7, 9000},
		{len(data) - 1, 1},
	} {
		buf := make([]byte, c.length)
		n, err := store.ReadAt(ctx, buf, int64(c.off))
		require.NoError(t, err, "read [%d,%d)", c.off, c.off+c.length)
		assert.Equal(t, c.length, n)
		assert.True(t, bytes.Equal(data[c.off:c.off+c.length], buf), "read [%d,%d)", c.off, c.off+c.length)
	}

	// reads past EOF are short and report io.EOF
	buf := make([]byte, 100)
	n, err := store.ReadAt(ctx, buf, size-10)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 10, n)
	assert.True(t, bytes.Equal(data[size-10:], buf[:10]))

	_, err = store.ReadAt(ctx, buf, size)
	assert.Equal(t, io.EOF, err)
	_, err = store.ReadAt(ctx, buf, size+100)
	assert.Equal(t, io.EOF, err)
}

func TestStoreDedup(t *testing.T) {
	data := testData(256 << 10)
	f := &memFetcher{data: data}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	buf := make([]byte, len(data))
	_, err = store.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, buf))

	// every byte was fetched exactly once, coalesced into runs
	assert.Equal(t, int64(len(data)), f.fetchedBytes)
	assert.Less(t, f.fetches, 64) // 64 chunks, far fewer requests

	// a second pass is served entirely from cache
	fetched := f.fetchedBytes
	_, err = store.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, fetched, f.fetchedBytes)

	st := store.Stats()
	assert.Equal(t, int64(0), st.FetchErrors)
	assert.Positive(t, st.CacheHits)
}

func TestStoreConcurrent(t *testing.T) {
	data := testData(512 << 10)
	f := &memFetcher{data: data}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for j := 0; j < 50; j++ {
				off := r.Intn(len(data) - 1)
				length := 1 + r.Intn(20<<10)
				if off+length > len(data) {
					length = len(data) - off
				}
				buf := make([]byte, length)
				if _, err := store.ReadAt(ctx, buf, int64(off)); err != nil {
					errs <- fmt.Errorf("read [%d,%d): %s", off, off+length, err)
					return
				}
				if !bytes.Equal(data[off:off+length], buf) {
					errs <- fmt.Errorf("wrong data at [%d,%d)", off, off+length)
					return
				}
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// overlapping readers never fetch the same chunk twice
	assert.LessOrEqual(t, f.fetchedBytes, int64(len(data)))
}

func TestStoreRetry(t *testing.T) {
	data := testData(64 << 10)
	f := &memFetcher{data: data, failures: 1}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	buf := make([]byte, 4096)
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data[:4096], buf))
	assert.Equal(t, int64(1), store.Stats().Retries)
}

func TestStoreFetchError(t *testing.T) {
	data := testData(64 << 10)
	f := &memFetcher{data: data, failures: 2} // first try and its retry
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	buf := make([]byte, 4096)
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.Error(t, err)
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(1), store.Stats().FetchErrors)

	// the failure is not sticky
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
}

func TestStoreSizeRetry(t *testing.T) {
	data := testData(16 << 10)
	f := &memFetcher{data: data, sizeFailures: 1}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	buf := make([]byte, 4096)
	_, err = store.ReadAt(ctx, buf, 0)
	require.Error(t, err)

	// a failed size probe is not sticky either
	n, err := store.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.True(t, bytes.Equal(data[:4096], buf))

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func TestStoreFillRange(t *testing.T) {
	data := testData(128 << 10)
	f := &memFetcher{data: data}
	store, err := NewStore(f, testConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.FillRange(ctx, 0, int64(len(data))))
	assert.Equal(t, int64(len(data)), f.fetchedBytes)

	buf := make([]byte, len(data))
	_, err = store.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, buf))
	assert.Equal(t, int64(len(data)), f.fetchedBytes)

	// warming past EOF is a no-op
	require.NoError(t, store.FillRange(ctx, int64(len(data))+100, 10))
}

func TestStoreDiskCache(t *testing.T) {
	data := testData(128 << 10)
	dir := t.TempDir()
	conf := testConfig()
	conf.CacheDir = dir
	conf.Compress = "zstd"

	f1 := &memFetcher{data: data}
	store, err := NewStore(f1, conf)
	require.NoError(t, err)
	buf := make([]byte, len(data))
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// a fresh reader over the same cache dir needs no fetches
	f2 := &memFetcher{data: data}
	store2, err := NewStore(f2, conf)
	require.NoError(t, err)
	defer store2.Close()
	_, err = store2.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, buf))
	assert.Equal(t, 0, f2.fetches)
}

func TestStoreMemEviction(t *testing.T) {
	data := testData(256 << 10)
	conf := testConfig()
	conf.CacheSize = 32 << 10 // 8 chunks
	f := &memFetcher{data: data}
	store, err := NewStore(f, conf)
	require.NoError(t, err)
	defer store.Close()

	buf := make([]byte, len(data))
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, buf))
	// cached slices pin their coalesced span, so usage may overshoot by
	// up to one run before eviction catches up
	assert.Less(t, store.UsedMemory(), conf.CacheSize+int64(maxRunChunks*conf.ChunkSize))

	// evicted chunks are refetched correctly
	_, err = store.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, buf))
}

func TestController(t *testing.T) {
	var con Controller
	var calls int32
	release := make(chan struct{})

	var entered, wg sync.WaitGroup
	pages := make([]*Page, 8)
	for i := range pages {
		entered.Add(1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			p, err := con.Execute(1, func() (*Page, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return NewPage([]byte("chunk-1")), nil
			})
			require.NoError(t, err)
			pages[i] = p
		}(i)
	}
	entered.Wait()
	time.Sleep(time.Millisecond * 50) // let every caller reach the controller
	assert.True(t, con.Busy(1))
	assert.False(t, con.TryReserve(1)) // already in flight
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls)
	for _, p := range pages {
		assert.Equal(t, []byte("chunk-1"), p.Data)
		p.Release()
	}
	assert.False(t, con.Busy(1))
}

func TestControllerReserve(t *testing.T) {
	var con Controller
	require.True(t, con.TryReserve(5))
	require.True(t, con.Busy(5))

	done := make(chan *Page, 1)
	go func() {
		p, err := con.Execute(5, func() (*Page, error) {
			panic("reserved id must not be loaded again")
		})
		require.NoError(t, err)
		done <- p
	}()

	time.Sleep(time.Millisecond * 10)
	p := NewPage([]byte("reserved"))
	con.Commit(5, p, nil)
	p.Release()

	got := <-done
	assert.Equal(t, []byte("reserved"), got.Data)
	got.Release()
	assert.False(t, con.Busy(5))
}
