// pkg/fetch/http.go

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type httpFetcher struct {
	url    string
	client *http.Client

	sync.Mutex
	size int64 // -1 until probed
}

func newHTTPFetcher(url string, timeout time.Duration) *httpFetcher {
	return &httpFetcher{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     time.Minute,
			},
		},
		size: -1,
	}
}

func (h *httpFetcher) String() string { return h.url }

func (h *httpFetcher) Fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+length-1))
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "GET %s", h.url)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return newLimitReadCloser(resp.Body, length), nil
	case http.StatusOK:
		// The server ignored the Range header and replied with the whole
		// file; discard the leading bytes and slice the span locally.
		logger.Debugf("%s ignored Range, slicing %d bytes locally", h.url, resp.ContentLength)
		if _, err = io.CopyN(io.Discard, resp.Body, off); err != nil {
			_ = resp.Body.Close()
			return nil, errors.WithMessagef(err, "skip %d bytes of %s", off, h.url)
		}
		return newLimitReadCloser(resp.Body, length), nil
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", h.url, resp.Status)
	}
}

// Size caches the probed size on success only, so a failed probe does
// not stick for the life of the fetcher.
func (h *httpFetcher) Size(ctx context.Context) (int64, error) {
	h.Lock()
	defer h.Unlock()
	if h.size >= 0 {
		return h.size, nil
	}
	size, err := h.probeSize(ctx)
	if err != nil {
		return 0, err
	}
	h.size = size
	return size, nil
}

func (h *httpFetcher) probeSize(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", h.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := h.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
	}
	// some servers reject HEAD, ask for the first byte and parse Content-Range
	req, err = http.NewRequestWithContext(ctx, "GET", h.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Range", "bytes=0-0")
	resp, err = h.client.Do(req)
	if err != nil {
		return 0, errors.WithMessagef(err, "probe size of %s", h.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return resp.ContentLength, nil
	}
	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("probe size of %s: unexpected status %s", h.url, resp.Status)
	}
	cr := resp.Header.Get("Content-Range") // bytes 0-0/SIZE
	idx := strings.LastIndexByte(cr, '/')
	if idx < 0 {
		return 0, fmt.Errorf("probe size of %s: malformed Content-Range %q", h.url, cr)
	}
	return strconv.ParseInt(cr[idx+1:], 10, 64)
}

type limitReadCloser struct {
	io.Reader
	body io.Closer
}

func newLimitReadCloser(body io.ReadCloser, length int64) io.ReadCloser {
	return &limitReadCloser{io.LimitReader(body, length), body}
}

func (l *limitReadCloser) Close() error { return l.body.Close() }
