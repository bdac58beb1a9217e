// pkg/fetch/bwlimit.go

package fetch

import (
	"context"
	"io"

	"github.com/juju/ratelimit"
)

type limitedReader struct {
	io.Reader
	r *ratelimit.Bucket
}

func (l *limitedReader) Read(buf []byte) (int, error) {
	n, err := l.Reader.Read(buf)
	if l.r != nil {
		l.r.Wait(int64(n))
	}
	return n, err
}

// Close closes the underlying reader
func (l *limitedReader) Close() error {
	if rc, ok := l.Reader.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}

type bwlimit struct {
	Fetcher
	downLimit *ratelimit.Bucket
}

// NewLimited caps the download bandwidth of f at down bytes per second.
func NewLimited(f Fetcher, down int64) Fetcher {
	bw := &bwlimit{f, nil}
	if down > 0 {
		// there are overheads coming from HTTP/TCP/IP
		bw.downLimit = ratelimit.NewBucketWithRate(float64(down)*0.85, down)
	}
	return bw
}

func (p *bwlimit) Fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	r, err := p.Fetcher.Fetch(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return &limitedReader{r, p.downLimit}, nil
}
