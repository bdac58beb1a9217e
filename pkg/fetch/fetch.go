// pkg/fetch/fetch.go

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"NJCrashes/pkg/utils"
)

var logger = utils.GetLogger("njcrashes")

// UserAgent is sent with every outgoing request.
var UserAgent = "NJCrashes"

// Fetcher retrieves byte spans of a single immutable remote file.
type Fetcher interface {
	// Fetch returns a reader over [off, off+length) of the file.
	// The returned reader yields exactly length bytes unless the span
	// extends past the end of the file.
	Fetch(ctx context.Context, off int64, length int64) (io.ReadCloser, error)
	// Size returns the total size of the file in bytes.
	Size(ctx context.Context) (int64, error)
	String() string
}

// Open creates a fetcher for uri. Supported schemes are http(s)://,
// sftp:// and file:// (or a bare path).
func Open(uri string, timeout time.Duration) (Fetcher, error) {
	if !strings.Contains(uri, "://") {
		return newFileFetcher(uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", uri, err)
	}
	switch u.Scheme {
	case "http", "https":
		return newHTTPFetcher(uri, timeout), nil
	case "sftp":
		return newSftpFetcher(u)
	case "file":
		return newFileFetcher(u.Path)
	}
	return nil, fmt.Errorf("unsupported scheme %s", u.Scheme)
}

// ReadRange reads the whole span [off, off+length) into a new buffer.
func ReadRange(ctx context.Context, f Fetcher, off, length int64) ([]byte, error) {
	r, err := f.Fetch(ctx, off, length)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := make([]byte, length)
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return buf[:n], nil
	}
	return buf[:n], err
}
