// pkg/fetch/file.go

package fetch

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

type fileFetcher struct {
	path string
	f    *os.File
}

func newFileFetcher(path string) (*fileFetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "open %s", path)
	}
	return &fileFetcher{path: path, f: f}, nil
}

func (l *fileFetcher) String() string { return "file://" + l.path }

func (l *fileFetcher) Fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(l.f, off, length)), nil
}

func (l *fileFetcher) Size(ctx context.Context) (int64, error) {
	st, err := l.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (l *fileFetcher) Close() error { return l.f.Close() }
