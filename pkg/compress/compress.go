// pkg/compress/compress.go

package compress

import (
	"fmt"

	"github.com/DataDog/zstd"
	lz4 "github.com/hungys/go-lz4"
)

// Compressor is the codec used for chunks staged in the disk cache.
type Compressor interface {
	Name() string
	CompressBound(size int) int
	Compress(dst, src []byte) (int, error)
	Decompress(dst, src []byte) (int, error)
}

// NewCompressor returns the compressor for name (none, lz4, zstd),
// or nil if the name is not supported.
func NewCompressor(name string) Compressor {
	switch name {
	case "", "none":
		return noOp{}
	case "lz4":
		return l4{}
	case "zstd":
		return zStandard{}
	}
	return nil
}

type noOp struct{}

func (noOp) Name() string               { return "none" }
func (noOp) CompressBound(size int) int { return size }

func (noOp) Compress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, fmt.Errorf("dst is too small: %d < %d", len(dst), len(src))
	}
	return copy(dst, src), nil
}

func (noOp) Decompress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, fmt.Errorf("dst is too small: %d < %d", len(dst), len(src))
	}
	return copy(dst, src), nil
}

type l4 struct{}

func (l4) Name() string               { return "lz4" }
func (l4) CompressBound(size int) int { return lz4.CompressBound(size) }

func (l4) Compress(dst, src []byte) (int, error) {
	return lz4.CompressDefault(src, dst)
}

func (l4) Decompress(dst, src []byte) (int, error) {
	return lz4.DecompressSafe(src, dst)
}

type zStandard struct{}

func (zStandard) Name() string               { return "zstd" }
func (zStandard) CompressBound(size int) int { return zstd.CompressBound(size) }

func (zStandard) Compress(dst, src []byte) (int, error) {
	d, err := zstd.CompressLevel(dst[:0], src, zstd.DefaultCompression)
	if err != nil {
		return 0, err
	}
	if len(d) > cap(dst) {
		return 0, fmt.Errorf("dst is too small: %d < %d", cap(dst), len(d))
	}
	return len(d), err
}

func (zStandard) Decompress(dst, src []byte) (int, error) {
	d, err := zstd.Decompress(dst[:0], src)
	if err != nil {
		return 0, err
	}
	if len(d) > cap(dst) {
		return 0, fmt.Errorf("dst is too small: %d < %d", cap(dst), len(d))
	}
	return len(d), nil
}
