// pkg/compress/compress_test.go

package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoundtrip(t *testing.T, c Compressor, src []byte) {
	dst := make([]byte, c.CompressBound(len(src)))
	n, err := c.Compress(dst, src)
	require.NoError(t, err)

	out := make([]byte, len(src))
	m, err := c.Decompress(out, dst[:n])
	require.NoError(t, err)
	assert.Equal(t, len(src), m)
	assert.True(t, bytes.Equal(src, out[:m]))
}

func TestCompress(t *testing.T) {
	compressible := bytes.Repeat([]byte("chunked range reader "), 1000)
	random := make([]byte, 64<<10)
	rand.New(rand.NewSource(1)).Read(random)

	for _, name := range []string{"none", "lz4", "zstd"} {
		c := NewCompressor(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Name())
		testRoundtrip(t, c, compressible)
		testRoundtrip(t, c, random)
	}

	assert.Nil(t, NewCompressor("gzip"))
	assert.Equal(t, "none", NewCompressor("").Name())
}
