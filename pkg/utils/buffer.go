// pkg/utils/buffer.go

package utils

import "encoding/binary"

// Buffer decodes big-endian values from an on-disk structure.
// All methods panic on short reads; callers are expected to have
// checked the length of the underlying slice.
type Buffer struct {
	buf []byte
	off int
}

// ReadBuffer wraps buf for sequential decoding.
func ReadBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

func (b *Buffer) Get8() uint8 {
	v := b.buf[b.off]
	b.off++
	return v
}

func (b *Buffer) Get16() uint16 {
	v := binary.BigEndian.Uint16(b.buf[b.off:])
	b.off += 2
	return v
}

func (b *Buffer) Get32() uint32 {
	v := binary.BigEndian.Uint32(b.buf[b.off:])
	b.off += 4
	return v
}

func (b *Buffer) Get64() uint64 {
	v := binary.BigEndian.Uint64(b.buf[b.off:])
	b.off += 8
	return v
}

// Get returns the next n bytes without copying.
func (b *Buffer) Get(n int) []byte {
	v := b.buf[b.off : b.off+n]
	b.off += n
	return v
}

// Seek moves the read offset to off.
func (b *Buffer) Seek(off int) {
	b.off = off
}

func (b *Buffer) Left() int {
	return len(b.buf) - b.off
}

func (b *Buffer) HasMore() bool {
	return b.off < len(b.buf)
}
