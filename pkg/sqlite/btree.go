// pkg/sqlite/btree.go

package sqlite

import (
	"context"
	"encoding/binary"
)

const (
	pageInteriorIndex = 2
	pageInteriorTable = 5
	pageLeafIndex     = 10
	pageLeafTable     = 13
)

type page struct {
	num    int
	typ    byte
	ncells int
	right  int // right-most child, interior pages only
	base   int // offset of the cell pointer array
	hdrOff int
	data   []byte
}

func (f *File) page(ctx context.Context, pgno int) (*page, error) {
	data, err := f.readPage(ctx, pgno)
	if err != nil {
		return nil, err
	}
	p := &page{num: pgno, data: data}
	if pgno == 1 {
		p.hdrOff = 100
	}
	p.typ = data[p.hdrOff]
	hdrSize := 8
	switch p.typ {
	case pageInteriorIndex, pageInteriorTable:
		hdrSize = 12
		p.right = int(binary.BigEndian.Uint32(data[p.hdrOff+8:]))
	case pageLeafIndex, pageLeafTable:
	default:
		return nil, corrupt(f.pageOff(pgno), "unexpected page type %d", p.typ)
	}
	p.ncells = int(binary.BigEndian.Uint16(data[p.hdrOff+3:]))
	p.base = p.hdrOff + hdrSize
	if p.base+2*p.ncells > len(data) {
		return nil, corrupt(f.pageOff(pgno), "cell pointer array overflows page")
	}
	return p, nil
}

func (f *File) pageOff(pgno int) int64 {
	return int64(pgno-1) * int64(f.PageSize)
}

func (p *page) cellPtr(i int) int {
	return int(binary.BigEndian.Uint16(p.data[p.base+2*i:]))
}

func (f *File) checkCell(p *page, off int) error {
	if off < p.hdrOff || off >= len(p.data) {
		return corrupt(f.pageOff(p.num)+int64(off), "cell pointer out of page")
	}
	return nil
}

// maxLocal is the largest payload stored fully inside a b-tree page.
func (f *File) maxLocal(index bool) int {
	if index {
		return (f.usable-12)*64/255 - 23
	}
	return f.usable - 35
}

func (f *File) minLocal() int {
	return (f.usable-12)*32/255 - 23
}

// cellPayload assembles a cell payload of total length size starting
// at off in p, following the overflow chain when it spills.
func (f *File) cellPayload(ctx context.Context, p *page, off, size int, index bool) ([]byte, error) {
	maxL := f.maxLocal(index)
	if size <= maxL {
		if off+size > len(p.data) {
			return nil, corrupt(f.pageOff(p.num)+int64(off), "payload overflows page")
		}
		return p.data[off : off+size], nil
	}
	minL := f.minLocal()
	local := minL + (size-minL)%(f.usable-4)
	if local > maxL {
		local = minL
	}
	if off+local+4 > len(p.data) {
		return nil, corrupt(f.pageOff(p.num)+int64(off), "spilled payload overflows page")
	}
	buf := make([]byte, 0, size)
	buf = append(buf, p.data[off:off+local]...)
	next := int(binary.BigEndian.Uint32(p.data[off+local:]))
	for len(buf) < size {
		if next == 0 {
			return nil, corrupt(f.pageOff(p.num), "overflow chain ends early: %d < %d", len(buf), size)
		}
		opg, err := f.readPage(ctx, next)
		if err != nil {
			return nil, err
		}
		next = int(binary.BigEndian.Uint32(opg))
		avail := f.usable - 4
		if need := size - len(buf); need < avail {
			avail = need
		}
		buf = append(buf, opg[4:4+avail]...)
	}
	return buf, nil
}

// WalkTable visits every row of the table b-tree rooted at root in
// rowid order. fn returning true stops the walk early.
func (f *File) WalkTable(ctx context.Context, root int, fn func(rowid int64, values []interface{}) (bool, error)) error {
	_, err := f.walkTable(ctx, root, fn)
	return err
}

func (f *File) walkTable(ctx context.Context, pgno int, fn func(int64, []interface{}) (bool, error)) (bool, error) {
	p, err := f.page(ctx, pgno)
	if err != nil {
		return false, err
	}
	switch p.typ {
	case pageInteriorTable:
		for i := 0; i < p.ncells; i++ {
			off := p.cellPtr(i)
			if err = f.checkCell(p, off); err != nil {
				return false, err
			}
			child := int(binary.BigEndian.Uint32(p.data[off:]))
			stop, err := f.walkTable(ctx, child, fn)
			if stop || err != nil {
				return stop, err
			}
		}
		return f.walkTable(ctx, p.right, fn)
	case pageLeafTable:
		for i := 0; i < p.ncells; i++ {
			off := p.cellPtr(i)
			if err = f.checkCell(p, off); err != nil {
				return false, err
			}
			size, n := getVarint(p.data[off:])
			if n == 0 {
				return false, corrupt(f.pageOff(pgno)+int64(off), "truncated payload length")
			}
			off += n
			rowid, n := getVarint(p.data[off:])
			if n == 0 {
				return false, corrupt(f.pageOff(pgno)+int64(off), "truncated rowid")
			}
			off += n
			payload, err := f.cellPayload(ctx, p, off, int(size), false)
			if err != nil {
				return false, err
			}
			vals, err := decodeRecord(payload)
			if err != nil {
				return false, err
			}
			stop, err := fn(rowid, vals)
			if stop || err != nil {
				return stop, err
			}
		}
		return false, nil
	}
	return false, corrupt(f.pageOff(pgno), "expected table page, got type %d", p.typ)
}

// TableRow looks up one row by rowid, descending interior pages.
func (f *File) TableRow(ctx context.Context, root int, rowid int64) ([]interface{}, bool, error) {
	pgno := root
	for {
		p, err := f.page(ctx, pgno)
		if err != nil {
			return nil, false, err
		}
		switch p.typ {
		case pageInteriorTable:
			next := p.right
			for i := 0; i < p.ncells; i++ {
				off := p.cellPtr(i)
				if err = f.checkCell(p, off); err != nil {
					return nil, false, err
				}
				key, n := getVarint(p.data[off+4:])
				if n == 0 {
					return nil, false, corrupt(f.pageOff(pgno)+int64(off), "truncated interior key")
				}
				if rowid <= key {
					next = int(binary.BigEndian.Uint32(p.data[off:]))
					break
				}
			}
			pgno = next
		case pageLeafTable:
			for i := 0; i < p.ncells; i++ {
				off := p.cellPtr(i)
				if err = f.checkCell(p, off); err != nil {
					return nil, false, err
				}
				size, n := getVarint(p.data[off:])
				if n == 0 {
					return nil, false, corrupt(f.pageOff(pgno)+int64(off), "truncated payload length")
				}
				off += n
				id, n := getVarint(p.data[off:])
				if n == 0 {
					return nil, false, corrupt(f.pageOff(pgno)+int64(off), "truncated rowid")
				}
				if id != rowid {
					continue
				}
				off += n
				payload, err := f.cellPayload(ctx, p, off, int(size), false)
				if err != nil {
					return nil, false, err
				}
				vals, err := decodeRecord(payload)
				if err != nil {
					return nil, false, err
				}
				return vals, true, nil
			}
			return nil, false, nil
		default:
			return nil, false, corrupt(f.pageOff(pgno), "expected table page, got type %d", p.typ)
		}
	}
}

// IndexScan visits, in index order, the entries of the index b-tree
// rooted at root whose leading columns equal prefix. fn receives the
// full decoded key, whose last column is the rowid of the indexed
// table. An empty prefix scans the whole index. fn returning true
// stops the scan.
func (f *File) IndexScan(ctx context.Context, root int, prefix []interface{}, fn func(key []interface{}) (bool, error)) error {
	_, err := f.scanIndex(ctx, root, prefix, fn)
	return err
}

func (f *File) scanIndex(ctx context.Context, pgno int, prefix []interface{}, fn func([]interface{}) (bool, error)) (bool, error) {
	p, err := f.page(ctx, pgno)
	if err != nil {
		return false, err
	}
	switch p.typ {
	case pageInteriorIndex:
		for i := 0; i < p.ncells; i++ {
			off := p.cellPtr(i)
			if err = f.checkCell(p, off); err != nil {
				return false, err
			}
			child := int(binary.BigEndian.Uint32(p.data[off:]))
			size, n := getVarint(p.data[off+4:])
			if n == 0 {
				return false, corrupt(f.pageOff(pgno)+int64(off), "truncated payload length")
			}
			payload, err := f.cellPayload(ctx, p, off+4+n, int(size), true)
			if err != nil {
				return false, err
			}
			key, err := decodeRecord(payload)
			if err != nil {
				return false, err
			}
			c := cmpPrefix(key, prefix)
			if c < 0 {
				// the whole left subtree sorts before the prefix
				continue
			}
			stop, err := f.scanIndex(ctx, child, prefix, fn)
			if stop || err != nil {
				return stop, err
			}
			if c > 0 {
				// this key and everything to the right is past the prefix
				return true, nil
			}
			// interior keys are real entries, not separators
			stop, err = fn(key)
			if stop || err != nil {
				return stop, err
			}
		}
		return f.scanIndex(ctx, p.right, prefix, fn)
	case pageLeafIndex:
		for i := 0; i < p.ncells; i++ {
			off := p.cellPtr(i)
			if err = f.checkCell(p, off); err != nil {
				return false, err
			}
			size, n := getVarint(p.data[off:])
			if n == 0 {
				return false, corrupt(f.pageOff(pgno)+int64(off), "truncated payload length")
			}
			payload, err := f.cellPayload(ctx, p, off+n, int(size), true)
			if err != nil {
				return false, err
			}
			key, err := decodeRecord(payload)
			if err != nil {
				return false, err
			}
			c := cmpPrefix(key, prefix)
			if c < 0 {
				continue
			}
			if c > 0 {
				return true, nil
			}
			stop, err := fn(key)
			if stop || err != nil {
				return stop, err
			}
		}
		return false, nil
	}
	return false, corrupt(f.pageOff(pgno), "expected index page, got type %d", p.typ)
}
