// pkg/sqlite/sqlite.go

// Package sqlite reads the SQLite file format directly from a
// byte-addressable source, so an immutable database can be queried
// through ranged reads without downloading the whole file. Only the
// read path is implemented: table b-trees, index b-trees and overflow
// chains. Journals, WAL and write support are out of scope.
package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"NJCrashes/pkg/utils"
)

var magic = []byte("SQLite format 3\x00")

// ReaderAt is the byte source of a database file. chunk.Store
// implements it for remote files; NewIOReaderAt adapts local ones.
type ReaderAt interface {
	ReadAt(ctx context.Context, buf []byte, off int64) (int, error)
}

// FormatError reports bytes that do not match the SQLite file layout.
// It signals corruption or schema drift, never an empty result, and a
// query hitting one must not be retried.
type FormatError struct {
	Off int64
	Msg string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed database at byte %d: %s", e.Off, e.Msg)
}

func corrupt(off int64, format string, args ...interface{}) error {
	return &FormatError{Off: off, Msg: fmt.Sprintf(format, args...)}
}

// SchemaEntry is one row of sqlite_schema.
type SchemaEntry struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Table string `json:"table"`
	Root  int    `json:"root"`
	SQL   string `json:"sql,omitempty"`
}

// File is an open database.
type File struct {
	r ReaderAt

	PageSize  int
	PageCount uint32
	usable    int

	schema []SchemaEntry
}

// Open validates the database header and returns a File. It reads
// exactly the first 100 bytes of the source.
func Open(ctx context.Context, r ReaderAt) (*File, error) {
	hdr := make([]byte, 100)
	f := &File{r: r}
	if err := f.readFull(ctx, hdr, 0); err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr[:16], magic) {
		return nil, corrupt(0, "bad magic %q", hdr[:16])
	}
	b := utils.ReadBuffer(hdr)
	b.Seek(16)
	f.PageSize = int(b.Get16())
	if f.PageSize == 1 {
		f.PageSize = 65536
	}
	if f.PageSize < 512 || f.PageSize&(f.PageSize-1) != 0 {
		return nil, corrupt(16, "bad page size %d", f.PageSize)
	}
	b.Seek(20)
	reserved := int(b.Get8())
	f.usable = f.PageSize - reserved
	if f.usable < 480 {
		return nil, corrupt(20, "usable page size %d is too small", f.usable)
	}
	b.Seek(28)
	f.PageCount = b.Get32()
	b.Seek(56)
	if enc := b.Get32(); enc != 1 {
		return nil, corrupt(56, "unsupported text encoding %d", enc)
	}
	return f, nil
}

// Schema returns the sqlite_schema rows, reading them once.
func (f *File) Schema(ctx context.Context) ([]SchemaEntry, error) {
	if f.schema != nil {
		return f.schema, nil
	}
	var entries []SchemaEntry
	err := f.WalkTable(ctx, 1, func(rowid int64, vals []interface{}) (bool, error) {
		if len(vals) < 5 {
			return false, corrupt(0, "short sqlite_schema row %d", rowid)
		}
		e := SchemaEntry{
			Type:  asString(vals[0]),
			Name:  asString(vals[1]),
			Table: asString(vals[2]),
		}
		if root, ok := vals[3].(int64); ok {
			e.Root = int(root)
		}
		e.SQL = asString(vals[4])
		entries = append(entries, e)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	f.schema = entries
	return entries, nil
}

// Table returns the root page of the named table.
func (f *File) Table(ctx context.Context, name string) (int, error) {
	return f.root(ctx, "table", name)
}

// Index returns the root page of the named index.
func (f *File) Index(ctx context.Context, name string) (int, error) {
	return f.root(ctx, "index", name)
}

func (f *File) root(ctx context.Context, typ, name string) (int, error) {
	schema, err := f.Schema(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range schema {
		if e.Type == typ && e.Name == name {
			return e.Root, nil
		}
	}
	return 0, fmt.Errorf("no such %s: %s", typ, name)
}

func (f *File) readPage(ctx context.Context, pgno int) ([]byte, error) {
	if pgno < 1 {
		return nil, corrupt(0, "invalid page number %d", pgno)
	}
	buf := make([]byte, f.PageSize)
	off := int64(pgno-1) * int64(f.PageSize)
	if err := f.readFull(ctx, buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (f *File) readFull(ctx context.Context, buf []byte, off int64) error {
	var got int
	for got < len(buf) {
		n, err := f.r.ReadAt(ctx, buf[got:], off+int64(got))
		got += n
		if got == len(buf) {
			return nil
		}
		if err == io.EOF {
			return corrupt(off+int64(got), "unexpected end of file")
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return corrupt(off+int64(got), "no progress reading")
		}
	}
	return nil
}

type ioReaderAt struct {
	r io.ReaderAt
}

// NewIOReaderAt adapts a standard io.ReaderAt, e.g. an *os.File.
func NewIOReaderAt(r io.ReaderAt) ReaderAt {
	return ioReaderAt{r}
}

func (a ioReaderAt) ReadAt(ctx context.Context, buf []byte, off int64) (int, error) {
	return a.r.ReadAt(buf, off)
}
