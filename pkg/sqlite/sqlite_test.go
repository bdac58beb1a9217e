// pkg/sqlite/sqlite_test.go

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// makeDB writes a database with the SQLite library itself, which the
// format reader is then checked against.
func makeDB(t *testing.T, fill func(db *sql.DB)) string {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	fill(db)
	require.NoError(t, db.Close())
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openFile(t *testing.T, path string) *File {
	fp, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fp.Close() })
	f, err := Open(context.Background(), NewIOReaderAt(fp))
	require.NoError(t, err)
	return f
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	_, err := db.Exec(query, args...)
	require.NoError(t, err, query)
}

func TestOpenHeader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.db")
	require.NoError(t, os.WriteFile(bad, []byte(strings.Repeat("x", 200)), 0644))
	fp, err := os.Open(bad)
	require.NoError(t, err)
	defer fp.Close()
	_, err = Open(ctx, NewIOReaderAt(fp))
	var fe *FormatError
	require.ErrorAs(t, err, &fe)

	short := filepath.Join(dir, "short.db")
	require.NoError(t, os.WriteFile(short, []byte("SQLite format 3\x00"), 0644))
	fp2, err := os.Open(short)
	require.NoError(t, err)
	defer fp2.Close()
	_, err = Open(ctx, NewIOReaderAt(fp2))
	require.ErrorAs(t, err, &fe)

	path := makeDB(t, func(db *sql.DB) {
		mustExec(t, db, "CREATE TABLE t (a INTEGER)")
	})
	f := openFile(t, path)
	var pageSize int
	require.NoError(t, openDB(t, path).QueryRow("PRAGMA page_size").Scan(&pageSize))
	assert.Equal(t, pageSize, f.PageSize)
	assert.Positive(t, f.PageCount)
}

func TestSchema(t *testing.T) {
	path := makeDB(t, func(db *sql.DB) {
		mustExec(t, db, "CREATE TABLE t (a INTEGER, b TEXT)")
		mustExec(t, db, "CREATE INDEX idx_t_a ON t (a)")
	})
	f := openFile(t, path)
	ctx := context.Background()

	schema, err := f.Schema(ctx)
	require.NoError(t, err)
	require.Len(t, schema, 2)

	root, err := f.Table(ctx, "t")
	require.NoError(t, err)
	assert.Positive(t, root)
	iroot, err := f.Index(ctx, "idx_t_a")
	require.NoError(t, err)
	assert.Positive(t, iroot)
	assert.NotEqual(t, root, iroot)

	_, err = f.Table(ctx, "missing")
	assert.Error(t, err)
	_, err = f.Index(ctx, "t") // a table, not an index
	assert.Error(t, err)
}

const rowCount = 5000

func fillRows(t *testing.T, db *sql.DB) {
	mustExec(t, db, `CREATE TABLE t (
		id INTEGER PRIMARY KEY, cc INTEGER, mc INTEGER,
		name TEXT, value REAL, data BLOB)`)
	mustExec(t, db, "CREATE INDEX idx_t_cc_mc ON t (cc, mc)")
	tx, err := db.Begin()
	require.NoError(t, err)
	stmt, err := tx.Prepare("INSERT INTO t (id, cc, mc, name, value, data) VALUES (?, ?, ?, ?, ?, ?)")
	require.NoError(t, err)
	for i := 1; i <= rowCount; i++ {
		var name interface{} = fmt.Sprintf("row-%05d", i)
		if i%37 == 0 {
			name = nil
		} else if i%1000 == 0 {
			// long enough to spill into an overflow chain
			name = strings.Repeat(fmt.Sprintf("overflow-%d-", i), 2000)
		}
		_, err = stmt.Exec(i, 1+i%21, 1+i%40, name, float64(i)/4, []byte{byte(i), byte(i >> 8)})
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())
	require.NoError(t, tx.Commit())
}

func TestWalkTable(t *testing.T) {
	path := makeDB(t, func(db *sql.DB) { fillRows(t, db) })
	f := openFile(t, path)
	db := openDB(t, path)
	ctx := context.Background()

	root, err := f.Table(ctx, "t")
	require.NoError(t, err)

	rows, err := db.Query("SELECT id, cc, mc, name, value, data FROM t ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var walked int
	err = f.WalkTable(ctx, root, func(rowid int64, vals []interface{}) (bool, error) {
		require.True(t, rows.Next())
		var id, cc, mc int64
		var name sql.NullString
		var value float64
		var data []byte
		require.NoError(t, rows.Scan(&id, &cc, &mc, &name, &value, &data))

		require.Len(t, vals, 6)
		assert.Equal(t, id, rowid)
		assert.Nil(t, vals[0]) // rowid alias column is stored as NULL
		assert.Equal(t, cc, AsInt(vals[1]))
		assert.Equal(t, mc, AsInt(vals[2]))
		if name.Valid {
			assert.Equal(t, name.String, AsString(vals[3]))
		} else {
			assert.Nil(t, vals[3])
		}
		assert.Equal(t, value, AsFloat(vals[4]))
		assert.Equal(t, data, vals[5])
		walked++
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, rows.Next())
	assert.Equal(t, rowCount, walked)

	// early stop
	var n int
	err = f.WalkTable(ctx, root, func(rowid int64, vals []interface{}) (bool, error) {
		n++
		return n == 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestTableRow(t *testing.T) {
	path := makeDB(t, func(db *sql.DB) { fillRows(t, db) })
	f := openFile(t, path)
	ctx := context.Background()

	root, err := f.Table(ctx, "t")
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 999, 1000, 2500, rowCount} {
		vals, ok, err := f.TableRow(ctx, root, id)
		require.NoError(t, err)
		require.True(t, ok, "rowid %d", id)
		require.Len(t, vals, 6)
		assert.Equal(t, 1+id%21, AsInt(vals[1]))
		if id%1000 == 0 {
			assert.Greater(t, len(AsString(vals[3])), f.PageSize)
		}
	}

	_, ok, err := f.TableRow(ctx, root, rowCount+1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.TableRow(ctx, root, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexScan(t *testing.T) {
	path := makeDB(t, func(db *sql.DB) { fillRows(t, db) })
	f := openFile(t, path)
	db := openDB(t, path)
	ctx := context.Background()

	iroot, err := f.Index(ctx, "idx_t_cc_mc")
	require.NoError(t, err)

	expect := func(query string, args ...interface{}) [][3]int64 {
		rows, err := db.Query(query, args...)
		require.NoError(t, err)
		defer rows.Close()
		var out [][3]int64
		for rows.Next() {
			var e [3]int64
			require.NoError(t, rows.Scan(&e[0], &e[1], &e[2]))
			out = append(out, e)
		}
		require.NoError(t, rows.Err())
		return out
	}

	scan := func(prefix []interface{}) [][3]int64 {
		var out [][3]int64
		err := f.IndexScan(ctx, iroot, prefix, func(key []interface{}) (bool, error) {
			require.Len(t, key, 3)
			out = append(out, [3]int64{AsInt(key[0]), AsInt(key[1]), AsInt(key[2])})
			return false, nil
		})
		require.NoError(t, err)
		return out
	}

	// county prefix
	got := scan([]interface{}{int64(7)})
	want := expect("SELECT cc, mc, id FROM t WHERE cc = 7 ORDER BY cc, mc, id")
	assert.Equal(t, want, got)

	// county and municipality
	got = scan([]interface{}{int64(7), int64(13)})
	want = expect("SELECT cc, mc, id FROM t WHERE cc = 7 AND mc = 13 ORDER BY cc, mc, id")
	assert.Equal(t, want, got)

	// full scan
	got = scan(nil)
	want = expect("SELECT cc, mc, id FROM t ORDER BY cc, mc, id")
	assert.Equal(t, want, got)

	// no match
	assert.Empty(t, scan([]interface{}{int64(999)}))

	// early stop
	var n int
	err = f.IndexScan(ctx, iroot, []interface{}{int64(7)}, func(key []interface{}) (bool, error) {
		n++
		return n == 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
