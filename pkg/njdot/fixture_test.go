// pkg/njdot/fixture_test.go

package njdot

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/fetch"
)

type dim struct{ cc, mc int }

type agg struct{ nc, tk, ti, pk, pi int }

// makeDataFile builds a small but representative data file: crashes
// across three counties, aggregates per year with genuine gap years,
// and rollup rows at municipality 0 / county 0.
func makeDataFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "crashes.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE crashes (
			id INTEGER PRIMARY KEY, dt TEXT, cc INTEGER, mc INTEGER,
			severity TEXT, tk INTEGER, ti INTEGER, pk INTEGER, pi INTEGER,
			tv INTEGER, lat REAL, lon REAL, road TEXT)`,
		`CREATE INDEX idx_crashes_cc_mc ON crashes (cc, mc)`,
		`CREATE TABLE year_stats (
			cc INTEGER, mc INTEGER, y INTEGER, nc INTEGER,
			tk INTEGER, ti INTEGER, pk INTEGER, pi INTEGER)`,
		`CREATE INDEX idx_year_stats_cc_mc ON year_stats (cc, mc, y)`,
		`CREATE TABLE totals (
			cc INTEGER, mc INTEGER, nc INTEGER,
			tk INTEGER, ti INTEGER, pk INTEGER, pi INTEGER)`,
		`CREATE INDEX idx_totals_cc_mc ON totals (cc, mc)`,
	} {
		_, err = db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	tx, err := db.Begin()
	require.NoError(t, err)
	ins, err := tx.Prepare(`INSERT INTO crashes
		(id, dt, cc, mc, severity, tk, ti, pk, pi, tv, lat, lon, road)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	require.NoError(t, err)

	severities := []string{"p", "i", "f"}
	years := map[dim][]agg{}
	yearOf := map[dim][]int{}
	id := 0
	for i := 0; i < 900; i++ {
		cc := 1 + i%3
		mc := 1 + i%4
		// county 2 has no data at all in 2003: a real gap year
		y := 2001 + i%5
		if cc == 2 && y == 2003 {
			continue
		}
		id++
		sev := severities[i%len(severities)]
		tk, ti, pk, pi := 0, 0, 0, 0
		switch sev {
		case "f":
			tk = 1 + i%2
			pk = i % 2
		case "i":
			ti = 1 + i%3
			pi = i % 2
		}
		var lat, lon, road interface{}
		if i%5 != 0 {
			lat = 39.0 + float64(i)/1000
			lon = -74.5 - float64(i)/1000
			road = fmt.Sprintf("route %d", i%9)
		}
		dt := time.Date(y, time.Month(1+i%12), 1+i%28, i%24, 0, 0, 0, time.UTC).Format("2006-01-02 15:04")
		_, err = ins.Exec(id, dt, cc, mc, sev, tk, ti, pk, pi, 1+i%3, lat, lon, road)
		require.NoError(t, err)

		a := agg{1, tk, ti, pk, pi}
		for _, d := range []dim{{cc, mc}, {cc, 0}, {0, 0}} {
			idx := -1
			for j, yy := range yearOf[d] {
				if yy == y {
					idx = j
					break
				}
			}
			if idx < 0 {
				yearOf[d] = append(yearOf[d], y)
				years[d] = append(years[d], a)
			} else {
				s := &years[d][idx]
				s.nc += a.nc
				s.tk += a.tk
				s.ti += a.ti
				s.pk += a.pk
				s.pi += a.pi
			}
		}
	}
	require.NoError(t, ins.Close())

	insYear, err := tx.Prepare(`INSERT INTO year_stats (cc, mc, y, nc, tk, ti, pk, pi) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	require.NoError(t, err)
	insTotal, err := tx.Prepare(`INSERT INTO totals (cc, mc, nc, tk, ti, pk, pi) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	require.NoError(t, err)
	for d, aggs := range years {
		var sum agg
		for j, a := range aggs {
			_, err = insYear.Exec(d.cc, d.mc, yearOf[d][j], a.nc, a.tk, a.ti, a.pk, a.pi)
			require.NoError(t, err)
			sum.nc += a.nc
			sum.tk += a.tk
			sum.ti += a.ti
			sum.pk += a.pk
			sum.pi += a.pi
		}
		_, err = insTotal.Exec(d.cc, d.mc, sum.nc, sum.tk, sum.ti, sum.pk, sum.pi)
		require.NoError(t, err)
	}
	require.NoError(t, insYear.Close())
	require.NoError(t, insTotal.Close())
	require.NoError(t, tx.Commit())
	return path
}

func openLocal(t *testing.T, path string) *Engine {
	acc, err := OpenSQL(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = acc.Close() })
	return NewEngine(acc)
}

func openRemote(t *testing.T, path string) *Engine {
	f, err := fetch.Open(path, time.Second*10)
	require.NoError(t, err)
	conf := chunk.DefaultConfig()
	conf.ChunkSize = 4 << 10
	store, err := chunk.NewStore(f, conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	acc, err := OpenRemote(context.Background(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = acc.Close() })
	return NewEngine(acc)
}

// bothEngines runs fn against the local and the ranged-read rendition,
// which must be indistinguishable.
func bothEngines(t *testing.T, fn func(t *testing.T, e *Engine)) {
	path := makeDataFile(t)
	t.Run("local", func(t *testing.T) { fn(t, openLocal(t, path)) })
	t.Run("remote", func(t *testing.T) { fn(t, openRemote(t, path)) })
}
