// pkg/njdot/remote.go

package njdot

import (
	"context"

	"NJCrashes/pkg/sqlite"
)

// remoteAccessor answers queries by walking the database b-trees
// directly over a ranged byte source, so only the pages a query touches
// are ever fetched.
type remoteAccessor struct {
	f *sqlite.File

	crashes   int
	crashIdx  int
	years     int
	yearIdx   int
	totals    int
	totalsIdx int
}

// OpenRemote validates the file header and resolves the table and
// index roots from the schema. The schema pages are the only data read
// up front.
func OpenRemote(ctx context.Context, r sqlite.ReaderAt) (Accessor, error) {
	f, err := sqlite.Open(ctx, r)
	if err != nil {
		return nil, classify(err)
	}
	a := &remoteAccessor{f: f}
	for _, root := range []struct {
		dst   *int
		index bool
		name  string
	}{
		{&a.crashes, false, "crashes"},
		{&a.crashIdx, true, "idx_crashes_cc_mc"},
		{&a.years, false, "year_stats"},
		{&a.yearIdx, true, "idx_year_stats_cc_mc"},
		{&a.totals, false, "totals"},
		{&a.totalsIdx, true, "idx_totals_cc_mc"},
	} {
		if root.index {
			*root.dst, err = f.Index(ctx, root.name)
		} else {
			*root.dst, err = f.Table(ctx, root.name)
		}
		if err != nil {
			return nil, classify(err)
		}
	}
	return a, nil
}

// indexRowid extracts the trailing rowid column of an index key. A key
// with no columns can only come from a damaged index page.
func indexRowid(key []interface{}) (int64, error) {
	if len(key) == 0 {
		return 0, errorf(KindFormat, "index entry has no columns")
	}
	return sqlite.AsInt(key[len(key)-1]), nil
}

// dimPrefix is the index key prefix selecting one filter dimension.
func dimPrefix(f Filter) []interface{} {
	if f.County == 0 {
		return nil
	}
	if f.Municipality == 0 {
		return []interface{}{int64(f.County)}
	}
	return []interface{}{int64(f.County), int64(f.Municipality)}
}

func (a *remoteAccessor) Crashes(ctx context.Context, f Filter, offset, limit int) ([]CrashRecord, int, error) {
	// One index traversal yields both the total count and the rowids of
	// the requested window, so every page sees the same total.
	var total int
	var ids []int64
	err := a.f.IndexScan(ctx, a.crashIdx, dimPrefix(f), func(key []interface{}) (bool, error) {
		rowid, err := indexRowid(key)
		if err != nil {
			return false, err
		}
		if total >= offset && len(ids) < limit {
			ids = append(ids, rowid)
		}
		total++
		return false, nil
	})
	if err != nil {
		return nil, 0, err
	}
	records := make([]CrashRecord, 0, len(ids))
	for _, id := range ids {
		vals, ok, err := a.f.TableRow(ctx, a.crashes, id)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, errorf(KindFormat, "index entry points to missing crash row %d", id)
		}
		r, err := crashFromRow(id, vals)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	return records, total, nil
}

// crashFromRow maps a decoded crashes row to a record. The id column
// is the rowid alias and is stored as NULL in the record itself.
func crashFromRow(rowid int64, vals []interface{}) (CrashRecord, error) {
	if len(vals) < 13 {
		return CrashRecord{}, errorf(KindFormat, "crash row %d has %d columns", rowid, len(vals))
	}
	return CrashRecord{
		ID:           rowid,
		Date:         sqlite.AsString(vals[1]),
		County:       int(sqlite.AsInt(vals[2])),
		Municipality: int(sqlite.AsInt(vals[3])),
		Severity:     sqlite.AsString(vals[4]),
		Killed:       int(sqlite.AsInt(vals[5])),
		Injured:      int(sqlite.AsInt(vals[6])),
		PedKilled:    int(sqlite.AsInt(vals[7])),
		PedInjured:   int(sqlite.AsInt(vals[8])),
		Vehicles:     int(sqlite.AsInt(vals[9])),
		Lat:          sqlite.AsFloat(vals[10]),
		Lon:          sqlite.AsFloat(vals[11]),
		Road:         sqlite.AsString(vals[12]),
	}, nil
}

func (a *remoteAccessor) YearStats(ctx context.Context, f Filter) ([]YearStat, error) {
	// Rollup rows are stored at code 0, so the prefix is always exact.
	prefix := []interface{}{int64(f.County), int64(f.Municipality)}
	var stats []YearStat
	err := a.f.IndexScan(ctx, a.yearIdx, prefix, func(key []interface{}) (bool, error) {
		rowid, err := indexRowid(key)
		if err != nil {
			return false, err
		}
		vals, ok, err := a.f.TableRow(ctx, a.years, rowid)
		if err != nil {
			return false, err
		}
		if !ok || len(vals) < 8 {
			return false, errorf(KindFormat, "bad year_stats row %d", rowid)
		}
		stats = append(stats, YearStat{
			County:       int(sqlite.AsInt(vals[0])),
			Municipality: int(sqlite.AsInt(vals[1])),
			Year:         int(sqlite.AsInt(vals[2])),
			Crashes:      int(sqlite.AsInt(vals[3])),
			Killed:       int(sqlite.AsInt(vals[4])),
			Injured:      int(sqlite.AsInt(vals[5])),
			PedKilled:    int(sqlite.AsInt(vals[6])),
			PedInjured:   int(sqlite.AsInt(vals[7])),
		})
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (a *remoteAccessor) Totals(ctx context.Context, f Filter) (*TotalsRecord, error) {
	prefix := []interface{}{int64(f.County), int64(f.Municipality)}
	var t *TotalsRecord
	err := a.f.IndexScan(ctx, a.totalsIdx, prefix, func(key []interface{}) (bool, error) {
		rowid, err := indexRowid(key)
		if err != nil {
			return false, err
		}
		vals, ok, err := a.f.TableRow(ctx, a.totals, rowid)
		if err != nil {
			return false, err
		}
		if !ok || len(vals) < 7 {
			return false, errorf(KindFormat, "bad totals row %d", rowid)
		}
		t = &TotalsRecord{
			County:       int(sqlite.AsInt(vals[0])),
			Municipality: int(sqlite.AsInt(vals[1])),
			Crashes:      int(sqlite.AsInt(vals[2])),
			Killed:       int(sqlite.AsInt(vals[3])),
			Injured:      int(sqlite.AsInt(vals[4])),
			PedKilled:    int(sqlite.AsInt(vals[5])),
			PedInjured:   int(sqlite.AsInt(vals[6])),
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Close is a no-op; the byte source is owned by the caller.
func (a *remoteAccessor) Close() error {
	return nil
}
