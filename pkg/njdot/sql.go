// pkg/njdot/sql.go

package njdot

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"NJCrashes/pkg/utils"
)

const crashCols = "id, dt, cc, mc, severity, tk, ti, pk, pi, tv, lat, lon, road"

// sqlAccessor answers queries by opening the data file with the SQLite
// driver. Used when the file is on local disk.
type sqlAccessor struct {
	db *sql.DB
}

var sqliteMagic = []byte("SQLite format 3\x00")

// checkHeader distinguishes a damaged file from a missing one before
// the driver gets involved, so both renditions report corruption the
// same way.
func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &Error{Kind: KindDataUnavailable, Msg: "open " + path, Err: err}
	}
	defer f.Close()
	hdr := make([]byte, len(sqliteMagic))
	if _, err = io.ReadFull(f, hdr); err != nil || !bytes.Equal(hdr, sqliteMagic) {
		return errorf(KindFormat, "%s is not a database file", path)
	}
	return nil
}

// OpenSQL opens the data file read-only through the SQLite driver.
func OpenSQL(path string) (Accessor, error) {
	if !utils.Exists(path) {
		return nil, errorf(KindDataUnavailable, "data file %s does not exist", path)
	}
	if err := checkHeader(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &Error{Kind: KindDataUnavailable, Msg: "open " + path, Err: err}
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, &Error{Kind: KindDataUnavailable, Msg: "open " + path, Err: err}
	}
	return &sqlAccessor{db: db}, nil
}

func crashWhere(f Filter) (string, []interface{}) {
	if f.County == 0 {
		return "", nil
	}
	if f.Municipality == 0 {
		return " WHERE cc = ?", []interface{}{f.County}
	}
	return " WHERE cc = ? AND mc = ?", []interface{}{f.County, f.Municipality}
}

func (a *sqlAccessor) Crashes(ctx context.Context, f Filter, offset, limit int) ([]CrashRecord, int, error) {
	where, args := crashWhere(f)
	var total int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM crashes"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	records := []CrashRecord{}
	if offset >= total {
		return records, total, nil
	}
	query := "SELECT " + crashCols + " FROM crashes" + where + " ORDER BY cc, mc, id LIMIT ? OFFSET ?"
	rows, err := a.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var r CrashRecord
		var lat, lon sql.NullFloat64
		var road sql.NullString
		err = rows.Scan(&r.ID, &r.Date, &r.County, &r.Municipality, &r.Severity,
			&r.Killed, &r.Injured, &r.PedKilled, &r.PedInjured, &r.Vehicles,
			&lat, &lon, &road)
		if err != nil {
			return nil, 0, err
		}
		r.Lat, r.Lon, r.Road = lat.Float64, lon.Float64, road.String
		records = append(records, r)
	}
	return records, total, rows.Err()
}

func (a *sqlAccessor) YearStats(ctx context.Context, f Filter) ([]YearStat, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT cc, mc, y, nc, tk, ti, pk, pi FROM year_stats WHERE cc = ? AND mc = ? ORDER BY y",
		f.County, f.Municipality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []YearStat
	for rows.Next() {
		var s YearStat
		err = rows.Scan(&s.County, &s.Municipality, &s.Year, &s.Crashes,
			&s.Killed, &s.Injured, &s.PedKilled, &s.PedInjured)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (a *sqlAccessor) Totals(ctx context.Context, f Filter) (*TotalsRecord, error) {
	var t TotalsRecord
	err := a.db.QueryRowContext(ctx,
		"SELECT cc, mc, nc, tk, ti, pk, pi FROM totals WHERE cc = ? AND mc = ?",
		f.County, f.Municipality).Scan(&t.County, &t.Municipality, &t.Crashes,
		&t.Killed, &t.Injured, &t.PedKilled, &t.PedInjured)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *sqlAccessor) Close() error {
	return a.db.Close()
}
