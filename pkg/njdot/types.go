// pkg/njdot/types.go

// Package njdot serves paginated, filtered views over NJDOT
// traffic-crash records and yearly aggregates stored in an immutable
// SQLite data file, either opened locally or read remotely through
// ranged fetches.
package njdot

import "fmt"

// DefaultPerPage is the page size used when a caller does not pick one.
const DefaultPerPage = 20

// CrashRecord is one row of the crashes table. The short field codes
// follow the NJDOT convention: tk/ti total killed/injured, pk/pi
// pedestrians killed/injured, tv vehicles involved.
type CrashRecord struct {
	ID           int64   `json:"id"`
	Date         string  `json:"dt"`
	County       int     `json:"cc"`
	Municipality int     `json:"mc"`
	Severity     string  `json:"severity"`
	Killed       int     `json:"tk"`
	Injured      int     `json:"ti"`
	PedKilled    int     `json:"pk"`
	PedInjured   int     `json:"pi"`
	Vehicles     int     `json:"tv"`
	Lat          float64 `json:"lat,omitempty"`
	Lon          float64 `json:"lon,omitempty"`
	Road         string  `json:"road,omitempty"`
}

// YearStat is the aggregate for one (county, municipality, year).
// Municipality 0 is the county-wide rollup; county 0 the statewide
// one. Years with no data have no row at all.
type YearStat struct {
	County       int `json:"cc"`
	Municipality int `json:"mc"`
	Year         int `json:"y"`
	Crashes      int `json:"nc"`
	Killed       int `json:"tk"`
	Injured      int `json:"ti"`
	PedKilled    int `json:"pk"`
	PedInjured   int `json:"pi"`
}

// TotalsRecord is the precomputed all-years aggregate for one
// dimension, with the same rollup convention as YearStat.
type TotalsRecord struct {
	County       int `json:"cc"`
	Municipality int `json:"mc"`
	Crashes      int `json:"nc"`
	Killed       int `json:"tk"`
	Injured      int `json:"ti"`
	PedKilled    int `json:"pk"`
	PedInjured   int `json:"pi"`
}

// CrashPage is one page of crash rows plus the total count of the
// whole filtered set, which stays the same on every page.
type CrashPage struct {
	Rows  []CrashRecord `json:"crashes"`
	Total int           `json:"total"`
}

// Filter selects a county and optionally a municipality within it.
// Zero values mean unfiltered.
type Filter struct {
	County       int
	Municipality int
}

func (f Filter) Validate() error {
	if f.County < 0 || f.Municipality < 0 {
		return errorf(KindInvalidFilter, "negative dimension code in %s", f)
	}
	if f.Municipality != 0 && f.County == 0 {
		return errorf(KindInvalidFilter, "municipality %d given without a county", f.Municipality)
	}
	return nil
}

func (f Filter) String() string {
	return fmt.Sprintf("cc=%d,mc=%d", f.County, f.Municipality)
}

// Pagination is a (page, perPage) pair; offset = page * perPage.
type Pagination struct {
	Page    int
	PerPage int
}

func (p Pagination) Validate() error {
	if p.Page < 0 {
		return errorf(KindInvalidPagination, "negative page %d", p.Page)
	}
	if p.PerPage <= 0 {
		return errorf(KindInvalidPagination, "page size %d is not positive", p.PerPage)
	}
	return nil
}

func (p Pagination) Offset() int {
	return p.Page * p.PerPage
}

func (p Pagination) String() string {
	return fmt.Sprintf("p=%d,pp=%d", p.Page, p.PerPage)
}
