// pkg/njdot/accessor.go

package njdot

import "context"

// Accessor executes the fixed query shapes against one rendition of
// the data file. The local and remote renditions must be
// indistinguishable through this interface.
type Accessor interface {
	// Crashes returns limit rows of the filtered crash set starting at
	// offset, ordered by (county, municipality, id), together with the
	// total count of the whole set. An offset at or past the end yields
	// an empty slice and the unchanged total.
	Crashes(ctx context.Context, f Filter, offset, limit int) ([]CrashRecord, int, error)
	// YearStats returns the per-year aggregates for the filter
	// dimension in ascending year order. Years without data are absent.
	YearStats(ctx context.Context, f Filter) ([]YearStat, error)
	// Totals returns the precomputed all-years aggregate for the filter
	// dimension, or nil when the dimension has no row.
	Totals(ctx context.Context, f Filter) (*TotalsRecord, error)
	Close() error
}
