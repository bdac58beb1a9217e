// pkg/njdot/engine.go

package njdot

import (
	"context"

	"NJCrashes/pkg/utils"
)

var logger = utils.GetLogger("njcrashes")

// Engine validates requests, runs them through an accessor and maps
// failures into the error taxonomy. It executes only the fixed query
// shapes; composing them (e.g. year stats plus totals) is up to the
// caller.
type Engine struct {
	acc Accessor
}

func NewEngine(acc Accessor) *Engine {
	return &Engine{acc: acc}
}

// CrashPage returns one page of the filtered crash set with its stable
// total. A zero-match filter yields an empty page with total 0, which
// is a successful result.
func (e *Engine) CrashPage(ctx context.Context, f Filter, p Pagination) (*CrashPage, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rows, total, err := e.acc.Crashes(ctx, f, p.Offset(), p.PerPage)
	if err != nil {
		return nil, classify(err)
	}
	return &CrashPage{Rows: rows, Total: total}, nil
}

// YearStats returns the sparse per-year series for the filter
// dimension.
func (e *Engine) YearStats(ctx context.Context, f Filter) ([]YearStat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	stats, err := e.acc.YearStats(ctx, f)
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

// Totals returns the all-years aggregate for the filter dimension, or
// nil when the dimension has none.
func (e *Engine) Totals(ctx context.Context, f Filter) (*TotalsRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	t, err := e.acc.Totals(ctx, f)
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func (e *Engine) Close() error {
	return e.acc.Close()
}
