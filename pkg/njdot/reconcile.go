// pkg/njdot/reconcile.go

package njdot

import (
	"sort"
	"strconv"
)

// AllYearsLabel marks the reconciled row carrying the precomputed
// totals.
const AllYearsLabel = "All years"

// YearRow is one display row of the reconciled yearly series.
type YearRow struct {
	Label      string `json:"label"`
	Year       int    `json:"y,omitempty"`
	AllYears   bool   `json:"all_years,omitempty"`
	Crashes    int    `json:"nc"`
	Killed     int    `json:"tk"`
	Injured    int    `json:"ti"`
	PedKilled  int    `json:"pk"`
	PedInjured int    `json:"pi"`
}

// Reconcile merges the sparse per-year series with the precomputed
// all-years totals into display order: years ascending, then one
// totals row. Years absent from stats stay absent; gaps are real and
// never zero-filled. The totals values come from the totals table
// verbatim, never from re-summing the years.
func Reconcile(stats []YearStat, totals *TotalsRecord) []YearRow {
	rows := make([]YearRow, 0, len(stats)+1)
	sorted := append([]YearStat(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Year < sorted[j].Year
	})
	for _, s := range sorted {
		rows = append(rows, YearRow{
			Label:      strconv.Itoa(s.Year),
			Year:       s.Year,
			Crashes:    s.Crashes,
			Killed:     s.Killed,
			Injured:    s.Injured,
			PedKilled:  s.PedKilled,
			PedInjured: s.PedInjured,
		})
	}
	if totals != nil {
		rows = append(rows, YearRow{
			Label:      AllYearsLabel,
			AllYears:   true,
			Crashes:    totals.Crashes,
			Killed:     totals.Killed,
			Injured:    totals.Injured,
			PedKilled:  totals.PedKilled,
			PedInjured: totals.PedInjured,
		})
	}
	return rows
}
