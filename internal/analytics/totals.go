// Package analytics turns a flat snapshot of normalized usage events into
// derived behavioral metrics: per-type/per-model totals, time-bucketed
// activity, inferred sessions, and cohort retention. Every function here is
// a pure transformation over an immutable event slice; nothing holds state
// across calls and nothing touches the clock except through explicit
// parameters, so the same input always produces the same output.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// costDisplayPlaces is the rounding applied to costs at presentation.
// Accumulators keep full precision.
const costDisplayPlaces = 6

// GroupKey identifies a (type, model) aggregation group. Events with the
// same type but different models, including an empty model, are distinct
// groups.
type GroupKey struct {
	Type  string
	Model string
}

// Totals holds call counts and exact cost sums per (type, model) group.
type Totals struct {
	Calls map[GroupKey]int
	Costs map[GroupKey]decimal.Decimal
}

// TotalsRow is one presentation row, sorted by type then model, with the
// cost rounded for display.
type TotalsRow struct {
	Type  string `json:"type"`
	Model string `json:"model"`
	Calls int    `json:"calls"`
	Cost  string `json:"cost"`
}

// ComputeTotals groups events by (type, model), counting calls and summing
// cost exactly. Empty input yields empty maps.
func ComputeTotals(events []domain.Event) Totals {
	totals := Totals{
		Calls: make(map[GroupKey]int),
		Costs: make(map[GroupKey]decimal.Decimal),
	}
	for _, e := range events {
		key := GroupKey{Type: e.Type, Model: e.Model}
		totals.Calls[key]++
		totals.Costs[key] = totals.Costs[key].Add(e.Cost)
	}
	return totals
}

// TotalCost returns the exact sum of all group costs.
func (t Totals) TotalCost() decimal.Decimal {
	sum := decimal.Zero
	for _, cost := range t.Costs {
		sum = sum.Add(cost)
	}
	return sum
}

// Rows flattens the totals into sorted presentation rows.
func (t Totals) Rows() []TotalsRow {
	rows := make([]TotalsRow, 0, len(t.Calls))
	for key, calls := range t.Calls {
		rows = append(rows, TotalsRow{
			Type:  key.Type,
			Model: key.Model,
			Calls: calls,
			Cost:  t.Costs[key].Round(costDisplayPlaces).StringFixed(costDisplayPlaces),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Model < rows[j].Model
	})
	return rows
}
