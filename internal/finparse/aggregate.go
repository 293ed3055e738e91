package finparse

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DerivedMetrics are the fixed-formula values recomputed from category
// totals for one period.
type DerivedMetrics struct {
	GrossProfit decimal.Decimal `json:"gross_profit"`
	EBITDA      decimal.Decimal `json:"ebitda"`
	NetIncome   decimal.Decimal `json:"net_income"`
}

// PeriodAnalysis is the per-period slice of an aggregation.
type PeriodAnalysis struct {
	Period           CanonicalPeriod                       `json:"period"`
	TotalsByCategory map[string]decimal.Decimal            `json:"totals_by_category"`
	Subtotals        map[string]map[string]decimal.Decimal `json:"subtotals,omitempty"`
	Derived          DerivedMetrics                        `json:"derived"`
}

// Aggregation is the combined output consumed by dashboards and the AI query
// layer. Periods are ordered chronologically regardless of source column
// order, so YTD and range sums stay correct when currency sections interleave
// columns.
type Aggregation struct {
	Periods        []CanonicalPeriod          `json:"periods"`
	PeriodAnalysis []PeriodAnalysis           `json:"period_analysis"`
	YTDByCategory  map[string]decimal.Decimal `json:"ytd_by_category"`
	Warnings       []string                   `json:"warnings,omitempty"`
}

// consistencyTolerance: recomputed vs declared values may disagree by
// rounding; anything past max(0.5 absolute, 0.1% relative) is surfaced as a
// data-quality warning. Neither value is overwritten.
var consistencyAbs = decimal.NewFromFloat(0.5)

const consistencyRel = 0.001

// opexCategories enter the EBITDA subtraction.
var opexCategories = []string{
	CategoryPersonnel,
	CategoryProfessional,
	CategorySalesMarketing,
	CategoryFacilities,
	CategoryOtherExpense,
}

// Aggregate combines parsed line items into per-period totals and derived
// metrics. Rows flagged IsTotal or IsCalculated never enter the sums; they
// are only compared against the recomputed values, and the recomputed value
// wins on mismatch with the discrepancy flagged.
func Aggregate(rows []AccountRow) *Aggregation {
	agg := &Aggregation{
		YTDByCategory: make(map[string]decimal.Decimal),
	}

	periodSet := make(map[CanonicalPeriod]bool)
	totals := make(map[CanonicalPeriod]map[string]decimal.Decimal)
	subtotals := make(map[CanonicalPeriod]map[string]map[string]decimal.Decimal)

	for _, row := range rows {
		for period := range row.Values {
			periodSet[period] = true
		}
		if row.IsTotal || row.IsCalculated {
			continue
		}
		for period, amount := range row.Values {
			if totals[period] == nil {
				totals[period] = make(map[string]decimal.Decimal)
			}
			v := amount.Value
			if row.Category == CategoryUncategorized {
				// Uncategorized rows carry no uniform flow direction; summing
				// magnitudes would inflate the bucket when signs mix.
				v = amount.Signed()
			}
			totals[period][row.Category] = totals[period][row.Category].Add(v)
			if row.Subcategory != "" {
				if subtotals[period] == nil {
					subtotals[period] = make(map[string]map[string]decimal.Decimal)
				}
				if subtotals[period][row.Category] == nil {
					subtotals[period][row.Category] = make(map[string]decimal.Decimal)
				}
				subtotals[period][row.Category][row.Subcategory] =
					subtotals[period][row.Category][row.Subcategory].Add(v)
			}
		}
	}

	agg.Periods = make([]CanonicalPeriod, 0, len(periodSet))
	for p := range periodSet {
		agg.Periods = append(agg.Periods, p)
	}
	SortPeriods(agg.Periods)

	// YTD sums only the finest period kind present; adding quarter-total
	// columns on top of their months would double-count.
	ytdKind := finestKind(agg.Periods)

	for _, period := range agg.Periods {
		cat := totals[period]
		if cat == nil {
			cat = map[string]decimal.Decimal{}
		}
		pa := PeriodAnalysis{
			Period:           period,
			TotalsByCategory: cat,
			Subtotals:        subtotals[period],
			Derived:          deriveMetrics(cat),
		}
		agg.PeriodAnalysis = append(agg.PeriodAnalysis, pa)

		if period.Kind == ytdKind {
			for category, v := range cat {
				agg.YTDByCategory[category] = agg.YTDByCategory[category].Add(v)
			}
		}
	}

	agg.Warnings = append(agg.Warnings, checkDeclaredTotals(rows, agg)...)
	return agg
}

func finestKind(periods []CanonicalPeriod) PeriodKind {
	has := map[PeriodKind]bool{}
	for _, p := range periods {
		has[p.Kind] = true
	}
	switch {
	case has[PeriodMonth]:
		return PeriodMonth
	case has[PeriodQuarter]:
		return PeriodQuarter
	case has[PeriodYear]:
		return PeriodYear
	default:
		return PeriodLabel
	}
}

func deriveMetrics(totals map[string]decimal.Decimal) DerivedMetrics {
	gross := totals[CategoryRevenue].Add(totals[CategoryOtherIncome]).Sub(totals[CategoryCOGS])
	opex := decimal.Zero
	for _, c := range opexCategories {
		opex = opex.Add(totals[c])
	}
	ebitda := gross.Sub(opex)
	net := ebitda.Sub(totals[CategoryDepreciation]).Sub(totals[CategoryInterest]).Sub(totals[CategoryTaxes])
	return DerivedMetrics{GrossProfit: gross, EBITDA: ebitda, NetIncome: net}
}

// declaredMetric matches a total/calculated row name onto the derived metric
// it claims to be.
func declaredMetric(name string) string {
	n := normalizeName(name)
	switch {
	case strings.Contains(n, "%") || strings.Contains(n, "margin") || strings.Contains(n, "margen"):
		return "" // percent rows have no absolute counterpart
	case strings.Contains(n, "ebitda"):
		return "ebitda"
	case strings.Contains(n, "gross profit") || strings.Contains(n, "utilidad bruta"):
		return "gross_profit"
	case strings.Contains(n, "net income") || strings.Contains(n, "utilidad neta") ||
		strings.Contains(n, "ganancia neta") || strings.Contains(n, "resultado neto"):
		return "net_income"
	default:
		return ""
	}
}

// checkDeclaredTotals cross-checks source total/calculated rows against the
// recomputed values: category totals for isTotal rows with a category, and
// derived metrics for rows naming one. Recomputed sums win; discrepancies
// beyond tolerance are reported, never silently resolved.
func checkDeclaredTotals(rows []AccountRow, agg *Aggregation) []string {
	var warnings []string
	derivedByPeriod := make(map[CanonicalPeriod]DerivedMetrics, len(agg.PeriodAnalysis))
	totalsByPeriod := make(map[CanonicalPeriod]map[string]decimal.Decimal, len(agg.PeriodAnalysis))
	for _, pa := range agg.PeriodAnalysis {
		derivedByPeriod[pa.Period] = pa.Derived
		totalsByPeriod[pa.Period] = pa.TotalsByCategory
	}

	for _, row := range rows {
		if !row.IsTotal && !row.IsCalculated {
			continue
		}
		metric := declaredMetric(row.AccountName)
		for period, amount := range row.Values {
			// Derived metrics compare signed: a loss-making source declares
			// them negative and the sign rides in IsInflow. Category totals
			// stay on magnitudes, matching how the sums are built.
			declared := amount.Signed()
			var recomputed decimal.Decimal
			var label string
			switch {
			case metric == "ebitda":
				recomputed = derivedByPeriod[period].EBITDA
				label = "EBITDA"
			case metric == "gross_profit":
				recomputed = derivedByPeriod[period].GrossProfit
				label = "gross profit"
			case metric == "net_income":
				recomputed = derivedByPeriod[period].NetIncome
				label = "net income"
			case row.IsTotal && row.Category != CategoryUncategorized:
				declared = amount.Value
				recomputed = totalsByPeriod[period][row.Category]
				label = row.Category + " total"
			default:
				continue
			}
			if !withinTolerance(declared, recomputed) {
				warnings = append(warnings, fmt.Sprintf(
					"%s %s: declared %s differs from recomputed %s (row %q)",
					period.Key(), label, declared.StringFixed(2), recomputed.StringFixed(2), row.AccountName))
			}
		}
	}
	return warnings
}

func withinTolerance(declared, recomputed decimal.Decimal) bool {
	diff := declared.Sub(recomputed).Abs()
	if diff.LessThanOrEqual(consistencyAbs) {
		return true
	}
	rel := decimal.NewFromFloat(consistencyRel)
	bound := recomputed.Abs().Mul(rel)
	return diff.LessThanOrEqual(bound)
}

// RangeSum sums one category across a chronological period range, inclusive.
func (a *Aggregation) RangeSum(category string, from, to CanonicalPeriod) decimal.Decimal {
	sum := decimal.Zero
	for _, pa := range a.PeriodAnalysis {
		if pa.Period.Before(from) || to.Before(pa.Period) {
			continue
		}
		sum = sum.Add(pa.TotalsByCategory[category])
	}
	return sum
}

// GrowthRate returns (current-previous)/previous for a category between two
// consecutive analysis entries, or false when undefined.
func (a *Aggregation) GrowthRate(category string, idx int) (decimal.Decimal, bool) {
	if idx <= 0 || idx >= len(a.PeriodAnalysis) {
		return decimal.Zero, false
	}
	prev := a.PeriodAnalysis[idx-1].TotalsByCategory[category]
	cur := a.PeriodAnalysis[idx].TotalsByCategory[category]
	if prev.IsZero() {
		return decimal.Zero, false
	}
	return cur.Sub(prev).Div(prev), true
}
