package finparse

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func row(name, category string, values map[CanonicalPeriod]float64) AccountRow {
	r := AccountRow{
		AccountName: name,
		Category:    category,
		Values:      make(map[CanonicalPeriod]Amount, len(values)),
	}
	inflow := inflowCategories[category]
	for p, v := range values {
		r.Values[p] = Amount{Value: dec(v), IsInflow: inflow}
	}
	return r
}

// declaredValues mirrors how total/calculated cells are normalized: the
// source sign moves into IsInflow and Value keeps the magnitude.
func declaredValues(values map[CanonicalPeriod]float64) map[CanonicalPeriod]Amount {
	out := make(map[CanonicalPeriod]Amount, len(values))
	for p, v := range values {
		d := dec(v)
		out[p] = Amount{Value: d.Abs(), IsInflow: d.Sign() >= 0}
	}
	return out
}

func totalRow(name, category string, values map[CanonicalPeriod]float64) AccountRow {
	return AccountRow{
		AccountName: name,
		Category:    category,
		IsTotal:     true,
		Values:      declaredValues(values),
	}
}

func calcRow(name string, values map[CanonicalPeriod]float64) AccountRow {
	return AccountRow{
		AccountName:  name,
		Category:     CategoryUncategorized,
		IsCalculated: true,
		Values:       declaredValues(values),
	}
}

func TestAggregateExcludesTotalRows(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Product Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100}),
		row("Service Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 50}),
		totalRow("TOTAL INGRESOS", CategoryRevenue, map[CanonicalPeriod]float64{jan: 150}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.PeriodAnalysis, 1)
	got := agg.PeriodAnalysis[0].TotalsByCategory[CategoryRevenue]
	assert.True(t, got.Equal(dec(150)), "want 150 got %s", got)
	assert.True(t, agg.YTDByCategory[CategoryRevenue].Equal(dec(150)))
	assert.Empty(t, agg.Warnings)
}

func TestAggregateDerivedMetrics(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 150}),
		row("Materials", CategoryCOGS, map[CanonicalPeriod]float64{jan: 60}),
		row("Payroll", CategoryPersonnel, map[CanonicalPeriod]float64{jan: 30}),
		row("Depreciation", CategoryDepreciation, map[CanonicalPeriod]float64{jan: 10}),
		row("Interest", CategoryInterest, map[CanonicalPeriod]float64{jan: 5}),
		row("Taxes", CategoryTaxes, map[CanonicalPeriod]float64{jan: 15}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.PeriodAnalysis, 1)
	d := agg.PeriodAnalysis[0].Derived
	assert.True(t, d.GrossProfit.Equal(dec(90)), "gross %s", d.GrossProfit)
	assert.True(t, d.EBITDA.Equal(dec(60)), "ebitda %s", d.EBITDA)
	assert.True(t, d.NetIncome.Equal(dec(30)), "net %s", d.NetIncome)
}

func TestAggregateDeclaredValueDiscrepancy(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 150}),
		row("Materials", CategoryCOGS, map[CanonicalPeriod]float64{jan: 60}),
		// Declared EBITDA agrees with the recomputed value: no warning.
		calcRow("EBITDA", map[CanonicalPeriod]float64{jan: 90}),
		// Declared net income is off by 15: recomputed wins, discrepancy flagged.
		calcRow("Utilidad Neta", map[CanonicalPeriod]float64{jan: 105}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.Warnings, 1)
	assert.Contains(t, agg.Warnings[0], "net income")
	assert.Contains(t, agg.Warnings[0], "105.00")
	assert.Contains(t, agg.Warnings[0], "90.00")
	// The calculated rows never entered the sums.
	assert.True(t, agg.PeriodAnalysis[0].Derived.NetIncome.Equal(dec(90)))
}

func TestAggregateNegativeDeclaredMetricMatches(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100}),
		row("Payroll", CategoryPersonnel, map[CanonicalPeriod]float64{jan: 150}),
		// A loss month: the source declares EBITDA as (50). Recomputed is
		// also -50, so the signed comparison must not flag it.
		calcRow("EBITDA", map[CanonicalPeriod]float64{jan: -50}),
	}
	agg := Aggregate(rows)
	assert.Empty(t, agg.Warnings)
	assert.True(t, agg.PeriodAnalysis[0].Derived.EBITDA.Equal(dec(-50)))
}

func TestAggregateNegativeDeclaredMetricDiscrepancy(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100}),
		row("Payroll", CategoryPersonnel, map[CanonicalPeriod]float64{jan: 150}),
		// Declared (40) against a recomputed -50: still a discrepancy.
		calcRow("Utilidad Neta", map[CanonicalPeriod]float64{jan: -40}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.Warnings, 1)
	assert.Contains(t, agg.Warnings[0], "net income")
	assert.Contains(t, agg.Warnings[0], "-40.00")
	assert.Contains(t, agg.Warnings[0], "-50.00")
}

func TestAggregateUncategorizedNetsMixedSigns(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		{
			AccountName: "Ajuste cambiario",
			Category:    CategoryUncategorized,
			Values:      map[CanonicalPeriod]Amount{jan: {Value: dec(100), IsInflow: true}},
		},
		{
			AccountName: "Partidas varias",
			Category:    CategoryUncategorized,
			Values:      map[CanonicalPeriod]Amount{jan: {Value: dec(40), IsInflow: false}},
		},
	}
	agg := Aggregate(rows)
	got := agg.PeriodAnalysis[0].TotalsByCategory[CategoryUncategorized]
	assert.True(t, got.Equal(dec(60)), "want 60 got %s", got)
	assert.True(t, agg.YTDByCategory[CategoryUncategorized].Equal(dec(60)))
}

func TestAggregateDeclaredCategoryTotalDiscrepancy(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Product Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100}),
		totalRow("Total Ventas", CategoryRevenue, map[CanonicalPeriod]float64{jan: 130}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.Warnings, 1)
	assert.Contains(t, agg.Warnings[0], "revenue total")
	assert.True(t, agg.PeriodAnalysis[0].TotalsByCategory[CategoryRevenue].Equal(dec(100)))
}

func TestAggregateToleranceAbsorbsRounding(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	rows := []AccountRow{
		row("Product Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100.04}),
		totalRow("Total Ventas", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100.50}),
	}
	agg := Aggregate(rows)
	assert.Empty(t, agg.Warnings)
}

func TestAggregateChronologicalPeriodsAndYTD(t *testing.T) {
	jan := MonthPeriod(2024, 1)
	feb := MonthPeriod(2024, 2)
	mar := MonthPeriod(2024, 3)
	q1 := QuarterPeriod(2024, 1)
	// Source column order interleaves the quarter total before the months.
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{
			q1: 60, feb: 20, jan: 10, mar: 30,
		}),
	}
	agg := Aggregate(rows)
	require.Len(t, agg.Periods, 4)
	assert.Equal(t, []CanonicalPeriod{jan, feb, mar, q1}, agg.Periods)
	// YTD sums months only; adding the quarter column would double-count.
	assert.True(t, agg.YTDByCategory[CategoryRevenue].Equal(dec(60)),
		"ytd %s", agg.YTDByCategory[CategoryRevenue])
}

func TestAggregateRangeSumAndGrowth(t *testing.T) {
	jan := MonthPeriod(2024, 1)
	feb := MonthPeriod(2024, 2)
	mar := MonthPeriod(2024, 3)
	rows := []AccountRow{
		row("Sales", CategoryRevenue, map[CanonicalPeriod]float64{jan: 100, feb: 150, mar: 120}),
	}
	agg := Aggregate(rows)

	sum := agg.RangeSum(CategoryRevenue, jan, feb)
	assert.True(t, sum.Equal(dec(250)), "sum %s", sum)

	g, ok := agg.GrowthRate(CategoryRevenue, 1)
	require.True(t, ok)
	assert.True(t, g.Equal(dec(0.5)), "growth %s", g)

	_, ok = agg.GrowthRate(CategoryRevenue, 0)
	assert.False(t, ok)
}

func TestAggregateSubtotals(t *testing.T) {
	jan := MonthPeriod(2025, 1)
	r1 := row("Engineers", CategoryPersonnel, map[CanonicalPeriod]float64{jan: 70})
	r1.Subcategory = "engineering"
	r2 := row("Support", CategoryPersonnel, map[CanonicalPeriod]float64{jan: 30})
	r2.Subcategory = "support"
	agg := Aggregate([]AccountRow{r1, r2})
	subs := agg.PeriodAnalysis[0].Subtotals[CategoryPersonnel]
	require.NotNil(t, subs)
	assert.True(t, subs["engineering"].Equal(dec(70)))
	assert.True(t, subs["support"].Equal(dec(30)))
	assert.True(t, agg.PeriodAnalysis[0].TotalsByCategory[CategoryPersonnel].Equal(dec(100)))
}
