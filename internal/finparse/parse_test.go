package finparse

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanishPnLFixture() RawGrid {
	return gridOf(
		[]string{"ACME S.A. de C.V."},
		[]string{"Estado de Resultados"},
		[]string{""},
		[]string{"Concepto", "Ene-24", "Feb-24"},
		[]string{"Ventas Nacionales", "10000", "11000"},
		[]string{"Ventas Exportación", "500", "600"},
		[]string{"TOTAL INGRESOS", "10500", "11600"},
		[]string{"Costo de Ventas", "(4.000,00)", "(4.400,00)"},
		[]string{"Sueldos y Cargas", "(2.000,00)", "(2.100,00)"},
		[]string{"Utilidad Neta", "4500", "5100"},
		[]string{"Margen Neto %", "42,9%", "44,0%"},
		[]string{"Ajuste", "abc", "100"},
	)
}

func spanishPnLOptions() ParseOptions {
	return ParseOptions{Locale: "es-MX", StatementType: StatementPnL, Currency: "MXN"}
}

func TestParseStatementSpanishPnL(t *testing.T) {
	res, err := ParseStatement(context.Background(), spanishPnLFixture(), spanishPnLOptions())
	require.NoError(t, err)

	assert.Equal(t, StatementPnL, res.StatementType)
	assert.Equal(t, "MXN", res.Currency)
	assert.False(t, res.UsedTemplate)
	require.Len(t, res.Rows, 8)

	jan := MonthPeriod(2024, 1)
	byName := make(map[string]AccountRow, len(res.Rows))
	for _, r := range res.Rows {
		byName[r.AccountName] = r
	}

	ventas := byName["Ventas Nacionales"]
	assert.Equal(t, CategoryRevenue, ventas.Category)
	assert.True(t, ventas.Values[jan].IsInflow)
	assert.True(t, ventas.Values[jan].Value.Equal(dec(10000)))

	cogs := byName["Costo de Ventas"]
	assert.Equal(t, CategoryCOGS, cogs.Category)
	assert.False(t, cogs.Values[jan].IsInflow)
	// Parenthesized source negatives normalize to a magnitude plus direction.
	assert.True(t, cogs.Values[jan].Value.Equal(dec(4000)))

	total := byName["TOTAL INGRESOS"]
	assert.True(t, total.IsTotal)
	assert.Equal(t, CategoryRevenue, total.Category)

	neta := byName["Utilidad Neta"]
	assert.True(t, neta.IsCalculated)

	margen := byName["Margen Neto %"]
	assert.True(t, margen.IsCalculated)
	assert.True(t, margen.Values[jan].Value.Equal(dec(42.9)))

	// The unparseable cell surfaces as a warning; the row survives with its
	// remaining values.
	require.NotEmpty(t, res.Diagnostics.Warnings)
	found := false
	for _, w := range res.Diagnostics.Warnings {
		if strings.Contains(w, "abc") && strings.Contains(w, "Ajuste") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Diagnostics.Warnings)
	assert.True(t, byName["Ajuste"].Values[MonthPeriod(2024, 2)].Value.Equal(dec(100)))

	assert.Greater(t, res.Diagnostics.Confidence, 0.7)
}

func TestParseStatementIsIdempotent(t *testing.T) {
	ctx := context.Background()
	grid := spanishPnLFixture()
	opts := spanishPnLOptions()

	first, err := ParseStatement(ctx, grid, opts)
	require.NoError(t, err)
	second, err := ParseStatement(ctx, grid, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	assert.Equal(t, first.Structure, second.Structure)
}

func TestParseThenAggregateEndToEnd(t *testing.T) {
	res, err := ParseStatement(context.Background(), spanishPnLFixture(), spanishPnLOptions())
	require.NoError(t, err)

	agg := Aggregate(res.Rows)
	require.Len(t, agg.PeriodAnalysis, 2)

	jan := agg.PeriodAnalysis[0]
	assert.Equal(t, MonthPeriod(2024, 1), jan.Period)
	assert.True(t, jan.TotalsByCategory[CategoryRevenue].Equal(dec(10500)))
	assert.True(t, jan.Derived.GrossProfit.Equal(dec(6500)))
	assert.True(t, jan.Derived.EBITDA.Equal(dec(4500)))
	assert.True(t, jan.Derived.NetIncome.Equal(dec(4500)))

	feb := agg.PeriodAnalysis[1]
	assert.True(t, feb.Derived.NetIncome.Equal(dec(5100)))

	// Declared totals and calculated rows all agree with the recomputed values.
	assert.Empty(t, agg.Warnings)

	assert.True(t, agg.YTDByCategory[CategoryRevenue].Equal(dec(22100)))
}

func TestParseStatementStructuralFailure(t *testing.T) {
	grid := gridOf(
		[]string{"solo texto"},
		[]string{"sin periodos"},
	)
	res, err := ParseStatement(context.Background(), grid, spanishPnLOptions())
	assert.Nil(t, res)
	var serr *StructuralError
	require.ErrorAs(t, err, &serr)
}

func TestParseStatementSuggesterFillsGaps(t *testing.T) {
	grid := gridOf(
		[]string{"Account", "Jan-25"},
		[]string{"Gizmo Refurbishing", "250"},
	)
	opts := ParseOptions{Locale: "en-US"}
	opts.Suggest = func(ctx context.Context, name string, docContext []string) (Classification, error) {
		return Classification{Category: CategoryCOGS}, nil
	}
	res, err := ParseStatement(context.Background(), grid, opts)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, CategoryCOGS, res.Rows[0].Category)
	assert.False(t, res.Rows[0].Values[MonthPeriod(2025, 1)].IsInflow)
}
