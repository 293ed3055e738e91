package finparse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridOf(rows ...[]string) RawGrid {
	return gridFromStrings(rows)
}

func TestDetectStructureSpanishPnL(t *testing.T) {
	grid := gridOf(
		[]string{"Estado de Resultados - ACME"},
		[]string{""},
		[]string{"Concepto", "Ene-24", "Feb-24", "Mar-24", "Q1-2024 Total"},
		[]string{"Ventas Nacionales", "1000", "1100", "1200", "3300"},
		[]string{"Ventas Exportación", "500", "550", "600", "1650"},
		[]string{"TOTAL INGRESOS", "1500", "1650", "1800", "4950"},
		[]string{""},
		[]string{"Sueldos y Cargas", "(200,00)", "(210,00)", "(220,00)", "(630,00)"},
		[]string{"Preparado por Finanzas"},
	)

	st, warnings, err := DetectStructure(grid, "es-MX")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 2, st.HeaderRowIndex)
	assert.Equal(t, 3, st.DataStartRow)
	// The blank row at 6 stays inside the range; the footer at 8 falls off.
	assert.Equal(t, 7, st.DataEndRow)

	require.Len(t, st.PeriodColumns, 4)
	assert.Equal(t, MonthPeriod(2024, 1), st.PeriodColumns[0].Period)
	assert.Equal(t, MonthPeriod(2024, 2), st.PeriodColumns[1].Period)
	assert.Equal(t, MonthPeriod(2024, 3), st.PeriodColumns[2].Period)
	assert.Equal(t, QuarterPeriod(2024, 1), st.PeriodColumns[3].Period)

	assert.Equal(t, 0, st.AccountNameColumn())
	assert.Equal(t, -1, st.AccountCodeColumn())
}

func TestDetectStructureAccountCodeColumn(t *testing.T) {
	grid := gridOf(
		[]string{"Código", "Cuenta", "Jan-25", "Feb-25"},
		[]string{"R-4100", "Ventas", "1000", "1100"},
		[]string{"R-4200", "Servicios", "500", "520"},
		[]string{"C-5100", "Costo de Ventas", "(300)", "(310)"},
	)

	st, _, err := DetectStructure(grid, "en-US")
	require.NoError(t, err)
	assert.Equal(t, 0, st.HeaderRowIndex)
	assert.Equal(t, 0, st.AccountCodeColumn())
	assert.Equal(t, 1, st.AccountNameColumn())
	require.Len(t, st.PeriodColumns, 2)
}

func TestDetectStructureCurrencySections(t *testing.T) {
	grid := gridOf(
		[]string{"Concepto", "Ene-24", "Feb-24", "Dólares", "Ene-24", "Feb-24"},
		[]string{"Ventas", "1000", "1100", "", "50", "55"},
		[]string{"Costo", "(300)", "(320)", "", "(15)", "(16)"},
	)

	st, _, err := DetectStructure(grid, "es-MX")
	require.NoError(t, err)
	require.Len(t, st.PeriodColumns, 4)
	assert.Equal(t, "", st.PeriodColumns[0].CurrencySection)
	assert.Equal(t, "", st.PeriodColumns[1].CurrencySection)
	assert.Equal(t, "USD", st.PeriodColumns[2].CurrencySection)
	assert.Equal(t, "USD", st.PeriodColumns[3].CurrencySection)
}

func TestDetectStructureUnrecognizedHeaderWarns(t *testing.T) {
	grid := gridOf(
		[]string{"Account", "Jan-25", "Feb-25", "Adjustments"},
		[]string{"Revenue", "100", "110", "5"},
		[]string{"Rent", "(20)", "(20)", "0"},
	)

	st, warnings, err := DetectStructure(grid, "en-US")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Adjustments")

	// The label column stays a period column; the name column is reclaimed.
	require.Len(t, st.PeriodColumns, 3)
	assert.True(t, st.PeriodColumns[2].LowConfidence)
	assert.Equal(t, 0, st.AccountNameColumn())
}

func TestDetectStructureNoHeader(t *testing.T) {
	grid := gridOf(
		[]string{"Notas internas"},
		[]string{"Sin datos financieros"},
	)
	_, _, err := DetectStructure(grid, "es-MX")
	var serr *StructuralError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Reason, "header")
}

func TestDetectStructureNoDataRows(t *testing.T) {
	grid := gridOf(
		[]string{"Concepto", "Jan-25", "Feb-25"},
		[]string{"(sin movimientos)"},
	)
	_, _, err := DetectStructure(grid, "en-US")
	var serr *StructuralError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Reason, "data")
}

func TestDetectStructureEmptyGrid(t *testing.T) {
	_, _, err := DetectStructure(nil, "en-US")
	var serr *StructuralError
	require.True(t, errors.As(err, &serr))
}
