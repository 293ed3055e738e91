package finparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWorkbookCSV(t *testing.T) {
	data := []byte("Concepto,Ene-24,Feb-24\nVentas,1000,1100\nCosto,#REF!,-300\n")
	sheets, err := DecodeWorkbook(data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	grid := sheets[0].Grid
	require.Len(t, grid, 3)

	cell := grid.CellAt(1, 1)
	assert.True(t, cell.IsNumber)
	assert.Equal(t, float64(1000), cell.Number)

	// Error literals are normalized to empty cells at decode time.
	assert.True(t, grid.CellAt(2, 1).IsEmpty())
	assert.True(t, grid.CellAt(2, 2).IsNumber)
}

func TestDecodeWorkbookEmpty(t *testing.T) {
	_, err := DecodeWorkbook(nil)
	require.Error(t, err)
	var serr *StructuralError
	assert.ErrorAs(t, err, &serr)
}

func TestDecodeWorkbookRaggedCSV(t *testing.T) {
	data := []byte("a,b,c\nonly-one\nx,y\n")
	sheets, err := DecodeWorkbook(data)
	require.NoError(t, err)
	grid := sheets[0].Grid
	assert.Len(t, grid[1], 1)
	// Out-of-range reads come back empty instead of panicking.
	assert.True(t, grid.CellAt(1, 2).IsEmpty())
	assert.True(t, grid.CellAt(99, 0).IsEmpty())
	assert.True(t, grid.CellAt(-1, -1).IsEmpty())
}

func TestMakeCellTyping(t *testing.T) {
	c := makeCell("  1234.5 ")
	assert.True(t, c.IsNumber)
	assert.Equal(t, 1234.5, c.Number)

	c = makeCell("(1.234,56)")
	assert.False(t, c.IsNumber)
	assert.Equal(t, "(1.234,56)", c.Raw)

	assert.True(t, makeCell("#DIV/0!").IsEmpty())
	assert.True(t, makeCell("   ").IsEmpty())
}
