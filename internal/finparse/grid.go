package finparse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// Excel error literals are normalized to empty cells at ingestion.
var errorLiterals = map[string]bool{
	"#REF!": true, "#DIV/0!": true, "#N/A": true, "#NAME?": true,
	"#VALUE!": true, "#NULL!": true, "#NUM!": true, "#GETTING_DATA": true,
}

// DecodeWorkbook turns uploaded bytes into named RawGrids. It tries xlsx
// (excelize) first, then legacy xls, then csv, mirroring how statement
// uploads have always been accepted. The returned grids are immutable copies
// of the file content; the caller owns the bytes.
func DecodeWorkbook(data []byte) ([]Sheet, error) {
	if len(data) == 0 {
		return nil, &StructuralError{Reason: "empty file"}
	}

	if sheets, err := decodeXLSX(data); err == nil {
		return sheets, nil
	}
	if sheets, err := decodeXLS(data); err == nil {
		return sheets, nil
	}
	if sheets, err := decodeCSV(data); err == nil {
		return sheets, nil
	}
	return nil, errors.New("unsupported file: not valid xlsx, xls, or csv")
}

func decodeXLSX(data []byte) ([]Sheet, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer xl.Close()

	var sheets []Sheet
	for _, name := range xl.GetSheetList() {
		rows, err := xl.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Grid: gridFromStrings(rows)})
	}
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return sheets, nil
}

// decodeXLS handles legacy BIFF workbooks. xlsReader only opens file paths,
// so the bytes go through a temp file.
func decodeXLS(data []byte) ([]Sheet, error) {
	tmp, err := os.CreateTemp("", "finreports-*.xls")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	var sheets []Sheet
	for i := 0; i < book.GetNumberSheets(); i++ {
		sheet, err := book.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var rows [][]string
		for _, row := range sheet.GetRows() {
			var vals []string
			for _, col := range row.GetCols() {
				vals = append(vals, col.GetString())
			}
			rows = append(rows, vals)
		}
		sheets = append(sheets, Sheet{Name: sheet.GetName(), Grid: gridFromStrings(rows)})
	}
	if len(sheets) == 0 {
		return nil, errors.New("xls workbook has no sheets")
	}
	return sheets, nil
}

func decodeCSV(data []byte) ([]Sheet, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv has no rows")
	}
	return []Sheet{{Name: "Sheet1", Grid: gridFromStrings(rows)}}, nil
}

// gridFromStrings types each cell: error literals become empty, bare numbers
// keep their parsed value alongside the raw text.
func gridFromStrings(rows [][]string) RawGrid {
	grid := make(RawGrid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = makeCell(v)
		}
		grid[i] = cells
	}
	return grid
}

func makeCell(v string) Cell {
	s := strings.TrimSpace(strings.ReplaceAll(v, nbsp, " "))
	if s == "" || errorLiterals[strings.ToUpper(s)] {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Cell{Raw: s, Number: f, IsNumber: true}
	}
	return Cell{Raw: s}
}

// CellAt is a bounds-safe accessor; missing cells read as empty.
func (g RawGrid) CellAt(row, col int) Cell {
	if row < 0 || row >= len(g) {
		return Cell{}
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return Cell{}
	}
	return r[col]
}

// rowIsEmpty reports whether every cell in the row is empty. Blank rows
// inside a data block are intentional separators, not terminators.
func (g RawGrid) rowIsEmpty(row int) bool {
	if row < 0 || row >= len(g) {
		return true
	}
	for _, c := range g[row] {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
