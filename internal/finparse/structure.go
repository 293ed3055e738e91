package finparse

import (
	"regexp"
	"strings"
)

// headerScanWindow bounds how deep into the sheet the header row is searched.
// Real statements put titles, company names, and currency notes above the
// header, but never more than a handful of rows.
const headerScanWindow = 10

var accountCodeRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-.]{0,11}$`)

// DetectStructure scans a raw grid and locates the header row, the data row
// range, and the role of every column. It returns a StructuralError when no
// header row resolves any period or when no data rows follow it.
func DetectStructure(grid RawGrid, locale string) (*SheetStructure, []string, error) {
	if len(grid) == 0 {
		return nil, nil, &StructuralError{Reason: "empty grid"}
	}

	headerIdx, periodCols := findHeaderRow(grid)
	if headerIdx < 0 {
		return nil, nil, &StructuralError{Reason: "no parseable period header row found"}
	}

	roles, periodCols := assignColumnRoles(grid, headerIdx, periodCols)

	var warnings []string
	for _, pc := range periodCols {
		if pc.LowConfidence {
			warnings = append(warnings, "unrecognized period header kept verbatim: "+pc.Period.Label)
		}
	}

	dataStart, dataEnd := findDataRange(grid, headerIdx, periodCols, locale)
	if dataStart < 0 {
		return nil, nil, &StructuralError{Reason: "no data rows found below header"}
	}

	return &SheetStructure{
		HeaderRowIndex: headerIdx,
		DataStartRow:   dataStart,
		DataEndRow:     dataEnd,
		ColumnRoles:    roles,
		PeriodColumns:  periodCols,
	}, warnings, nil
}

// findHeaderRow picks the row in the scan window that resolves the most
// period headers with confidence. Low-confidence labels don't score; they
// only ride along on the winning row.
func findHeaderRow(grid RawGrid) (int, []PeriodColumn) {
	bestIdx := -1
	bestScore := 0
	var bestCols []PeriodColumn

	limit := headerScanWindow
	if limit > len(grid) {
		limit = len(grid)
	}
	for i := 0; i < limit; i++ {
		cols, score := resolveHeaderRow(grid[i])
		if score > bestScore {
			bestScore = score
			bestIdx = i
			bestCols = cols
		}
	}
	if bestScore == 0 {
		return -1, nil
	}
	return bestIdx, bestCols
}

// resolveHeaderRow resolves every cell in a candidate header row, tracking
// currency sections across boundary markers. The score counts confidently
// resolved periods only.
func resolveHeaderRow(row []Cell) ([]PeriodColumn, int) {
	var cols []PeriodColumn
	score := 0
	section := ""
	for idx, cell := range row {
		if cell.IsEmpty() {
			continue
		}
		res := ResolvePeriod(cell, idx)
		if res.Boundary {
			section = res.Currency
			continue
		}
		if !res.OK {
			continue
		}
		if !res.LowConfidence {
			score++
		}
		cols = append(cols, PeriodColumn{
			ColumnIndex:     idx,
			Period:          res.Period,
			CurrencySection: section,
			LowConfidence:   res.LowConfidence,
		})
	}
	return cols, score
}

// assignColumnRoles tags non-period columns by sampling the data below the
// header: the leftmost text-heavy, numerically sparse column is the account
// name; a column of short alphanumeric tokens is the account code; the rest
// are ignored. Low-confidence label columns whose data is text-heavy are
// reclaimed from the period set first, so a "Concepto" or "Account" header
// never swallows the name column.
func assignColumnRoles(grid RawGrid, headerIdx int, periodCols []PeriodColumn) (map[int]ColumnRole, []PeriodColumn) {
	kept := periodCols[:0:0]
	for _, pc := range periodCols {
		if pc.LowConfidence {
			_, numCount, _, samples := sampleColumn(grid, headerIdx+1, pc.ColumnIndex)
			if samples == 0 || numCount*2 < samples {
				continue
			}
		}
		kept = append(kept, pc)
	}
	periodCols = kept

	roles := make(map[int]ColumnRole)
	isPeriod := make(map[int]bool, len(periodCols))
	for _, pc := range periodCols {
		roles[pc.ColumnIndex] = RolePeriod
		isPeriod[pc.ColumnIndex] = true
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	nameAssigned := false
	codeAssigned := false
	for col := 0; col < width; col++ {
		if isPeriod[col] {
			continue
		}
		textCount, numCount, codeCount, samples := sampleColumn(grid, headerIdx+1, col)
		if samples == 0 {
			roles[col] = RoleIgnore
			continue
		}
		switch {
		// Codes only make sense to the left of the name column: short
		// alphanumeric tokens found after it are noise.
		case !nameAssigned && !codeAssigned && codeCount*2 >= samples && textCount > 0:
			roles[col] = RoleAccountCode
			codeAssigned = true
		case !nameAssigned && textCount > numCount && textCount*2 >= samples:
			roles[col] = RoleAccountName
			nameAssigned = true
		default:
			roles[col] = RoleIgnore
		}
	}
	return roles, periodCols
}

// sampleColumn inspects up to 40 data cells in a column and counts text
// cells, numeric cells, and short alphanumeric code-like tokens.
func sampleColumn(grid RawGrid, fromRow, col int) (textCount, numCount, codeCount, samples int) {
	for r := fromRow; r < len(grid) && samples < 40; r++ {
		cell := grid.CellAt(r, col)
		if cell.IsEmpty() {
			continue
		}
		samples++
		if cell.IsNumber {
			numCount++
			continue
		}
		textCount++
		tok := strings.TrimSpace(cell.Raw)
		if len(tok) <= 12 && !strings.Contains(tok, " ") && accountCodeRe.MatchString(tok) && strings.IndexFunc(tok, isDigit) >= 0 {
			codeCount++
		}
	}
	return
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// findDataRange locates the first row at or below the header with a
// parseable numeric value in any period column, and the last such row.
// Embedded blank rows do not terminate the block.
func findDataRange(grid RawGrid, headerIdx int, periodCols []PeriodColumn, locale string) (int, int) {
	start, end := -1, -1
	for r := headerIdx + 1; r < len(grid); r++ {
		if grid.rowIsEmpty(r) {
			continue
		}
		hasAmount := false
		for _, pc := range periodCols {
			cell := grid.CellAt(r, pc.ColumnIndex)
			if cell.IsEmpty() {
				continue
			}
			if res := ParseAmountCell(cell, locale); res.IsValid {
				hasAmount = true
				break
			}
		}
		if hasAmount {
			if start < 0 {
				start = r
			}
			// end is the last row carrying an amount; label-only rows between
			// amounts stay inside the range, trailing footers fall outside it.
			end = r
		}
	}
	return start, end
}
