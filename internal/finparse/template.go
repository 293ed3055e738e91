package finparse

import (
	"context"
	"fmt"
	"strings"
)

// GridFingerprint computes the structural identity of a grid at a given
// header row: ordered header texts plus the column count.
func GridFingerprint(grid RawGrid, headerRowIndex int) Fingerprint {
	fp := Fingerprint{}
	if headerRowIndex < 0 || headerRowIndex >= len(grid) {
		return fp
	}
	row := grid[headerRowIndex]
	fp.ColumnCount = len(row)
	fp.HeaderTexts = make([]string, 0, len(row))
	for _, c := range row {
		fp.HeaderTexts = append(fp.HeaderTexts, normalizeName(c.Raw))
	}
	return fp
}

// findFingerprintRow searches the header scan window for a row matching the
// template fingerprint.
func findFingerprintRow(grid RawGrid, want Fingerprint) int {
	limit := headerScanWindow
	if limit > len(grid) {
		limit = len(grid)
	}
	for i := 0; i < limit; i++ {
		if GridFingerprint(grid, i).Equal(want) {
			return i
		}
	}
	return -1
}

// ApplyTemplate replays a previously confirmed mapping against a new grid
// assumed to share its layout. The template is a value object: nothing here
// mutates it. On structural mismatch a report is returned instead of rows;
// the caller decides whether to fall back to full detection.
func ApplyTemplate(ctx context.Context, tpl *MappingTemplate, grid RawGrid, opts ParseOptions) (*ParseResult, *MismatchReport) {
	headerIdx := findFingerprintRow(grid, tpl.Fingerprint)
	if headerIdx < 0 {
		got := Fingerprint{}
		if detected, _, err := DetectStructure(grid, opts.Locale); err == nil {
			got = GridFingerprint(grid, detected.HeaderRowIndex)
		} else if len(grid) > 0 {
			got = GridFingerprint(grid, 0)
		}
		report := &MismatchReport{
			TemplateFingerprint: tpl.Fingerprint,
			GridFingerprint:     got,
		}
		if got.ColumnCount != tpl.Fingerprint.ColumnCount {
			report.Reasons = append(report.Reasons,
				fmt.Sprintf("column count differs: template %d, grid %d", tpl.Fingerprint.ColumnCount, got.ColumnCount))
		}
		if !headerTextsEqual(got.HeaderTexts, tpl.Fingerprint.HeaderTexts) {
			report.Reasons = append(report.Reasons, "header row text does not match template fingerprint")
		}
		if len(report.Reasons) == 0 {
			report.Reasons = append(report.Reasons, "no row in scan window matches template fingerprint")
		}
		return nil, report
	}

	structure := &SheetStructure{
		HeaderRowIndex: headerIdx,
		ColumnRoles:    tpl.ColumnRoles,
		PeriodColumns:  tpl.PeriodColumns,
	}
	structure.DataStartRow, structure.DataEndRow = findDataRange(grid, headerIdx, tpl.PeriodColumns, opts.Locale)
	if structure.DataStartRow < 0 {
		return nil, &MismatchReport{
			Reasons:             []string{"template matched but grid has no data rows"},
			TemplateFingerprint: tpl.Fingerprint,
			GridFingerprint:     GridFingerprint(grid, headerIdx),
		}
	}

	result := extractRows(ctx, grid, structure, opts, tpl.Classifications)
	result.UsedTemplate = true
	result.Diagnostics.Confidence = computeConfidence(result, structure)
	if result.Currency == "" {
		result.Currency = tpl.Currency
	}
	return result, nil
}

func headerTextsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildTemplate derives a persistable template candidate from a confirmed
// parse result. The caller persists it only on explicit user confirmation.
func BuildTemplate(result *ParseResult, companyID string) *MappingTemplate {
	classifications := make(map[string]Classification, len(result.Rows))
	for _, row := range result.Rows {
		classifications[row.Signature()] = Classification{
			Category:     row.Category,
			Subcategory:  row.Subcategory,
			IsTotal:      row.IsTotal,
			IsCalculated: row.IsCalculated,
		}
	}
	return &MappingTemplate{
		CompanyID:       companyID,
		StatementType:   result.StatementType,
		Fingerprint:     result.fingerprint(),
		ColumnRoles:     result.Structure.ColumnRoles,
		PeriodColumns:   result.Structure.PeriodColumns,
		Classifications: classifications,
		Currency:        result.Currency,
	}
}

func (r *ParseResult) fingerprint() Fingerprint {
	if r.Structure == nil {
		return Fingerprint{}
	}
	return r.sourceFingerprint
}

// sanity guard used by tests; exported behavior goes through BuildTemplate.
func fingerprintKey(fp Fingerprint) string {
	return fmt.Sprintf("%d|%s", fp.ColumnCount, strings.Join(fp.HeaderTexts, "\x1f"))
}
