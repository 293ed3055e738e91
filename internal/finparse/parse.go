package finparse

import (
	"context"
	"strings"
)

// ParseOptions carries everything one parse invocation needs. The pipeline
// itself is stateless: the same grid and options always produce the same
// result.
type ParseOptions struct {
	Locale        string
	StatementType string
	Currency      string // base/local currency for columns before any section boundary
	Taxonomy      *Taxonomy
	Suggest       SuggestFunc      // optional AI fallback; nil disables it
	Template      *MappingTemplate // optional confirmed mapping to replay
}

// ParseStatement runs the full extraction pipeline on one sheet: template
// replay when a template is supplied and fits, otherwise structure detection
// plus rule-based classification. Warnings accumulate on the result; only
// structural failures abort.
func ParseStatement(ctx context.Context, grid RawGrid, opts ParseOptions) (*ParseResult, error) {
	if opts.StatementType == "" {
		opts.StatementType = StatementPnL
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = DefaultTaxonomy()
	}

	if opts.Template != nil {
		result, mismatch := ApplyTemplate(ctx, opts.Template, grid, opts)
		if mismatch != nil {
			// The pipeline does not guess past a fingerprint mismatch. The
			// caller sees the report and decides whether to re-run without
			// the template.
			res := &ParseResult{
				StatementType: opts.StatementType,
				Mismatch:      mismatch,
			}
			res.Diagnostics.Warnings = append(res.Diagnostics.Warnings,
				"mapping template fingerprint mismatch: "+strings.Join(mismatch.Reasons, "; "))
			return res, nil
		}
		return result, nil
	}

	structure, warnings, err := DetectStructure(grid, opts.Locale)
	if err != nil {
		return nil, err
	}

	result := extractRows(ctx, grid, structure, opts, nil)
	result.Diagnostics.Warnings = append(warnings, result.Diagnostics.Warnings...)
	result.Diagnostics.Confidence = computeConfidence(result, structure)
	return result, nil
}

// extractRows walks the detected data range and builds normalized account
// rows. templateCls, when present, overrides rule and AI classification for
// matching row signatures.
func extractRows(ctx context.Context, grid RawGrid, structure *SheetStructure, opts ParseOptions, templateCls map[string]Classification) *ParseResult {
	result := &ParseResult{
		StatementType:     opts.StatementType,
		Currency:          opts.Currency,
		Structure:         structure,
		sourceFingerprint: GridFingerprint(grid, structure.HeaderRowIndex),
	}

	nameCol := structure.AccountNameColumn()
	codeCol := structure.AccountCodeColumn()

	// When the sheet mirrors the numbers in a second currency section, only
	// the base-currency columns carry values; the mirror would collide on the
	// same period keys.
	valueCols := make([]PeriodColumn, 0, len(structure.PeriodColumns))
	skippedSection := ""
	for _, pc := range structure.PeriodColumns {
		if pc.CurrencySection != "" && opts.Currency != "" && !strings.EqualFold(pc.CurrencySection, opts.Currency) {
			skippedSection = pc.CurrencySection
			continue
		}
		valueCols = append(valueCols, pc)
	}
	if len(valueCols) == 0 {
		valueCols = structure.PeriodColumns
		skippedSection = ""
	}
	if skippedSection != "" {
		result.Diagnostics.Warnf("secondary currency section %s retained for display only", skippedSection)
	}

	var docContext []string
	for r := structure.DataStartRow; r <= structure.DataEndRow && r < len(grid); r++ {
		if cell := grid.CellAt(r, nameCol); !cell.IsEmpty() {
			docContext = append(docContext, cell.Raw)
		}
	}

	for r := structure.DataStartRow; r <= structure.DataEndRow && r < len(grid); r++ {
		if grid.rowIsEmpty(r) {
			continue
		}
		name := strings.TrimSpace(grid.CellAt(r, nameCol).Raw)
		code := ""
		if codeCol >= 0 {
			code = strings.TrimSpace(grid.CellAt(r, codeCol).Raw)
		}
		// Decorative label-only rows carry no identifying data at all; rows
		// with a name but no amounts are still kept (section totals sometimes
		// arrive later via formulas).
		if name == "" && code == "" {
			continue
		}

		var cls Classification
		sig := RowSignature(code, name)
		if templateCls != nil {
			if c, ok := templateCls[sig]; ok {
				cls = c
			} else {
				cls = Classify(ctx, name, opts.Taxonomy, docContext, nil)
			}
		} else {
			cls = Classify(ctx, name, opts.Taxonomy, docContext, opts.Suggest)
		}
		if cls.Category == "" {
			cls.Category = CategoryUncategorized
		}

		row := AccountRow{
			RowIndex:     r,
			AccountCode:  code,
			AccountName:  name,
			Category:     cls.Category,
			Subcategory:  cls.Subcategory,
			IsTotal:      cls.IsTotal,
			IsCalculated: cls.IsCalculated,
			Values:       make(map[CanonicalPeriod]Amount, len(structure.PeriodColumns)),
		}

		hasValue := false
		for _, pc := range valueCols {
			cell := grid.CellAt(r, pc.ColumnIndex)
			if cell.IsEmpty() {
				continue
			}
			parsed := ParseAmountCell(cell, opts.Locale)
			if !parsed.IsValid {
				result.Diagnostics.Warnf("row %d (%s): unparseable amount %q in column %d",
					r+1, name, cell.Raw, pc.ColumnIndex+1)
				continue
			}
			row.Values[pc.Period] = normalizeAmount(parsed, cls)
			hasValue = true
		}
		if !hasValue && name == "" {
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	if len(result.Rows) == 0 {
		result.Diagnostics.Errors = append(result.Diagnostics.Errors, "no account rows extracted")
	}
	return result
}

// ReclassifyRow applies a user correction to an already parsed row and redoes
// the flow direction for the new category class. Totals and calculated rows
// keep the direction the source carried.
func ReclassifyRow(row *AccountRow, cls Classification) {
	row.Category = cls.Category
	row.Subcategory = cls.Subcategory
	row.IsTotal = cls.IsTotal
	row.IsCalculated = cls.IsCalculated
	if cls.Category == CategoryUncategorized || cls.IsTotal || cls.IsCalculated {
		return
	}
	inflow := inflowCategories[cls.Category]
	for period, amount := range row.Values {
		amount.IsInflow = inflow
		row.Values[period] = amount
	}
}

// normalizeAmount converts a raw parsed value to the consistent accounting
// sign: the magnitude plus a flow direction derived from the category class.
// Uncategorized rows keep the source sign as the direction.
func normalizeAmount(parsed AmountResult, cls Classification) Amount {
	v := parsed.Value
	switch {
	case cls.Category == CategoryUncategorized || cls.IsTotal || cls.IsCalculated:
		return Amount{Value: v.Abs(), IsInflow: v.Sign() >= 0}
	case inflowCategories[cls.Category]:
		return Amount{Value: v.Abs(), IsInflow: true}
	default:
		return Amount{Value: v.Abs(), IsInflow: false}
	}
}

// computeConfidence blends three signals: how many period headers resolved
// confidently, how many rows got a real category, and how many rows produced
// at least one value.
func computeConfidence(result *ParseResult, structure *SheetStructure) float64 {
	if len(structure.PeriodColumns) == 0 || len(result.Rows) == 0 {
		return 0
	}
	confident := 0
	for _, pc := range structure.PeriodColumns {
		if !pc.LowConfidence {
			confident++
		}
	}
	periodScore := float64(confident) / float64(len(structure.PeriodColumns))

	categorized := 0
	valued := 0
	for _, row := range result.Rows {
		if row.Category != CategoryUncategorized {
			categorized++
		}
		if len(row.Values) > 0 {
			valued++
		}
	}
	catScore := float64(categorized) / float64(len(result.Rows))
	valScore := float64(valued) / float64(len(result.Rows))

	return (periodScore + catScore + valScore) / 3
}
