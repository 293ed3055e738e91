package finparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func templateFixtureGrid() RawGrid {
	return gridOf(
		[]string{"Account", "Jan-25", "Feb-25"},
		[]string{"Revenue", "1000", "1100"},
		[]string{"Rent", "(200)", "(210)"},
		[]string{"Widget Rework", "50", "55"},
	)
}

func templateFixtureOptions() ParseOptions {
	return ParseOptions{Locale: "en-US", StatementType: StatementPnL, Currency: "MXN"}
}

func TestBuildAndApplyTemplateRoundTrip(t *testing.T) {
	ctx := context.Background()
	grid := templateFixtureGrid()
	opts := templateFixtureOptions()

	first, err := ParseStatement(ctx, grid, opts)
	require.NoError(t, err)
	require.Len(t, first.Rows, 3)

	tpl := BuildTemplate(first, "company-1")
	assert.Equal(t, "company-1", tpl.CompanyID)
	assert.Equal(t, StatementPnL, tpl.StatementType)
	assert.Equal(t, 3, tpl.Fingerprint.ColumnCount)
	assert.Contains(t, tpl.Classifications, "revenue")
	assert.Contains(t, tpl.Classifications, "widget rework")

	replayed, mismatch := ApplyTemplate(ctx, tpl, grid, opts)
	require.Nil(t, mismatch)
	require.NotNil(t, replayed)
	assert.True(t, replayed.UsedTemplate)
	require.Len(t, replayed.Rows, 3)
	for i := range first.Rows {
		assert.Equal(t, first.Rows[i].Category, replayed.Rows[i].Category)
		assert.Equal(t, first.Rows[i].Values, replayed.Rows[i].Values)
	}
}

func TestApplyTemplateClassificationOverride(t *testing.T) {
	ctx := context.Background()
	grid := templateFixtureGrid()
	opts := templateFixtureOptions()

	first, err := ParseStatement(ctx, grid, opts)
	require.NoError(t, err)
	assert.Equal(t, CategoryUncategorized, first.Rows[2].Category)

	tpl := BuildTemplate(first, "company-1")
	// A user correction recorded on the template wins over rule matching.
	tpl.Classifications["widget rework"] = Classification{Category: CategoryCOGS, Subcategory: "rework"}

	replayed, mismatch := ApplyTemplate(ctx, tpl, grid, opts)
	require.Nil(t, mismatch)
	assert.Equal(t, CategoryCOGS, replayed.Rows[2].Category)
	assert.Equal(t, "rework", replayed.Rows[2].Subcategory)
	// Expense direction follows the corrected category.
	assert.False(t, replayed.Rows[2].Values[MonthPeriod(2025, 1)].IsInflow)
}

func TestApplyTemplateFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	opts := templateFixtureOptions()

	first, err := ParseStatement(ctx, templateFixtureGrid(), opts)
	require.NoError(t, err)
	tpl := BuildTemplate(first, "company-1")

	changed := gridOf(
		[]string{"Account", "Jan-25", "Feb-25", "Mar-25"},
		[]string{"Revenue", "1000", "1100", "1200"},
	)
	result, mismatch := ApplyTemplate(ctx, tpl, changed, opts)
	assert.Nil(t, result)
	require.NotNil(t, mismatch)
	assert.Equal(t, tpl.Fingerprint, mismatch.TemplateFingerprint)
	assert.NotEmpty(t, mismatch.Reasons)
	assert.Contains(t, mismatch.Reasons[0], "column count")
}

func TestParseStatementSurfacesMismatchWithoutGuessing(t *testing.T) {
	ctx := context.Background()
	opts := templateFixtureOptions()

	first, err := ParseStatement(ctx, templateFixtureGrid(), opts)
	require.NoError(t, err)
	tpl := BuildTemplate(first, "company-1")

	changed := gridOf(
		[]string{"Cuenta", "Mar-25", "Abr-25"},
		[]string{"Ventas", "900", "950"},
	)
	opts.Template = tpl
	result, err := ParseStatement(ctx, changed, opts)
	require.NoError(t, err)
	require.NotNil(t, result.Mismatch)
	assert.Empty(t, result.Rows)
	assert.False(t, result.UsedTemplate)
	require.NotEmpty(t, result.Diagnostics.Warnings)
	assert.Contains(t, result.Diagnostics.Warnings[0], "fingerprint mismatch")
}

func TestApplyTemplateDoesNotMutateTemplate(t *testing.T) {
	ctx := context.Background()
	opts := templateFixtureOptions()

	first, err := ParseStatement(ctx, templateFixtureGrid(), opts)
	require.NoError(t, err)
	tpl := BuildTemplate(first, "company-1")
	before := fingerprintKey(tpl.Fingerprint)
	nCls := len(tpl.Classifications)

	_, _ = ApplyTemplate(ctx, tpl, templateFixtureGrid(), opts)
	_, _ = ApplyTemplate(ctx, tpl, gridOf([]string{"x"}), opts)

	assert.Equal(t, before, fingerprintKey(tpl.Fingerprint))
	assert.Len(t, tpl.Classifications, nCls)
}
