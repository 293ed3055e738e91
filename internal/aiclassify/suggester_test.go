package aiclassify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinReportsSaas/internal/finparse"
)

func TestParseSuggestionPlainJSON(t *testing.T) {
	cls, err := parseSuggestion(`{"category": "cogs", "subcategory": "freight"}`)
	require.NoError(t, err)
	assert.Equal(t, finparse.CategoryCOGS, cls.Category)
	assert.Equal(t, "freight", cls.Subcategory)
}

func TestParseSuggestionFencedJSON(t *testing.T) {
	raw := "```json\n{\"category\": \"personnel\", \"subcategory\": \"\"}\n```"
	cls, err := parseSuggestion(raw)
	require.NoError(t, err)
	assert.Equal(t, finparse.CategoryPersonnel, cls.Category)
}

func TestParseSuggestionSurroundingProse(t *testing.T) {
	raw := "Sure! Here is the classification:\n{\"category\": \"Taxes\"}\nHope this helps."
	cls, err := parseSuggestion(raw)
	require.NoError(t, err)
	assert.Equal(t, finparse.CategoryTaxes, cls.Category)
}

func TestParseSuggestionUnknownCategory(t *testing.T) {
	_, err := parseSuggestion(`{"category": "miscellaneous_stuff"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestParseSuggestionGarbage(t *testing.T) {
	_, err := parseSuggestion("I could not classify this item.")
	assert.Error(t, err)
}

func TestBuildPromptIncludesNameAndContext(t *testing.T) {
	p := buildPrompt("Gizmo Refurbishing", []string{"Ventas", "Costo de Ventas"})
	assert.Contains(t, p, "Gizmo Refurbishing")
	assert.Contains(t, p, "Costo de Ventas")
	for _, cat := range categoryList {
		assert.Contains(t, p, cat)
	}
}

func TestBuildPromptCapsContext(t *testing.T) {
	ctxLines := make([]string, 100)
	for i := range ctxLines {
		ctxLines[i] = "line"
	}
	p := buildPrompt("X", ctxLines)
	assert.Equal(t, 30, strings.Count(p, "- line\n"))
}
