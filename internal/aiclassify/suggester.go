package aiclassify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"FinReportsSaas/internal/finparse"
)

// DefaultModelName is the Gemini model used for account classification.
const DefaultModelName = "gemini-2.0-flash"

var categoryList = []string{
	finparse.CategoryRevenue,
	finparse.CategoryCOGS,
	finparse.CategoryPersonnel,
	finparse.CategoryProfessional,
	finparse.CategorySalesMarketing,
	finparse.CategoryFacilities,
	finparse.CategoryDepreciation,
	finparse.CategoryInterest,
	finparse.CategoryTaxes,
	finparse.CategoryOtherIncome,
	finparse.CategoryOtherExpense,
	finparse.CategoryUncategorized,
}

var validCategories = func() map[string]bool {
	m := make(map[string]bool, len(categoryList))
	for _, c := range categoryList {
		m[c] = true
	}
	return m
}()

// Suggester classifies account names the keyword taxonomy could not place.
// It is wired into the parse pipeline as a finparse.SuggestFunc.
type Suggester struct {
	client *genai.Client
	model  string
}

// NewSuggester builds a Gemini-backed suggester, or (nil, nil) when no
// GEMINI_API_KEY is configured so callers can run without the AI fallback.
func NewSuggester(ctx context.Context) (*Suggester, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("aiclassify: create genai client: %w", err)
	}
	return &Suggester{client: client, model: DefaultModelName}, nil
}

// Suggest implements finparse.SuggestFunc.
func (s *Suggester) Suggest(ctx context.Context, accountName string, docContext []string) (finparse.Classification, error) {
	prompt := buildPrompt(accountName, docContext)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return finparse.Classification{}, fmt.Errorf("aiclassify: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return finparse.Classification{}, errors.New("aiclassify: empty response from model")
	}
	return parseSuggestion(raw)
}

func buildPrompt(accountName string, docContext []string) string {
	var b strings.Builder
	b.WriteString("You classify financial statement line items into fixed categories.\n\n")
	b.WriteString("Categories:\n")
	for _, cat := range categoryList {
		b.WriteString("- " + cat + "\n")
	}
	b.WriteString("\nAccount name to classify: " + accountName + "\n")
	if len(docContext) > 0 {
		b.WriteString("\nOther line items from the same statement, for context:\n")
		limit := len(docContext)
		if limit > 30 {
			limit = 30
		}
		for _, line := range docContext[:limit] {
			b.WriteString("- " + line + "\n")
		}
	}
	b.WriteString("\nReturn ONLY a raw JSON object, no code fences, with fields:\n")
	b.WriteString(`{"category": string, "subcategory": string or ""}` + "\n")
	b.WriteString("The category must be exactly one of the listed identifiers.\n")
	return b.String()
}

// parseSuggestion decodes the model output, tolerating code fences and
// surrounding prose, and rejects categories outside the fixed vocabulary.
func parseSuggestion(raw string) (finparse.Classification, error) {
	clean := cleanModelJSON(raw)
	var out struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return finparse.Classification{}, fmt.Errorf("aiclassify: unmarshal suggestion: %w", err)
	}
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	if !validCategories[out.Category] {
		return finparse.Classification{}, fmt.Errorf("aiclassify: model returned unknown category %q", out.Category)
	}
	return finparse.Classification{
		Category:    out.Category,
		Subcategory: strings.TrimSpace(out.Subcategory),
	}, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
