package finparse

import (
	"context"
	"strings"
)

// Category identifiers. The taxonomy mapping keywords onto these is
// configuration data, not logic; DefaultTaxonomy ships the vocabulary the
// product was trained on but callers may replace it wholesale.
const (
	CategoryRevenue        = "revenue"
	CategoryCOGS           = "cogs"
	CategoryPersonnel      = "personnel"
	CategoryProfessional   = "professional_services"
	CategorySalesMarketing = "sales_marketing"
	CategoryFacilities     = "facilities_admin"
	CategoryDepreciation   = "depreciation_amortization"
	CategoryInterest       = "interest"
	CategoryTaxes          = "taxes"
	CategoryOtherIncome    = "other_income"
	CategoryOtherExpense   = "other_expense"
	CategoryUncategorized  = "uncategorized"
)

// SuggestFunc is the injected AI classification capability. It is consulted
// only when rule matching is inconclusive, and its answer is always
// overridable by an explicit template entry for the same row signature.
type SuggestFunc func(ctx context.Context, accountName string, docContext []string) (Classification, error)

// TaxonomyRule maps keyword substrings onto a category/subcategory. Rules
// are evaluated in order; the first match wins.
type TaxonomyRule struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Keywords    []string `json:"keywords"`
}

// Taxonomy is the configurable classification vocabulary: category rules plus
// the markers that flag pre-existing totals and calculated/derived rows.
type Taxonomy struct {
	Rules             []TaxonomyRule `json:"rules"`
	TotalMarkers      []string       `json:"total_markers"`
	CalculatedMarkers []string       `json:"calculated_markers"`
}

// DefaultTaxonomy builds the built-in English/Spanish vocabulary.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		TotalMarkers: []string{
			"total", "subtotal", "sub-total", "suma",
		},
		CalculatedMarkers: []string{
			"margin", "margen", "%",
			"ebitda",
			"gross profit", "utilidad bruta",
			"operating income", "utilidad operativa", "utilidad de operación",
			"net income", "utilidad neta", "ganancia neta", "resultado neto",
			"net cash flow", "flujo neto",
			"beginning balance", "saldo inicial",
			"ending balance", "saldo final",
			"lowest balance", "saldo mínimo", "saldo minimo",
		},
		// Rule order matters: specific vocabularies first, the broad revenue
		// net last so "Costo de Ventas" or "Sales & Marketing" never lands in
		// revenue.
		Rules: []TaxonomyRule{
			{Category: CategoryCOGS, Keywords: []string{
				"cost of goods", "cogs", "cost of sales", "costo de ventas", "costo de venta",
				"materia prima", "mano de obra", "proveedores",
			}},
			{Category: CategoryPersonnel, Keywords: []string{
				"salaries", "salary", "payroll", "wages", "sueldos", "nómina", "nomina",
				"cargas sociales", "benefits", "personnel",
			}},
			{Category: CategoryProfessional, Keywords: []string{
				"professional services", "consulting", "legal", "accounting fees",
				"honorarios", "asesor",
			}},
			{Category: CategorySalesMarketing, Keywords: []string{
				"marketing", "advertising", "sales & marketing", "publicidad", "mercadotecnia",
			}},
			{Category: CategoryDepreciation, Keywords: []string{
				"depreciation", "amortization", "depreciación", "depreciacion", "amortización",
			}},
			{Category: CategoryInterest, Keywords: []string{
				"interest", "intereses", "financial expense", "gastos financieros",
			}},
			{Category: CategoryTaxes, Keywords: []string{
				"tax", "taxes", "impuesto", "impuestos", "isr", "iva",
			}},
			{Category: CategoryFacilities, Keywords: []string{
				"rent", "renta", "facilities", "office", "oficina", "utilities",
				"general & administrative", "administración", "administracion", "admin",
				"gastos operativos", "operating expense", "research & development",
			}},
			{Category: CategoryOtherIncome, Keywords: []string{
				"other income", "otros ingresos",
			}},
			{Category: CategoryOtherExpense, Keywords: []string{
				"other expense", "otros gastos", "egresos",
			}},
			{Category: CategoryRevenue, Keywords: []string{
				"revenue", "sales", "income", "ventas", "ingresos", "servicios prestados", "cobros",
			}},
		},
	}
}

// inflowCategories drive the accounting-sign normalization of Amount.
var inflowCategories = map[string]bool{
	CategoryRevenue:     true,
	CategoryOtherIncome: true,
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// matchRules returns the first rule whose keyword appears in the name.
func (t *Taxonomy) matchRules(name string) (Classification, bool) {
	n := normalizeName(name)
	if n == "" {
		return Classification{}, false
	}
	for _, rule := range t.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(n, kw) {
				return Classification{Category: rule.Category, Subcategory: rule.Subcategory}, true
			}
		}
	}
	return Classification{}, false
}

func (t *Taxonomy) isTotal(name string) bool {
	n := normalizeName(name)
	for _, m := range t.TotalMarkers {
		if strings.Contains(n, m) {
			return true
		}
	}
	return false
}

func (t *Taxonomy) isCalculated(name string) bool {
	n := normalizeName(name)
	for _, m := range t.CalculatedMarkers {
		if strings.Contains(n, m) {
			return true
		}
	}
	return false
}

// Classify assigns a category to one account row. Rule order: total and
// calculated markers first (they keep any category a rule also finds, for
// cross-checking against recomputed sums), then keyword rules, then the
// injected AI suggester. Rows nothing can place land in uncategorized rather
// than nil.
func Classify(ctx context.Context, accountName string, taxonomy *Taxonomy, docContext []string, suggest SuggestFunc) Classification {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}

	cls, matched := taxonomy.matchRules(accountName)
	cls.IsCalculated = taxonomy.isCalculated(accountName)
	cls.IsTotal = !cls.IsCalculated && taxonomy.isTotal(accountName)

	if matched {
		return cls
	}
	// Totals and derived rows without a category match are still usable; no
	// need to burn an AI call on them.
	if cls.IsTotal || cls.IsCalculated {
		cls.Category = CategoryUncategorized
		return cls
	}

	if suggest != nil {
		if suggestion, err := suggest(ctx, accountName, docContext); err == nil && suggestion.Category != "" {
			suggestion.IsTotal = cls.IsTotal
			suggestion.IsCalculated = cls.IsCalculated
			return suggestion
		}
	}

	cls.Category = CategoryUncategorized
	return cls
}
