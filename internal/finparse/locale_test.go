package finparse

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountLocales(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		locale string
		want   string
		valid  bool
	}{
		{"es parenthesized", "(1.234,56)", "es-MX", "-1234.56", true},
		{"en grouped", "1,234.56", "en-US", "1234.56", true},
		{"en currency symbol", "$2,500.00", "en-US", "2500", true},
		{"es currency symbol", "€1.000,25", "es-MX", "1000.25", true},
		{"es plain thousands", "1.234", "es-MX", "1234", true},
		{"leading minus", "-450.10", "en-US", "-450.1", true},
		{"percent stripped", "58.3%", "en-US", "58.3", true},
		{"rupee symbol", "₹12,00,000", "en-IN", "1200000", true},
		{"garbage", "n/a", "en-US", "0", false},
		{"empty", "   ", "en-US", "0", false},
		{"residue after cleaning", "12abc", "en-US", "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseAmount(tc.raw, tc.locale)
			assert.Equal(t, tc.valid, got.IsValid)
			want, err := decimal.NewFromString(tc.want)
			require.NoError(t, err)
			assert.True(t, got.Value.Equal(want), "got %s want %s", got.Value, want)
		})
	}
}

func TestParseAmountCellNumericPassthrough(t *testing.T) {
	got := ParseAmountCell(Cell{Raw: "1234.5", Number: 1234.5, IsNumber: true}, "es-MX")
	assert.True(t, got.IsValid)
	assert.True(t, got.Value.Equal(decimal.NewFromFloat(1234.5)))
}

// Round trip: format a value using the locale's separators, parse it back.
func TestParseAmountRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 999.99, 1234.56, 1000000.01, -54321.1}
	for _, v := range values {
		enStr := formatEnglish(v)
		got := ParseAmount(enStr, "en-US")
		require.True(t, got.IsValid, "en %q", enStr)
		f, _ := got.Value.Float64()
		assert.InDelta(t, v, f, 0.005, "en %q", enStr)

		esStr := formatSpanish(v)
		got = ParseAmount(esStr, "es-MX")
		require.True(t, got.IsValid, "es %q", esStr)
		f, _ = got.Value.Float64()
		assert.InDelta(t, v, f, 0.005, "es %q", esStr)
	}
}

func formatEnglish(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	return groupThousands(s, ",", ".")
}

func formatSpanish(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = groupThousands(s, ".", ",")
	return s
}

func groupThousands(s, group, dec string) string {
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, fracPart := s[:len(s)-3], s[len(s)-2:]
	var out []byte
	for i, ch := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, group...)
		}
		out = append(out, ch)
	}
	res := string(out) + dec + fracPart
	if neg {
		res = "-" + res
	}
	return res
}

func TestSerialToYearMonth(t *testing.T) {
	// Regression pin: this serial previously misresolved by a month.
	y, m := SerialToYearMonth(45900)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 8, m)
}

func TestSerialEpochSemantics(t *testing.T) {
	// Known anchors of the 1900 date system.
	assert.Equal(t, "1900-01-01", SerialToTime(1).Format("2006-01-02"))
	assert.Equal(t, "1900-02-28", SerialToTime(59).Format("2006-01-02"))
	// Serial 61 is the first day after the fictitious 1900-02-29.
	assert.Equal(t, "1900-03-01", SerialToTime(61).Format("2006-01-02"))
	assert.Equal(t, "2021-01-01", SerialToTime(44197).Format("2006-01-02"))
	assert.Equal(t, "2025-01-01", SerialToTime(45658).Format("2006-01-02"))
}

func TestLooksLikeSerial(t *testing.T) {
	_, ok := looksLikeSerial("45900")
	assert.True(t, ok)
	_, ok = looksLikeSerial("1999") // below the header serial floor
	assert.False(t, ok)
	_, ok = looksLikeSerial("Q1 2025")
	assert.False(t, ok)
}
