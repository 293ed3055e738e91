package finparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textCell(s string) Cell { return makeCell(s) }

func TestResolvePeriodQuarterTokensEquivalent(t *testing.T) {
	want := QuarterPeriod(2025, 1)
	for _, raw := range []string{"Q1 2025", "1Q25", "q1-25", "Q1/25", "q1 2025"} {
		res := ResolvePeriod(textCell(raw), 0)
		require.True(t, res.OK, "token %q", raw)
		assert.False(t, res.LowConfidence, "token %q", raw)
		assert.Equal(t, want, res.Period, "token %q", raw)
	}
}

func TestResolvePeriodShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want CanonicalPeriod
	}{
		{"FY2025", YearPeriod(2025)},
		{"fy 25", YearPeriod(2025)},
		{"2025", YearPeriod(2025)},
		{"Jan-25", MonthPeriod(2025, 1)},
		{"Jan/24", MonthPeriod(2024, 1)},
		{"January 2024", MonthPeriod(2024, 1)},
		{"Ene-24", MonthPeriod(2024, 1)},
		{"Abr-24", MonthPeriod(2024, 4)},
		{"Ago-24", MonthPeriod(2024, 8)},
		{"Dic-24", MonthPeriod(2024, 12)},
		{"Q1-2024 Total", QuarterPeriod(2024, 1)},
		{"2025-08-01", MonthPeriod(2025, 8)},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			res := ResolvePeriod(textCell(tc.raw), 0)
			require.True(t, res.OK)
			assert.False(t, res.Boundary)
			assert.False(t, res.LowConfidence)
			assert.Equal(t, tc.want, res.Period)
		})
	}
}

func TestResolvePeriodExcelSerial(t *testing.T) {
	res := ResolvePeriod(textCell("45900"), 3)
	require.True(t, res.OK)
	assert.Equal(t, MonthPeriod(2025, 8), res.Period)
}

func TestResolvePeriodSectionBoundary(t *testing.T) {
	for _, raw := range []string{"Dollars", "USD", "Total (USD)", "Dólares"} {
		res := ResolvePeriod(textCell(raw), 5)
		assert.True(t, res.Boundary, "marker %q", raw)
		assert.Equal(t, "USD", res.Currency, "marker %q", raw)
	}
}

func TestResolvePeriodUnrecognizedKeptVerbatim(t *testing.T) {
	res := ResolvePeriod(textCell("Grand Opening"), 2)
	require.True(t, res.OK)
	assert.True(t, res.LowConfidence)
	assert.Equal(t, LabelPeriod("Grand Opening"), res.Period)
}

func TestPeriodChronologicalOrdering(t *testing.T) {
	periods := []CanonicalPeriod{
		QuarterPeriod(2024, 1),
		MonthPeriod(2024, 2),
		MonthPeriod(2024, 1),
		YearPeriod(2023),
		MonthPeriod(2024, 3),
		LabelPeriod("notes"),
	}
	SortPeriods(periods)
	assert.Equal(t, YearPeriod(2023), periods[0])
	assert.Equal(t, MonthPeriod(2024, 1), periods[1])
	assert.Equal(t, MonthPeriod(2024, 2), periods[2])
	// The quarter total lands after its last month.
	assert.Equal(t, MonthPeriod(2024, 3), periods[3])
	assert.Equal(t, QuarterPeriod(2024, 1), periods[4])
	assert.Equal(t, PeriodLabel, periods[5].Kind)
}

func TestPeriodKeys(t *testing.T) {
	assert.Equal(t, "2025-08", MonthPeriod(2025, 8).Key())
	assert.Equal(t, "2025-Q1", QuarterPeriod(2025, 1).Key())
	assert.Equal(t, "2025", YearPeriod(2025).Key())
}
