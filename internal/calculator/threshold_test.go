package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestDistinct_SortsAndCollapsesEqualValues(t *testing.T) {
	got := Distinct(decs("0.30", "0.1", "0.10", "-0.05", "0.3"))
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(decimal.RequireFromString("-0.05")))
	assert.True(t, got[1].Equal(decimal.RequireFromString("0.1")))
	assert.True(t, got[2].Equal(decimal.RequireFromString("0.3")))
}

func TestPercentile_Interpolates(t *testing.T) {
	sorted := decs("1", "2", "3", "4", "5")

	p, err := Percentile(sorted, 50)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(3)), p.String())

	p, err = Percentile(sorted, 10)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("1.4")), p.String())

	p, err = Percentile(sorted, 100)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(5)))

	p, err = Percentile(sorted, 0)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(1)))

	_, err = Percentile(sorted, 101)
	assert.Error(t, err)
	_, err = Percentile(nil, 50)
	assert.Error(t, err)
}

func TestPercentileThresholds_IgnoresRepeatedPrices(t *testing.T) {
	// Twenty hours at 1 would drag a raw-sample percentile down to 1.
	prices := decs("1", "2", "3", "4", "5")
	for i := 0; i < 20; i++ {
		prices = append(prices, decimal.NewFromInt(1))
	}

	cheap, expensive, err := PercentileThresholds(prices, 25, 75)
	require.NoError(t, err)
	require.True(t, cheap.Valid)
	require.True(t, expensive.Valid)
	assert.True(t, cheap.Decimal.Equal(decimal.NewFromInt(2)), cheap.Decimal.String())
	assert.True(t, expensive.Decimal.Equal(decimal.NewFromInt(4)), expensive.Decimal.String())
}

func TestPercentileThresholds_SingleDistinctPriceIsNull(t *testing.T) {
	cheap, expensive, err := PercentileThresholds(decs("0.5", "0.50", "0.5"), 20, 80)
	require.NoError(t, err)
	assert.False(t, cheap.Valid)
	assert.False(t, expensive.Valid)

	cheap, expensive, err = PercentileThresholds(nil, 20, 80)
	require.NoError(t, err)
	assert.False(t, cheap.Valid)
	assert.False(t, expensive.Valid)
}

func TestRankThresholds(t *testing.T) {
	prices := decs("5", "1", "1", "3", "2", "4")

	cheap, expensive := RankThresholds(prices, 2, 1)
	require.True(t, cheap.Valid)
	require.True(t, expensive.Valid)
	assert.True(t, cheap.Decimal.Equal(decimal.NewFromInt(2)))
	assert.True(t, expensive.Decimal.Equal(decimal.NewFromInt(5)))

	// Counts larger than half the distinct prices are capped.
	cheap, expensive = RankThresholds(prices, 0, 99)
	assert.False(t, cheap.Valid)
	require.True(t, expensive.Valid)
	assert.True(t, expensive.Decimal.Equal(decimal.NewFromInt(4)))
}

func TestRankThresholds_NeverCross(t *testing.T) {
	cheap, expensive := RankThresholds(decs("0.10", "0.20", "0.30", "0.20"), 5, 5)
	require.True(t, cheap.Valid)
	require.True(t, expensive.Valid)
	assert.True(t, cheap.Decimal.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, expensive.Decimal.Equal(decimal.RequireFromString("0.30")))

	cheap, expensive = RankThresholds(decs("1", "2"), 5, 5)
	assert.True(t, cheap.Decimal.LessThan(expensive.Decimal))
}

func TestDayRangeAndPosition(t *testing.T) {
	low, high, err := DayRange(decs("0.4", "-0.1", "0.9"))
	require.NoError(t, err)
	assert.True(t, low.Equal(decimal.RequireFromString("-0.1")))
	assert.True(t, high.Equal(decimal.RequireFromString("0.9")))

	pos, err := RangePosition(decimal.RequireFromString("0.4"), low, high)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pos, 1e-9)

	pos, err = RangePosition(decimal.NewFromInt(3), decimal.NewFromInt(3), decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, 0.5, pos)

	_, err = RangePosition(decimal.Zero, decimal.NewFromInt(2), decimal.NewFromInt(1))
	assert.Error(t, err)

	_, _, err = DayRange(nil)
	assert.Error(t, err)
}
