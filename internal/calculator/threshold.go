package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Distinct returns the distinct values of prices in ascending order.
// Numerically equal decimals with different exponents count once.
func Distinct(prices []decimal.Decimal) []decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	out := make([]decimal.Decimal, 0, len(sorted))
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Percentile interpolates linearly between the closest ranks of an ascending,
// non-empty slice. p is in [0, 100].
func Percentile(sorted []decimal.Decimal, p float64) (decimal.Decimal, error) {
	if len(sorted) == 0 {
		return decimal.Zero, fmt.Errorf("percentile of empty set")
	}
	if p < 0 || p > 100 {
		return decimal.Zero, fmt.Errorf("percentile %v out of range [0, 100]", p)
	}
	if len(sorted) == 1 {
		return sorted[0], nil
	}

	pos := decimal.NewFromFloat(p).Div(hundred).Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lo := int(pos.Floor().IntPart())
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	frac := pos.Sub(pos.Floor())
	return sorted[lo].Add(sorted[lo+1].Sub(sorted[lo]).Mul(frac)), nil
}

// PercentileThresholds computes the cheap and expensive cut-offs over the
// distinct prices of one day. Fewer than two distinct prices yields two
// null thresholds.
func PercentileThresholds(prices []decimal.Decimal, cheapPct, expensivePct float64) (cheap, expensive decimal.NullDecimal, err error) {
	distinct := Distinct(prices)
	if len(distinct) < 2 {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, nil
	}
	c, err := Percentile(distinct, cheapPct)
	if err != nil {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, fmt.Errorf("cheap threshold: %w", err)
	}
	e, err := Percentile(distinct, expensivePct)
	if err != nil {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, fmt.Errorf("expensive threshold: %w", err)
	}
	return decimal.NewNullDecimal(c), decimal.NewNullDecimal(e), nil
}

// RankThresholds uses the cheapN-th lowest and expensiveN-th highest distinct
// prices as cut-offs. A non-positive count leaves that threshold null. Both
// counts are capped at half the distinct prices so the cut-offs never cross.
func RankThresholds(prices []decimal.Decimal, cheapN, expensiveN int) (cheap, expensive decimal.NullDecimal) {
	distinct := Distinct(prices)
	if len(distinct) < 2 {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	limit := len(distinct) / 2
	if cheapN > 0 {
		cheap = decimal.NewNullDecimal(distinct[min(cheapN, limit)-1])
	}
	if expensiveN > 0 {
		expensive = decimal.NewNullDecimal(distinct[len(distinct)-min(expensiveN, limit)])
	}
	return cheap, expensive
}
