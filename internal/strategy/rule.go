package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"PstrykSentinel/internal/calculator"
)

// Method selects how the daily cut-off prices are derived.
type Method string

const (
	// MethodPercentile interpolates percentiles over the distinct prices.
	MethodPercentile Method = "percentile"
	// MethodRank takes the N-th lowest / highest distinct price.
	MethodRank Method = "rank"
)

// ThresholdRule configures cheap/expensive classification.
type ThresholdRule struct {
	Method              Method
	CheapPercentile     float64
	ExpensivePercentile float64
	CheapHours          int
	ExpensiveHours      int
}

// DefaultRule flags the bottom and top 20% of a day's distinct prices.
func DefaultRule() ThresholdRule {
	return ThresholdRule{
		Method:              MethodPercentile,
		CheapPercentile:     20,
		ExpensivePercentile: 80,
		CheapHours:          5,
		ExpensiveHours:      5,
	}
}

// Validate reports the first invalid field.
func (r ThresholdRule) Validate() error {
	switch r.Method {
	case MethodPercentile:
		if r.CheapPercentile < 0 || r.CheapPercentile > 100 {
			return fmt.Errorf("cheap percentile %v out of range [0, 100]", r.CheapPercentile)
		}
		if r.ExpensivePercentile < 0 || r.ExpensivePercentile > 100 {
			return fmt.Errorf("expensive percentile %v out of range [0, 100]", r.ExpensivePercentile)
		}
		if r.CheapPercentile >= r.ExpensivePercentile {
			return fmt.Errorf("cheap percentile %v must be below expensive percentile %v",
				r.CheapPercentile, r.ExpensivePercentile)
		}
	case MethodRank:
		if r.CheapHours < 0 || r.ExpensiveHours < 0 {
			return fmt.Errorf("rank hours must not be negative")
		}
	default:
		return fmt.Errorf("unknown classification method %q", r.Method)
	}
	return nil
}

func (r ThresholdRule) thresholds(prices []decimal.Decimal) (cheap, expensive decimal.NullDecimal) {
	if r.Method == MethodRank {
		return calculator.RankThresholds(prices, r.CheapHours, r.ExpensiveHours)
	}
	cheap, expensive, err := calculator.PercentileThresholds(prices, r.CheapPercentile, r.ExpensivePercentile)
	if err != nil {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	return cheap, expensive
}
