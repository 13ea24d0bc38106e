package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Mean returns the arithmetic mean of prices.
func Mean(prices []decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, errors.New("no prices provided")
	}
	return decimal.Avg(prices[0], prices[1:]...), nil
}

// TrailingMean averages the last window prices.
func TrailingMean(prices []decimal.Decimal, window int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Zero, errors.New("window must be positive")
	}
	if len(prices) < window {
		return decimal.Zero, errors.New("not enough data for trailing mean")
	}
	return Mean(prices[len(prices)-window:])
}
