package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// DayRange returns the lowest and highest price of a day.
func DayRange(prices []decimal.Decimal) (low, high decimal.Decimal, err error) {
	if len(prices) == 0 {
		return decimal.Zero, decimal.Zero, errors.New("no prices provided")
	}
	low, high = prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.GreaterThan(high) {
			high = p
		}
		if p.LessThan(low) {
			low = p
		}
	}
	return low, high, nil
}

// RangePosition returns where current sits within [low, high] (0.0~1.0).
func RangePosition(current, low, high decimal.Decimal) (float64, error) {
	if high.Equal(low) {
		return 0.5, nil
	}
	if high.LessThan(low) {
		return 0, errors.New("high must be >= low")
	}
	pos := current.Sub(low).Div(high.Sub(low)).InexactFloat64()
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
