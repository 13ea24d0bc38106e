package collector

import (
	"context"

	"PstrykSentinel/internal/model"
)

// Fetcher retrieves one day of hourly prices for one direction.
type Fetcher interface {
	FetchDay(ctx context.Context, dir model.Direction, date model.Date) (model.DaySeries, error)
	Name() string
}
