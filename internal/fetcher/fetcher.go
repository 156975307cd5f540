package fetcher

import (
	"context"
	"time"
)

// Bar is one daily close observation.
type Bar struct {
	Date  string
	Close float64
}

// QuoteFetcher retrieves a ticker's daily close series.
type QuoteFetcher interface {
	FetchDaily(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
}
