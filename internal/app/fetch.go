package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-state-engine/internal/fetcher"
	"market-state-engine/internal/prices"
)

// Fetch downloads daily closes for every ticker the engine references and
// writes the merged wide CSV.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	if opts.OutPath == "" {
		return errors.New("--out is required")
	}

	start := opts.Start
	if start == "" {
		start = a.Config.Fetch.Start
	}
	from, err := time.Parse(prices.DateLayout, start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to := time.Now().UTC()

	quotes := fetcher.NewDaily(fetcher.Options{
		BaseURL:   a.Config.Fetch.BaseURL,
		Timeout:   a.Config.Fetch.RequestTimeout,
		UserAgent: a.Config.Fetch.UserAgent,
	}, a.Logger)

	tickers := a.Config.Engine.Tickers()
	series := make(map[string][]fetcher.Bar, len(tickers))
	for _, ticker := range tickers {
		bars, err := quotes.FetchDaily(ctx, ticker, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ticker, err)
		}
		series[ticker] = bars
	}

	table, err := fetcher.MergeWide(series)
	if err != nil {
		return err
	}

	if err := table.WriteFile(opts.OutPath); err != nil {
		return fmt.Errorf("write prices: %w", err)
	}
	a.Logger.Info().
		Int("tickers", len(tickers)).
		Int("rows", table.Len()).
		Str("out", opts.OutPath).
		Msg("price table written")
	return nil
}
