package fetcher

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-state-engine/internal/prices"
)

// Options parameterise the daily quote fetcher.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Daily downloads per-ticker daily close series from a Stooq-style CSV
// endpoint (Date,Open,High,Low,Close,Volume rows).
type Daily struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewDaily constructs a daily quote fetcher.
func NewDaily(opts Options, logger zerolog.Logger) *Daily {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://stooq.com/q/d/l"
	}

	return &Daily{
		opts:    opts,
		logger:  logger.With().Str("component", "quote_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchDaily retrieves one ticker's daily closes in [start, end].
func (d *Daily) FetchDaily(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	query := url.Values{}
	query.Set("s", symbolFor(ticker))
	query.Set("d1", start.Format("20060102"))
	query.Set("d2", end.Format("20060102"))
	query.Set("i", "d")
	endpoint := d.baseURL + "/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("quote endpoint error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	bars, err := parseDailyCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("ticker %s: no rows returned", ticker)
	}

	d.logger.Debug().Str("ticker", ticker).Int("rows", len(bars)).Msg("fetched daily closes")
	return bars, nil
}

// symbolFor maps a plain US ticker to the endpoint's symbol convention.
func symbolFor(ticker string) string {
	return strings.ToLower(ticker) + ".us"
}

func parseDailyCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, closeIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("response lacks Date/Close columns: %v", header)
	}

	var bars []Bar
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(row[closeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad close %q: %w", row[closeIdx], err)
		}
		bars = append(bars, Bar{Date: strings.TrimSpace(row[dateIdx]), Close: closePrice})
	}
	return bars, nil
}

// MergeWide aligns per-ticker series into a wide table over the dates every
// ticker has. Dates present for only some tickers are dropped so the table
// satisfies the engine's alignment precondition.
func MergeWide(series map[string][]Bar) (*prices.Table, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to merge")
	}

	counts := make(map[string]int)
	byTicker := make(map[string]map[string]float64, len(series))
	for ticker, bars := range series {
		closes := make(map[string]float64, len(bars))
		for _, bar := range bars {
			if _, dup := closes[bar.Date]; dup {
				return nil, fmt.Errorf("ticker %s: duplicate date %s", ticker, bar.Date)
			}
			closes[bar.Date] = bar.Close
			counts[bar.Date]++
		}
		byTicker[ticker] = closes
	}

	var dates []string
	for date, count := range counts {
		if count == len(series) {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no dates shared by all tickers")
	}
	sort.Strings(dates)

	table := &prices.Table{Dates: dates, Columns: make(map[string][]float64, len(series))}
	for ticker, closes := range byTicker {
		col := make([]float64, len(dates))
		for i, date := range dates {
			col[i] = closes[date]
		}
		table.Columns[ticker] = col
	}
	return table, nil
}

var _ QuoteFetcher = (*Daily)(nil)
