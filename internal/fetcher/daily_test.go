package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchDailySuccess(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("s")
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Date,Open,High,Low,Close,Volume\n2025-01-02,399,401,398,400.5,1000\n2025-01-03,400,402,399,401.25,1100\n"))
	}))
	defer srv.Close()

	d := NewDaily(Options{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	bars, err := d.FetchDaily(context.Background(), "SPY", time.Now().AddDate(0, -1, 0), time.Now())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotSymbol != "spy.us" {
		t.Fatalf("symbol mapping wrong: %s", gotSymbol)
	}
	if len(bars) != 2 || bars[0].Close != 400.5 || bars[1].Date != "2025-01-03" {
		t.Fatalf("bars wrong: %+v", bars)
	}
}

func TestFetchDailyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exceeded the daily hits limit", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDaily(Options{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := d.FetchDaily(context.Background(), "SPY", time.Now(), time.Now()); err == nil {
		t.Fatal("HTTP 403 must return an error")
	}
}

func TestFetchDailyBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Date,Open\n2025-01-02,399\n"))
	}))
	defer srv.Close()

	d := NewDaily(Options{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := d.FetchDaily(context.Background(), "SPY", time.Now(), time.Now()); err == nil {
		t.Fatal("payload without a Close column must return an error")
	}
}

func TestMergeWide(t *testing.T) {
	series := map[string][]Bar{
		"SPY": {{"2025-01-02", 400}, {"2025-01-03", 401}, {"2025-01-06", 402}},
		"TLT": {{"2025-01-02", 100}, {"2025-01-06", 101}}, // missing the 3rd
	}
	table, err := MergeWide(series)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("want 2 shared dates, got %d: %v", table.Len(), table.Dates)
	}
	if table.Dates[0] != "2025-01-02" || table.Dates[1] != "2025-01-06" {
		t.Fatalf("dates wrong: %v", table.Dates)
	}
	spy, _ := table.Column("SPY")
	if spy[1] != 402 {
		t.Fatalf("SPY column misaligned: %v", spy)
	}
}

func TestMergeWideNoOverlap(t *testing.T) {
	series := map[string][]Bar{
		"SPY": {{"2025-01-02", 400}},
		"TLT": {{"2025-01-03", 100}},
	}
	if _, err := MergeWide(series); err == nil {
		t.Fatal("disjoint series must be an error")
	}
}

func TestMergeWideDuplicateDate(t *testing.T) {
	series := map[string][]Bar{
		"SPY": {{"2025-01-02", 400}, {"2025-01-02", 401}},
	}
	if _, err := MergeWide(series); err == nil {
		t.Fatal("duplicate dates must be an error")
	}
}
