package prices

import (
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `date,XLE,TLT,XLK,XLU,SPY
2025-01-02,88.5,100.25,150.0,65.1,400.5
2025-01-03,89.0,100.0,151.2,65.0,401.0
2025-01-06,88.75,99.5,152.4,64.8,402.25
`

func TestLoad(t *testing.T) {
	table, err := Load(strings.NewReader(sampleCSV), []string{"XLE", "TLT", "XLK", "XLU", "SPY"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("want 3 rows, got %d", table.Len())
	}
	if table.Dates[0] != "2025-01-02" || table.Dates[2] != "2025-01-06" {
		t.Fatalf("dates wrong: %v", table.Dates)
	}
	col, err := table.Column("XLK")
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	if col[1] != 151.2 {
		t.Fatalf("want 151.2, got %v", col[1])
	}
	want := []string{"SPY", "TLT", "XLE", "XLK", "XLU"}
	got := table.Tickers()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tickers not sorted: %v", got)
		}
	}
}

func TestLoadMissingColumn(t *testing.T) {
	_, err := Load(strings.NewReader(sampleCSV), []string{"XLE", "IWM"})
	if err == nil || !strings.Contains(err.Error(), "IWM") {
		t.Fatalf("missing required column must be named in the error, got %v", err)
	}
}

func TestLoadNonNumericCell(t *testing.T) {
	csv := "date,SPY\n2025-01-02,400.5\n2025-01-03,n/a\n"
	if _, err := Load(strings.NewReader(csv), []string{"SPY"}); err == nil {
		t.Fatal("non-numeric price cell must be a fatal input error")
	}
}

func TestLoadUnsortedDates(t *testing.T) {
	csv := "date,SPY\n2025-01-03,400.5\n2025-01-02,401.0\n"
	if _, err := Load(strings.NewReader(csv), []string{"SPY"}); err == nil {
		t.Fatal("descending dates must be rejected")
	}
}

func TestLoadDuplicateDates(t *testing.T) {
	csv := "date,SPY\n2025-01-02,400.5\n2025-01-02,401.0\n"
	if _, err := Load(strings.NewReader(csv), []string{"SPY"}); err == nil {
		t.Fatal("duplicate dates must be rejected")
	}
}

func TestLoadEmptyTable(t *testing.T) {
	if _, err := Load(strings.NewReader("date,SPY\n"), []string{"SPY"}); err == nil {
		t.Fatal("a table with no rows must be rejected")
	}
}

func TestLoadBadHeader(t *testing.T) {
	if _, err := Load(strings.NewReader("ts,SPY\n2025-01-02,400\n"), []string{"SPY"}); err == nil {
		t.Fatal("a header without a leading date column must be rejected")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	table, err := Load(strings.NewReader(sampleCSV), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := table.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	back, err := LoadFile(path, []string{"XLE", "TLT", "XLK", "XLU", "SPY"})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Len() != table.Len() {
		t.Fatalf("row count changed: %d vs %d", back.Len(), table.Len())
	}
	for _, name := range table.Tickers() {
		a, _ := table.Column(name)
		b, _ := back.Column(name)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("column %s row %d changed: %v vs %v", name, i, a[i], b[i])
			}
		}
	}
}
