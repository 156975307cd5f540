package prices

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used throughout the price table.
const DateLayout = "2006-01-02"

// Table is a date-aligned wide price table: one row per trading day,
// one numeric column per ticker. Rows are ascending by date with no
// duplicates; both are enforced at load time.
type Table struct {
	Dates   []string
	Columns map[string][]float64
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Dates)
}

// Column returns the price series for a ticker.
func (t *Table) Column(ticker string) ([]float64, error) {
	col, ok := t.Columns[ticker]
	if !ok {
		return nil, fmt.Errorf("prices: ticker %q not present in table", ticker)
	}
	return col, nil
}

// Tickers returns the column names in sorted order.
func (t *Table) Tickers() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a wide CSV price table and verifies the input contract:
// a leading date column, every required ticker present, every cell
// numeric and finite, dates strictly ascending without duplicates.
func Load(r io.Reader, required []string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("first column must be 'date', got %q", header[0])
	}

	tickers := make([]string, 0, len(header)-1)
	for _, name := range header[1:] {
		tickers = append(tickers, strings.TrimSpace(name))
	}

	present := make(map[string]bool, len(tickers))
	for _, name := range tickers {
		present[name] = true
	}
	var missing []string
	for _, name := range required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	table := &Table{Columns: make(map[string][]float64, len(tickers))}
	for _, name := range tickers {
		table.Columns[name] = nil
	}

	var prev time.Time
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", line, len(header), len(row))
		}

		day, err := time.Parse(DateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", line, row[0], err)
		}
		if !prev.IsZero() && !day.After(prev) {
			return nil, fmt.Errorf("row %d: dates must be strictly ascending (%s after %s)",
				line, day.Format(DateLayout), prev.Format(DateLayout))
		}
		prev = day
		table.Dates = append(table.Dates, day.Format(DateLayout))

		for i, name := range tickers {
			cell := strings.TrimSpace(row[i+1])
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: non-numeric price %q", line, name, cell)
			}
			if math.IsInf(value, 0) || math.IsNaN(value) {
				return nil, fmt.Errorf("row %d: column %s: non-finite price", line, name)
			}
			table.Columns[name] = append(table.Columns[name], value)
		}
	}

	if table.Len() == 0 {
		return nil, fmt.Errorf("price table contains no rows")
	}
	return table, nil
}

// LoadFile opens and loads a wide CSV price table from disk.
func LoadFile(path string, required []string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer file.Close()

	table, err := Load(file, required)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// WriteFile writes the table back out as a wide CSV, columns sorted by ticker.
func (t *Table) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	tickers := t.Tickers()
	header := append([]string{"date"}, tickers...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, date := range t.Dates {
		row := make([]string, 0, len(header))
		row = append(row, date)
		for _, name := range tickers {
			row = append(row, strconv.FormatFloat(t.Columns[name][i], 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}
