package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"market-state-engine/internal/signal"
	"market-state-engine/internal/state"
)

// SchemaVersion discriminates the canonical record layout for downstream
// consumers.
const SchemaVersion = "0.1"

// Metric carries one signal's numeric derivation for a date. SMA is null
// while the window is unfilled; Value is null when the raw value was
// non-finite and treated as missing data.
type Metric struct {
	Value *float64 `json:"value"`
	SMA   *float64 `json:"sma"`
}

// StateDecision mirrors state.Decision in the interchange format.
type StateDecision struct {
	Label   string   `json:"label"`
	Rule    string   `json:"rule"`
	Missing []string `json:"missing,omitempty"`
}

// Inputs is the static run metadata stamped onto every record.
type Inputs struct {
	Window     int      `json:"window"`
	Bench      string   `json:"bench"`
	Tickers    []string `json:"tickers"`
	PriceField string   `json:"price_field"`
}

// Record is the authoritative per-date output and the unit of comparison
// between implementations.
type Record struct {
	Date        string            `json:"date"`
	Signals     map[string]string `json:"signals"`
	Metrics     map[string]Metric `json:"metrics"`
	MarketState StateDecision     `json:"market_state"`
	Inputs      Inputs            `json:"inputs"`
	Version     string            `json:"version"`
}

// Assemble packages one date's signal points and state decision into a
// canonical record. It guarantees the record carries no numeric token JSON
// cannot represent: a point claiming a finite value or average that is in
// fact non-finite fails assembly for that date.
func Assemble(date string, points map[string]signal.Point, decision state.Decision, inputs Inputs) (Record, error) {
	rec := Record{
		Date:    date,
		Signals: make(map[string]string, len(points)),
		Metrics: make(map[string]Metric, len(points)),
		MarketState: StateDecision{
			Label:   decision.Label,
			Rule:    decision.Rule,
			Missing: decision.Missing,
		},
		Inputs:  inputs,
		Version: SchemaVersion,
	}

	for name, point := range points {
		rec.Signals[name] = string(point.Label)

		var metric Metric
		if point.ValueOK {
			if !isFinite(point.Value) {
				return Record{}, fmt.Errorf("record %s: signal %s value is non-finite", date, name)
			}
			v := point.Value
			metric.Value = &v
		}
		if point.SMAOK {
			if !isFinite(point.SMA) {
				return Record{}, fmt.Errorf("record %s: signal %s sma is non-finite", date, name)
			}
			s := point.SMA
			metric.SMA = &s
		}
		rec.Metrics[name] = metric
	}

	return rec, nil
}

// WriteStream emits records as newline-delimited JSON.
func WriteStream(w io.Writer, records []Record) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].Date, err)
		}
	}
	return buf.Flush()
}

// WriteFile writes the NDJSON stream to path, creating parent directories.
func WriteFile(path string, records []Record) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteStream(file, records)
}

// ReadStream decodes a newline-delimited canonical record stream.
func ReadStream(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile loads an NDJSON canonical stream from disk.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open canonical stream: %w", err)
	}
	defer file.Close()

	records, err := ReadStream(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
