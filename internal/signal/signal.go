package signal

import (
	"fmt"
	"math"

	"market-state-engine/internal/rolling"
)

// Kind selects how a signal derives its scalar value from the price table.
type Kind string

// Rule selects how the scalar value compares against its rolling average.
type Rule string

// Label is the per-date categorical outcome of a signal.
type Label string

const (
	// KindRelativeStrength divides one ticker's price by a reference ticker's.
	KindRelativeStrength Kind = "relative_strength"
	// KindPriceProxy uses a ticker's raw price directly.
	KindPriceProxy Kind = "price_proxy"

	// RuleGtSMA labels UP when the value is strictly above its rolling average.
	RuleGtSMA Rule = "gt_sma"
	// RuleLtSMA labels UP when the value is strictly below its rolling average.
	RuleLtSMA Rule = "lt_sma"

	LabelUp   Label = "UP"
	LabelDown Label = "DOWN"
	LabelNA   Label = "NA"
)

// Definition is one named signal from the engine configuration.
type Definition struct {
	Name   string `mapstructure:"-"`
	Kind   Kind   `mapstructure:"kind"`
	A      string `mapstructure:"a"`
	B      string `mapstructure:"b"`
	Ticker string `mapstructure:"ticker"`
	Rule   Rule   `mapstructure:"rule"`
	// Window overrides the engine-wide window when positive.
	Window int `mapstructure:"window"`
}

// Validate checks the definition shape. Operand existence against the price
// dataset is checked separately, once the dataset is known.
func (d Definition) Validate() error {
	switch d.Kind {
	case KindRelativeStrength:
		if d.A == "" || d.B == "" {
			return fmt.Errorf("signal %s: relative_strength requires tickers 'a' and 'b'", d.Name)
		}
	case KindPriceProxy:
		if d.Ticker == "" {
			return fmt.Errorf("signal %s: price_proxy requires 'ticker'", d.Name)
		}
	default:
		return fmt.Errorf("signal %s: unknown kind %q", d.Name, d.Kind)
	}

	switch d.Rule {
	case RuleGtSMA, RuleLtSMA:
	default:
		return fmt.Errorf("signal %s: unknown rule %q", d.Name, d.Rule)
	}

	if d.Window < 0 {
		return fmt.Errorf("signal %s: window cannot be negative", d.Name)
	}
	return nil
}

// Tickers returns the operand tickers this definition references.
func (d Definition) Tickers() []string {
	switch d.Kind {
	case KindRelativeStrength:
		return []string{d.A, d.B}
	case KindPriceProxy:
		return []string{d.Ticker}
	}
	return nil
}

// Point is one date's evaluation of a signal.
type Point struct {
	Value   float64
	ValueOK bool // false when the raw value is non-finite
	SMA     float64
	SMAOK   bool // false while the window is unfilled or poisoned
	Label   Label
}

// Series is the full evaluation of one signal over the price table,
// same length as the table's date axis.
type Series struct {
	Name      string
	Window    int
	Points    []Point
	BadValues int // dates whose raw value was non-finite
}

// Evaluate derives the raw value series per the definition's kind, computes
// its rolling average, and applies the rule date by date. Equality between
// value and average resolves to DOWN under both rules: UP requires strict
// inequality. A non-finite raw value (zero benchmark, bad input) is treated
// as missing data for that date; it labels NA and unfills every window that
// contains it.
func Evaluate(def Definition, columns map[string][]float64, defaultWindow int) (Series, error) {
	window := def.Window
	if window == 0 {
		window = defaultWindow
	}

	values, err := rawValues(def, columns)
	if err != nil {
		return Series{}, err
	}

	avg, filled, err := rolling.Mean(values, window)
	if err != nil {
		return Series{}, fmt.Errorf("signal %s: %w", def.Name, err)
	}

	series := Series{Name: def.Name, Window: window, Points: make([]Point, len(values))}
	for i, value := range values {
		point := Point{Value: value, ValueOK: isFinite(value), SMA: avg[i], SMAOK: filled[i]}
		if !point.ValueOK {
			series.BadValues++
		}
		point.Label = classify(def.Rule, point)
		series.Points[i] = point
	}
	return series, nil
}

func rawValues(def Definition, columns map[string][]float64) ([]float64, error) {
	switch def.Kind {
	case KindRelativeStrength:
		numer, ok := columns[def.A]
		if !ok {
			return nil, fmt.Errorf("signal %s: ticker %q not in price table", def.Name, def.A)
		}
		denom, ok := columns[def.B]
		if !ok {
			return nil, fmt.Errorf("signal %s: ticker %q not in price table", def.Name, def.B)
		}
		values := make([]float64, len(numer))
		for i := range numer {
			values[i] = numer[i] / denom[i]
		}
		return values, nil
	case KindPriceProxy:
		col, ok := columns[def.Ticker]
		if !ok {
			return nil, fmt.Errorf("signal %s: ticker %q not in price table", def.Name, def.Ticker)
		}
		values := make([]float64, len(col))
		copy(values, col)
		return values, nil
	}
	return nil, fmt.Errorf("signal %s: unknown kind %q", def.Name, def.Kind)
}

func classify(rule Rule, p Point) Label {
	if !p.ValueOK || !p.SMAOK {
		return LabelNA
	}
	switch rule {
	case RuleGtSMA:
		if p.Value > p.SMA {
			return LabelUp
		}
		return LabelDown
	case RuleLtSMA:
		if p.Value < p.SMA {
			return LabelUp
		}
		return LabelDown
	}
	return LabelNA
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
