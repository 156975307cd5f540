// Package validate is the second, independent implementation of the signal
// and state computation. It deliberately shares no evaluation code with
// internal/rolling, internal/signal, or internal/state: windowed means are
// recomputed naively per position, labels and state matches are re-derived
// from the configuration types alone, and the result is diffed against a
// canonical record stream. Agreement between the two implementations is the
// correctness gate.
package validate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"market-state-engine/internal/config"
	"market-state-engine/internal/prices"
	"market-state-engine/internal/record"
	"market-state-engine/internal/signal"
	"market-state-engine/internal/state"
)

// DefaultEpsilon is the numeric tolerance when none is configured.
const DefaultEpsilon = 1e-8

// Mismatch kinds.
const (
	KindFieldMismatch      = "field_mismatch"
	KindMissingInCanonical = "missing_in_canonical"
	KindMissingInComputed  = "missing_in_computed"
)

// ErrMismatches reports that the comparison ran to completion and found
// disagreement. It is the validator's normal output for divergence, distinct
// from a failure to run at all.
var ErrMismatches = errors.New("validate: implementations disagree")

// Mismatch is one field-level disagreement between the streams.
type Mismatch struct {
	Date     string
	Field    string
	Kind     string
	Expected string // canonical side
	Actual   string // recomputed side
}

// Options tune the comparison.
type Options struct {
	Epsilon float64
}

// Report accumulates every mismatch found; the comparison never stops at the
// first.
type Report struct {
	RecordsChecked int
	Mismatches     []Mismatch
}

// OK reports whether the streams agree.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Run recomputes signals and state from the price table and compares against
// the canonical stream, keyed by date. Categorical fields compare by exact
// string equality; numeric fields match when both are unfilled or both finite
// within epsilon.
func Run(cfg config.EngineConfig, table *prices.Table, canonical []record.Record, opts Options) (Report, error) {
	epsilon := opts.Epsilon
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	computed, err := recompute(cfg, table)
	if err != nil {
		return Report{}, err
	}

	byDate := make(map[string]dateResult, len(computed))
	for _, res := range computed {
		byDate[res.date] = res
	}

	var report Report
	seen := make(map[string]bool, len(canonical))
	for _, rec := range canonical {
		seen[rec.Date] = true
		res, ok := byDate[rec.Date]
		if !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Date: rec.Date, Field: "date", Kind: KindMissingInComputed,
				Expected: rec.Date, Actual: "",
			})
			continue
		}
		report.RecordsChecked++
		compareRecord(&report, rec, res, epsilon)
	}
	for _, res := range computed {
		if !seen[res.date] {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Date: res.date, Field: "date", Kind: KindMissingInCanonical,
				Expected: "", Actual: res.date,
			})
		}
	}

	return report, nil
}

type dateResult struct {
	date   string
	labels map[string]string
	values map[string]maybe
	smas   map[string]maybe
	state  string
}

// maybe is a numeric that may be in the unfilled state.
type maybe struct {
	value float64
	ok    bool
}

func compareRecord(report *Report, rec record.Record, res dateResult, epsilon float64) {
	names := make([]string, 0, len(res.labels))
	for name := range res.labels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		canonLabel, ok := rec.Signals[name]
		if !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Date: rec.Date, Field: "signals." + name, Kind: KindFieldMismatch,
				Expected: "<absent>", Actual: res.labels[name],
			})
		} else if canonLabel != res.labels[name] {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Date: rec.Date, Field: "signals." + name, Kind: KindFieldMismatch,
				Expected: canonLabel, Actual: res.labels[name],
			})
		}

		metric := rec.Metrics[name]
		compareNumeric(report, rec.Date, "metrics."+name+".value", metric.Value, res.values[name], epsilon)
		compareNumeric(report, rec.Date, "metrics."+name+".sma", metric.SMA, res.smas[name], epsilon)
	}

	// The canonical side may carry entries the recomputed side does not; a
	// one-directional walk would let those pass unchecked.
	for _, name := range canonicalOnly(rec.Signals, res.labels) {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: rec.Date, Field: "signals." + name, Kind: KindFieldMismatch,
			Expected: rec.Signals[name], Actual: "<absent>",
		})
	}
	for _, name := range canonicalOnlyMetrics(rec.Metrics, res.values) {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: rec.Date, Field: "metrics." + name, Kind: KindFieldMismatch,
			Expected: formatMetric(rec.Metrics[name]), Actual: "<absent>",
		})
	}

	if rec.MarketState.Label != res.state {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: rec.Date, Field: "market_state.label", Kind: KindFieldMismatch,
			Expected: rec.MarketState.Label, Actual: res.state,
		})
	}
}

func compareNumeric(report *Report, date, field string, canonical *float64, computed maybe, epsilon float64) {
	switch {
	case canonical == nil && !computed.ok:
		return
	case canonical != nil && computed.ok:
		if math.Abs(*canonical-computed.value) <= epsilon {
			return
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: date, Field: field, Kind: KindFieldMismatch,
			Expected: formatFloat(*canonical), Actual: formatFloat(computed.value),
		})
	case canonical == nil:
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: date, Field: field, Kind: KindFieldMismatch,
			Expected: "null", Actual: formatFloat(computed.value),
		})
	default:
		report.Mismatches = append(report.Mismatches, Mismatch{
			Date: date, Field: field, Kind: KindFieldMismatch,
			Expected: formatFloat(*canonical), Actual: "null",
		})
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.12g", v)
}

func formatMetric(m record.Metric) string {
	value, sma := "null", "null"
	if m.Value != nil {
		value = formatFloat(*m.Value)
	}
	if m.SMA != nil {
		sma = formatFloat(*m.SMA)
	}
	return "value=" + value + " sma=" + sma
}

func canonicalOnly(canonical, computed map[string]string) []string {
	var names []string
	for name := range canonical {
		if _, ok := computed[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func canonicalOnlyMetrics(canonical map[string]record.Metric, computed map[string]maybe) []string {
	var names []string
	for name := range canonical {
		if _, ok := computed[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// recompute rebuilds every date's labels, metrics, and state label from the
// raw table using naive per-window summation.
func recompute(cfg config.EngineConfig, table *prices.Table) ([]dateResult, error) {
	n := table.Len()

	type seriesResult struct {
		values []float64
		valOK  []bool
		smas   []float64
		smaOK  []bool
		labels []string
	}

	perSignal := make(map[string]seriesResult, len(cfg.Signals))
	for name, def := range cfg.Signals {
		window := def.Window
		if window == 0 {
			window = cfg.Window
		}
		if window <= 0 || window > n {
			return nil, fmt.Errorf("validate: signal %s: window %d invalid for %d rows", name, window, n)
		}

		values, err := deriveValues(def, table)
		if err != nil {
			return nil, err
		}

		res := seriesResult{
			values: values,
			valOK:  make([]bool, n),
			smas:   make([]float64, n),
			smaOK:  make([]bool, n),
			labels: make([]string, n),
		}
		for i := range values {
			res.valOK[i] = finite(values[i])
		}

		for i := 0; i < n; i++ {
			if i < window-1 {
				res.labels[i] = "NA"
				continue
			}
			var sum float64
			clean := true
			for j := i - window + 1; j <= i; j++ {
				if !finite(values[j]) {
					clean = false
					break
				}
				sum += values[j]
			}
			if !clean {
				res.labels[i] = "NA"
				continue
			}
			res.smas[i] = sum / float64(window)
			res.smaOK[i] = true
			res.labels[i] = deriveLabel(def.Rule, values[i], res.smas[i])
		}
		perSignal[name] = res
	}

	results := make([]dateResult, n)
	for i := 0; i < n; i++ {
		res := dateResult{
			date:   table.Dates[i],
			labels: make(map[string]string, len(perSignal)),
			values: make(map[string]maybe, len(perSignal)),
			smas:   make(map[string]maybe, len(perSignal)),
		}
		for name, sr := range perSignal {
			res.labels[name] = sr.labels[i]
			res.values[name] = maybe{value: sr.values[i], ok: sr.valOK[i]}
			res.smas[name] = maybe{value: sr.smas[i], ok: sr.smaOK[i]}
		}
		res.state = deriveState(cfg.MarketState, res.labels)
		results[i] = res
	}
	return results, nil
}

func deriveValues(def signal.Definition, table *prices.Table) ([]float64, error) {
	switch def.Kind {
	case signal.KindRelativeStrength:
		numer, err := table.Column(def.A)
		if err != nil {
			return nil, fmt.Errorf("validate: signal %s: %w", def.Name, err)
		}
		denom, err := table.Column(def.B)
		if err != nil {
			return nil, fmt.Errorf("validate: signal %s: %w", def.Name, err)
		}
		out := make([]float64, len(numer))
		for i := range numer {
			out[i] = numer[i] / denom[i]
		}
		return out, nil
	case signal.KindPriceProxy:
		col, err := table.Column(def.Ticker)
		if err != nil {
			return nil, fmt.Errorf("validate: signal %s: %w", def.Name, err)
		}
		out := make([]float64, len(col))
		copy(out, col)
		return out, nil
	}
	return nil, fmt.Errorf("validate: signal %s: unknown kind %q", def.Name, def.Kind)
}

// deriveLabel re-encodes the shared tie-break contract: UP requires strict
// inequality, equality resolves DOWN under both rules.
func deriveLabel(rule signal.Rule, value, sma float64) string {
	switch rule {
	case signal.RuleGtSMA:
		if value > sma {
			return "UP"
		}
		return "DOWN"
	case signal.RuleLtSMA:
		if value < sma {
			return "UP"
		}
		return "DOWN"
	}
	return "NA"
}

// deriveState re-implements the ordered first-match walk, including the
// missing-signal short circuit, without calling into internal/state.
func deriveState(rs *state.RuleSet, labels map[string]string) string {
	naLabel := "NA"
	if rs != nil && rs.NALabel != "" {
		naLabel = rs.NALabel
	}
	if rs == nil || !rs.Enabled {
		return naLabel
	}

	for _, name := range rs.RequiredSignals {
		label, ok := labels[name]
		// Signal labels are always UP/DOWN/NA regardless of the configured
		// output na_label, so the short circuit tests the literal.
		if !ok || label == "NA" {
			return naLabel
		}
	}

	fallback := ""
	for _, name := range rs.LabelsOrder {
		rule := rs.Labels[name]
		if rule.Default {
			fallback = name
			continue
		}
		matched := true
		for _, cond := range rule.Conditions {
			if labels[cond.Signal] != cond.Is {
				matched = false
				break
			}
		}
		if matched {
			return name
		}
	}
	if fallback == "" {
		for name, rule := range rs.Labels {
			if rule.Default {
				fallback = name
				break
			}
		}
	}
	if fallback == "" {
		fallback = "MIXED"
	}
	return fallback
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
