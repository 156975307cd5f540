package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"market-state-engine/internal/config"
	"market-state-engine/internal/prices"
	"market-state-engine/internal/record"
	"market-state-engine/internal/signal"
)

// Engine is the primary single-pass transform from price rows to canonical
// records. It holds the immutable engine configuration; every run is a pure
// function of the price table.
type Engine struct {
	cfg    config.EngineConfig
	logger zerolog.Logger
}

// New constructs an engine from validated configuration.
func New(cfg config.EngineConfig, logger zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger.With().Str("component", "engine").Logger()}
}

// EvaluateSignals computes every configured signal series over the table.
// Signals are independent of each other; data-quality conditions (non-finite
// ratios) are logged per date and carried as NA rather than aborting the run.
func (e *Engine) EvaluateSignals(table *prices.Table) (map[string]signal.Series, error) {
	if table.Len() < e.cfg.MaxWindow() {
		return nil, fmt.Errorf("engine: dataset has %d rows, shorter than window %d", table.Len(), e.cfg.MaxWindow())
	}

	series := make(map[string]signal.Series, len(e.cfg.Signals))
	for _, name := range e.cfg.SignalNames() {
		s, err := signal.Evaluate(e.cfg.Signals[name], table.Columns, e.cfg.Window)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		if s.BadValues > 0 {
			for i, point := range s.Points {
				if !point.ValueOK {
					e.logger.Warn().
						Str("signal", name).
						Str("date", table.Dates[i]).
						Msg("non-finite raw value treated as missing data")
				}
			}
		}
		series[name] = s
	}
	return series, nil
}

// Run produces one canonical record per date.
func (e *Engine) Run(table *prices.Table) ([]record.Record, error) {
	series, err := e.EvaluateSignals(table)
	if err != nil {
		return nil, err
	}

	inputs := record.Inputs{
		Window:     e.cfg.Window,
		Bench:      e.cfg.Bench,
		Tickers:    e.cfg.Tickers(),
		PriceField: e.cfg.PriceField,
	}

	records := make([]record.Record, 0, table.Len())
	for i, date := range table.Dates {
		points := make(map[string]signal.Point, len(series))
		labels := make(map[string]string, len(series))
		for name, s := range series {
			points[name] = s.Points[i]
			labels[name] = string(s.Points[i].Label)
		}

		decision := e.cfg.MarketState.Evaluate(labels)

		rec, err := record.Assemble(date, points, decision, inputs)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		records = append(records, rec)
	}

	e.logger.Debug().Int("records", len(records)).Msg("run complete")
	return records, nil
}
