package app

import (
	"context"
	"errors"

	"market-state-engine/internal/engine"
	"market-state-engine/internal/prices"
	"market-state-engine/internal/snapshot"
)

// Snapshot recomputes the engine and writes the latest record to state.json
// along with a changelog of transitions since the previous snapshot.
func (a *App) Snapshot(ctx context.Context, opts SnapshotOptions) error {
	if opts.InputPath == "" {
		return errors.New("--input is required")
	}
	if opts.OutDir == "" {
		opts.OutDir = "outputs"
	}

	table, err := prices.LoadFile(opts.InputPath, a.Config.Engine.Tickers())
	if err != nil {
		return err
	}

	records, err := engine.New(a.Config.Engine, a.Logger).Run(table)
	if err != nil {
		return err
	}
	latest := records[len(records)-1]

	prev, err := snapshot.Load(opts.OutDir)
	if err != nil {
		return err
	}
	if err := snapshot.Write(opts.OutDir, latest, prev); err != nil {
		return err
	}

	a.Logger.Info().
		Str("date", latest.Date).
		Str("state", latest.MarketState.Label).
		Str("dir", opts.OutDir).
		Msg("snapshot written")
	return nil
}
