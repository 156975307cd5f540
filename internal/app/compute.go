package app

import (
	"context"
	"errors"
	"fmt"

	"market-state-engine/internal/engine"
	"market-state-engine/internal/prices"
	"market-state-engine/internal/record"
)

// Compute runs the engine over the price input and writes the canonical
// NDJSON stream. Records are additionally persisted when the database is
// configured.
func (a *App) Compute(ctx context.Context, opts ComputeOptions) error {
	if opts.InputPath == "" {
		return errors.New("--input is required")
	}
	if opts.OutPath == "" {
		return errors.New("--out is required")
	}

	table, err := prices.LoadFile(opts.InputPath, a.Config.Engine.Tickers())
	if err != nil {
		return err
	}

	records, err := engine.New(a.Config.Engine, a.Logger).Run(table)
	if err != nil {
		return err
	}

	if err := record.WriteFile(opts.OutPath, records); err != nil {
		return fmt.Errorf("write canonical stream: %w", err)
	}
	a.Logger.Info().Int("records", len(records)).Str("out", opts.OutPath).Msg("canonical stream written")

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; persistence skipped")
		return nil
	}
	defer closeStore()

	for _, rec := range records {
		if err := store.UpsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("persist record %s: %w", rec.Date, err)
		}
	}
	a.Logger.Info().Int("records", len(records)).Msg("records persisted")
	return nil
}
