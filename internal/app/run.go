package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"market-state-engine/internal/alerting"
	"market-state-engine/internal/engine"
	"market-state-engine/internal/prices"
	"market-state-engine/internal/record"
	"market-state-engine/internal/scheduler"
	"market-state-engine/internal/snapshot"
	"market-state-engine/internal/storage"
)

// Run executes the long-running refresh loop: on every interval the price
// input is re-read, the engine recomputed, the snapshot refreshed, and any
// market-state transition persisted and notified.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.InputPath == "" {
		return errors.New("--input is required")
	}
	if opts.OutDir == "" {
		opts.OutDir = "outputs"
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresh.Interval,
		AlignToStart: a.Config.Refresh.AlignToInterval,
		StartupDelay: a.Config.Refresh.StartupDelay,
	}, a.Logger)

	notifier := a.newNotifier()

	a.Logger.Info().Msg("starting refresh loop")
	err = sched.Run(ctx, func(ctx context.Context, tick time.Time) error {
		return a.refresh(ctx, opts, store, notifier)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh loop stopped")
	return nil
}

func (a *App) refresh(ctx context.Context, opts RunOptions, store *storage.Store, notifier alerting.Notifier) error {
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

	if store != nil {
		for _, rec := range records {
			if err := store.UpsertRecord(ctx, rec); err != nil {
				a.Logger.Error().Err(err).Str("date", rec.Date).Msg("failed to persist record")
			}
		}
	}

	if prev == nil || prev.MarketState.Label == latest.MarketState.Label {
		return nil
	}

	changes := snapshot.Changes(prev, &latest)
	a.Logger.Info().
		Str("from", prev.MarketState.Label).
		Str("to", latest.MarketState.Label).
		Strs("changes", changes).
		Msg("market state transitioned")

	if store != nil {
		if err := a.persistTransition(ctx, store, latest, prev, changes); err != nil {
			a.Logger.Error().Err(err).Msg("failed to persist transition")
		}
	}
	if notifier != nil {
		note := alerting.Notification{
			Date:      latest.Date,
			FromLabel: prev.MarketState.Label,
			ToLabel:   latest.MarketState.Label,
			Changes:   changes,
		}
		if err := notifier.Notify(ctx, note); err != nil {
			a.Logger.Error().Err(err).Msg("failed to dispatch notification")
		}
	}
	return nil
}

func (a *App) persistTransition(ctx context.Context, store *storage.Store, latest record.Record, prev *record.Record, changes []string) error {
	date, err := time.Parse(prices.DateLayout, latest.Date)
	if err != nil {
		return fmt.Errorf("parse record date: %w", err)
	}
	_, err = store.InsertTransition(ctx, storage.TransitionRow{
		Date:      date,
		FromLabel: prev.MarketState.Label,
		ToLabel:   latest.MarketState.Label,
		Changes:   changes,
	})
	return err
}
