package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"market-state-engine/internal/alerting"
	"market-state-engine/internal/config"
	"market-state-engine/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// ComputeOptions configure a compute pass.
type ComputeOptions struct {
	InputPath string
	OutPath   string
}

// ValidateOptions configure a validation pass.
type ValidateOptions struct {
	InputPath     string
	CanonicalPath string
	Epsilon       float64
}

// FetchOptions configure the price download.
type FetchOptions struct {
	OutPath string
	Start   string
}

// RunOptions configure the periodic refresh loop.
type RunOptions struct {
	InputPath string
	OutDir    string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting a signal series.
type ExportOptions struct {
	Signal    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// SnapshotOptions configure the snapshot command.
type SnapshotOptions struct {
	InputPath string
	OutDir    string
}
