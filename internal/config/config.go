package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"market-state-engine/internal/logging"
	"market-state-engine/internal/signal"
	"market-state-engine/internal/state"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EngineConfig declares the signal set and the market-state rule set.
type EngineConfig struct {
	PriceField  string                       `mapstructure:"price_field"`
	Window      int                          `mapstructure:"window"`
	Bench       string                       `mapstructure:"bench"`
	Signals     map[string]signal.Definition `mapstructure:"signals"`
	MarketState *state.RuleSet               `mapstructure:"market_state"`
}

// ValidatorConfig tunes the cross-implementation comparison.
type ValidatorConfig struct {
	Epsilon    float64 `mapstructure:"epsilon"`
	MaxDisplay int     `mapstructure:"max_display"`
}

// FetchConfig covers the daily price download.
type FetchConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Start          string        `mapstructure:"start"`
}

// RefreshConfig governs the run-mode recompute cadence.
type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines state-transition notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram Bot API credentials and routing.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MSENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for name, def := range cfg.Engine.Signals {
		def.Name = name
		cfg.Engine.Signals[name] = def
	}
	restoreLabelCasing(cfg.Engine.MarketState)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// restoreLabelCasing rekeys the label map using the spelling from
// labels_order. Viper lowercases every map key it reads, but label names are
// part of the interchange contract and must keep their declared casing.
func restoreLabelCasing(rs *state.RuleSet) {
	if rs == nil || len(rs.Labels) == 0 {
		return
	}
	relabeled := make(map[string]state.LabelRule, len(rs.Labels))
	for have, rule := range rs.Labels {
		key := have
		for _, want := range rs.LabelsOrder {
			if strings.EqualFold(have, want) {
				key = want
				break
			}
		}
		relabeled[key] = rule
	}
	rs.Labels = relabeled
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "msengine")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.price_field", "adj_close")
	v.SetDefault("engine.window", 20)

	v.SetDefault("validator.epsilon", 1e-8)
	v.SetDefault("validator.max_display", 20)

	v.SetDefault("fetch.base_url", "https://stooq.com/q/d/l/")
	v.SetDefault("fetch.request_timeout", "15s")
	v.SetDefault("fetch.user_agent", "msengine/0.1")
	v.SetDefault("fetch.start", "2015-01-01")

	v.SetDefault("refresh.interval", "24h")
	v.SetDefault("refresh.align_to_interval", true)
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs the fail-fast checks: configuration problems surface here,
// at load, never during per-date evaluation.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Validator.Epsilon < 0 {
		return fmt.Errorf("validator.epsilon cannot be negative")
	}
	if c.Validator.MaxDisplay <= 0 {
		return fmt.Errorf("validator.max_display must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Validate checks the engine section: window, signal definitions, and the
// market-state rule set shape.
func (e *EngineConfig) Validate() error {
	if e.Window <= 0 {
		return fmt.Errorf("engine.window must be greater than zero")
	}
	if len(e.Signals) == 0 {
		return fmt.Errorf("engine.signals must declare at least one signal")
	}

	known := make(map[string]bool, len(e.Signals))
	for name, def := range e.Signals {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		known[name] = true
	}

	if err := e.MarketState.Validate(known); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Tickers returns the sorted union of every ticker the engine references,
// including the benchmark.
func (e *EngineConfig) Tickers() []string {
	set := make(map[string]bool)
	if e.Bench != "" {
		set[e.Bench] = true
	}
	for _, def := range e.Signals {
		for _, ticker := range def.Tickers() {
			set[ticker] = true
		}
	}
	tickers := make([]string, 0, len(set))
	for ticker := range set {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// SignalNames returns the declared signal names in sorted order.
func (e *EngineConfig) SignalNames() []string {
	names := make([]string, 0, len(e.Signals))
	for name := range e.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxWindow returns the largest window any signal uses.
func (e *EngineConfig) MaxWindow() int {
	max := e.Window
	for _, def := range e.Signals {
		if def.Window > max {
			max = def.Window
		}
	}
	return max
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
