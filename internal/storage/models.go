package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RecordRow is a persisted canonical record.
type RecordRow struct {
	Date       time.Time
	StateLabel string
	RuleTag    string
	Signals    json.RawMessage
	Metrics    json.RawMessage
	Version    string
	CreatedAt  time.Time
}

// MetricRow is one signal's numeric derivation for a date, stored as NUMERIC
// so the database carries exact decimal text rather than binary floats.
// Value and SMA are nil in their unfilled/missing states.
type MetricRow struct {
	Date   time.Time
	Signal string
	Label  string
	Value  *decimal.Decimal
	SMA    *decimal.Decimal
}

// TransitionRow audits a market-state label change observed between runs.
type TransitionRow struct {
	ID        int64
	Date      time.Time
	FromLabel string
	ToLabel   string
	Changes   []string
	CreatedAt time.Time
}
