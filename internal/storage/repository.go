package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"market-state-engine/internal/record"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertRecordSQL = `INSERT INTO canonical_records (
        record_date,
        state_label,
        rule_tag,
        signals,
        metrics,
        version
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (record_date) DO UPDATE
    SET
        state_label = EXCLUDED.state_label,
        rule_tag    = EXCLUDED.rule_tag,
        signals     = EXCLUDED.signals,
        metrics     = EXCLUDED.metrics,
        version     = EXCLUDED.version;`

	upsertMetricSQL = `INSERT INTO signal_metrics (
        record_date,
        signal,
        label,
        value,
        sma
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (record_date, signal) DO UPDATE
    SET label = EXCLUDED.label,
        value = EXCLUDED.value,
        sma   = EXCLUDED.sma;`

	listRecentRecordsSQL = `SELECT
        record_date,
        state_label,
        rule_tag,
        signals,
        metrics,
        version,
        created_at
    FROM canonical_records
    ORDER BY record_date DESC
    LIMIT $1;`

	listMetricsBetweenSQL = `SELECT
        record_date,
        signal,
        label,
        value,
        sma
    FROM signal_metrics
    WHERE signal = $1
      AND record_date >= $2
      AND record_date < $3
    ORDER BY record_date;`

	countRecordsSQL = `SELECT COUNT(*) FROM canonical_records;`

	insertTransitionSQL = `INSERT INTO state_transitions (
        record_date,
        from_label,
        to_label,
        changes
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (record_date) DO UPDATE
    SET from_label = EXCLUDED.from_label,
        to_label   = EXCLUDED.to_label,
        changes    = EXCLUDED.changes
    RETURNING id, record_date, from_label, to_label, changes, created_at;`

	listRecentTransitionsSQL = `SELECT
        id,
        record_date,
        from_label,
        to_label,
        changes,
        created_at
    FROM state_transitions
    ORDER BY record_date DESC
    LIMIT $1;`
)

// RecordStore defines operations for canonical record persistence.
type RecordStore interface {
	UpsertRecord(ctx context.Context, rec record.Record) error
	ListRecentRecords(ctx context.Context, limit int) ([]RecordRow, error)
	ListMetricsBetween(ctx context.Context, signal string, from, to time.Time) ([]MetricRow, error)
	CountRecords(ctx context.Context) (int64, error)
}

// TransitionStore defines operations for state-transition auditing.
type TransitionStore interface {
	InsertTransition(ctx context.Context, row TransitionRow) (TransitionRow, error)
	ListRecentTransitions(ctx context.Context, limit int) ([]TransitionRow, error)
}

// Store aggregates access to canonical records and transitions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertRecord persists one canonical record and its per-signal metrics.
func (s *Store) UpsertRecord(ctx context.Context, rec record.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", rec.Date)
	if err != nil {
		return fmt.Errorf("parse record date: %w", err)
	}

	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	if _, err := pool.Exec(ctx, upsertRecordSQL,
		date,
		rec.MarketState.Label,
		rec.MarketState.Rule,
		signals,
		metrics,
		rec.Version,
	); err != nil {
		return fmt.Errorf("upsert canonical record: %w", err)
	}

	for name, metric := range rec.Metrics {
		var value, sma interface{}
		if metric.Value != nil {
			value = floatDecimal(*metric.Value).String()
		}
		if metric.SMA != nil {
			sma = floatDecimal(*metric.SMA).String()
		}
		if _, err := pool.Exec(ctx, upsertMetricSQL, date, name, rec.Signals[name], value, sma); err != nil {
			return fmt.Errorf("upsert metric %s: %w", name, err)
		}
	}
	return nil
}

// ListRecentRecords lists the most recent records ordered by descending date.
func (s *Store) ListRecentRecords(ctx context.Context, limit int) ([]RecordRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRecordsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]RecordRow, 0, limit)
	for rows.Next() {
		var row RecordRow
		if err := rows.Scan(&row.Date, &row.StateLabel, &row.RuleTag, &row.Signals, &row.Metrics, &row.Version, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ListMetricsBetween lists one signal's metric rows within a date window.
func (s *Store) ListMetricsBetween(ctx context.Context, signal string, from, to time.Time) ([]MetricRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetricsBetweenSQL, signal, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list metrics between: %w", queryErr)
	}
	defer rows.Close()

	metrics := make([]MetricRow, 0)
	for rows.Next() {
		row, scanErr := scanMetricRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		metrics = append(metrics, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return metrics, nil
}

// CountRecords returns the number of persisted records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, countRecordsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// InsertTransition records a market-state label change.
func (s *Store) InsertTransition(ctx context.Context, row TransitionRow) (TransitionRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return TransitionRow{}, err
	}

	var out TransitionRow
	if err := pool.QueryRow(ctx, insertTransitionSQL, row.Date, row.FromLabel, row.ToLabel, row.Changes).
		Scan(&out.ID, &out.Date, &out.FromLabel, &out.ToLabel, &out.Changes, &out.CreatedAt); err != nil {
		return TransitionRow{}, fmt.Errorf("insert transition: %w", err)
	}
	return out, nil
}

// ListRecentTransitions lists recent state changes, newest first.
func (s *Store) ListRecentTransitions(ctx context.Context, limit int) ([]TransitionRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTransitionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transitions: %w", queryErr)
	}
	defer rows.Close()

	transitions := make([]TransitionRow, 0, limit)
	for rows.Next() {
		var row TransitionRow
		if err := rows.Scan(&row.ID, &row.Date, &row.FromLabel, &row.ToLabel, &row.Changes, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		transitions = append(transitions, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return transitions, nil
}

func scanMetricRow(rows pgx.Rows) (MetricRow, error) {
	var row MetricRow
	var value, sma *string
	if err := rows.Scan(&row.Date, &row.Signal, &row.Label, &value, &sma); err != nil {
		return MetricRow{}, fmt.Errorf("scan metric row: %w", err)
	}
	if value != nil {
		parsed, err := decimal.NewFromString(*value)
		if err != nil {
			return MetricRow{}, fmt.Errorf("parse metric value: %w", err)
		}
		row.Value = &parsed
	}
	if sma != nil {
		parsed, err := decimal.NewFromString(*sma)
		if err != nil {
			return MetricRow{}, fmt.Errorf("parse metric sma: %w", err)
		}
		row.SMA = &parsed
	}
	return row, nil
}

// floatDecimal converts a finite float to decimal without the precision loss
// of going through float formatting defaults.
func floatDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

var _ RecordStore = (*Store)(nil)
var _ TransitionStore = (*Store)(nil)
