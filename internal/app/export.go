package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"market-state-engine/internal/storage"
)

// Export renders one signal's persisted value/average series as CSV and/or a
// PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Signal == "" {
		return errors.New("--signal is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if _, ok := a.Config.Engine.Signals[opts.Signal]; !ok {
		return fmt.Errorf("signal %q is not declared in the configuration", opts.Signal)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.AddDate(-10, 0, 0)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	metrics, err := store.ListMetricsBetween(ctx, opts.Signal, from, to)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		a.Logger.Info().Str("signal", opts.Signal).Msg("no metrics found for export window")
		return nil
	}

	downsampled := downsampleMetrics(metrics, opts.MaxPoints)
	a.Logger.Info().Int("total", len(metrics)).Int("exported", len(downsampled)).Msg("exporting metrics")

	if opts.CSVPath != "" {
		if err := writeMetricsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeMetricsPNG(opts.PNGPath, opts.Signal, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsampleMetrics(metrics []storage.MetricRow, max int) []storage.MetricRow {
	if max <= 0 || len(metrics) <= max {
		return metrics
	}

	result := make([]storage.MetricRow, 0, max)
	step := float64(len(metrics)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(metrics) {
			idx = len(metrics) - 1
		}
		result = append(result, metrics[idx])
	}
	return result
}

func writeMetricsCSV(path string, metrics []storage.MetricRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "signal", "label", "value", "sma"}); err != nil {
		return err
	}
	for _, row := range metrics {
		rec := []string{
			row.Date.UTC().Format("2006-01-02"),
			row.Signal,
			row.Label,
			formatDecimal(row.Value),
			formatDecimal(row.SMA),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeMetricsPNG(path, name string, metrics []storage.MetricRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var x []time.Time
	var values, smas []float64
	var smaX []time.Time
	for _, row := range metrics {
		if row.Value == nil {
			continue
		}
		x = append(x, row.Date)
		values = append(values, row.Value.InexactFloat64())
		if row.SMA != nil {
			smaX = append(smaX, row.Date)
			smas = append(smas, row.SMA.InexactFloat64())
		}
	}
	if len(x) == 0 {
		return errors.New("no finite values to chart")
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           name,
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Value",
				XValues: x,
				YValues: values,
			},
			chart.TimeSeries{
				Name:    "SMA",
				XValues: smaX,
				YValues: smas,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
