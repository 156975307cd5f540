package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"market-state-engine/internal/prices"
	"market-state-engine/internal/record"
	"market-state-engine/internal/validate"
)

// Validate independently recomputes signals and state from the price input
// and diffs the result against a canonical record stream. Mismatches go to
// stderr, capped for display but fully counted. The returned report is the
// validator's normal output even when the streams disagree.
func (a *App) Validate(ctx context.Context, opts ValidateOptions) (validate.Report, error) {
	if opts.InputPath == "" {
		return validate.Report{}, errors.New("--input is required")
	}
	if opts.CanonicalPath == "" {
		return validate.Report{}, errors.New("--canonical is required")
	}

	table, err := prices.LoadFile(opts.InputPath, a.Config.Engine.Tickers())
	if err != nil {
		return validate.Report{}, err
	}

	canonical, err := record.ReadFile(opts.CanonicalPath)
	if err != nil {
		return validate.Report{}, err
	}

	epsilon := opts.Epsilon
	if epsilon <= 0 {
		epsilon = a.Config.Validator.Epsilon
	}

	report, err := validate.Run(a.Config.Engine, table, canonical, validate.Options{Epsilon: epsilon})
	if err != nil {
		return validate.Report{}, err
	}

	a.reportMismatches(report)
	return report, nil
}

func (a *App) reportMismatches(report validate.Report) {
	if report.OK() {
		a.Logger.Info().Int("records", report.RecordsChecked).Msg("streams agree")
		return
	}

	limit := a.Config.Validator.MaxDisplay
	for i, m := range report.Mismatches {
		if i == limit {
			fmt.Fprintf(os.Stderr, "... %d further mismatches suppressed\n", len(report.Mismatches)-limit)
			break
		}
		fmt.Fprintf(os.Stderr, "mismatch %s %s (%s): canonical=%q computed=%q\n",
			m.Date, m.Field, m.Kind, m.Expected, m.Actual)
	}
	a.Logger.Error().
		Int("mismatches", len(report.Mismatches)).
		Int("records", report.RecordsChecked).
		Msg("streams disagree")
}
