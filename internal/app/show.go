package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// Show prints recent persisted records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	defer closeStore()

	rows, err := store.ListRecentRecords(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no records found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tState\tRule\tSignals\tVersion")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			row.Date.UTC().Format("2006-01-02"),
			row.StateLabel,
			row.RuleTag,
			summarizeSignals(row.Signals),
			row.Version,
		)
	}

	writer.Flush()
	return nil
}

func summarizeSignals(raw json.RawMessage) string {
	var signals map[string]string
	if err := json.Unmarshal(raw, &signals); err != nil {
		return "?"
	}
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+signals[name])
	}
	return strings.Join(parts, " ")
}
