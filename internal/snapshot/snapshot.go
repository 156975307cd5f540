package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"market-state-engine/internal/record"
)

const (
	stateFile     = "state.json"
	changelogFile = "CHANGELOG.md"
)

// Load reads the previous run's snapshot if one exists.
func Load(dir string) (*record.Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &rec, nil
}

// Write persists the latest record as state.json and a human-readable
// changelog describing the signal transitions since the previous snapshot.
func Write(dir string, current record.Record, prev *record.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stateFile), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	lines := []string{
		"# Market State Engine Daily Changelog",
		fmt.Sprintf("**Date:** %s", current.Date),
		fmt.Sprintf("**Version:** %s", current.Version),
		"",
		"## Signal Changes",
		DiffSummary(prev, &current),
		"",
		"---",
		fmt.Sprintf("*Generated at %s*", time.Now().UTC().Format(time.RFC3339)),
	}
	if err := os.WriteFile(filepath.Join(dir, changelogFile), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return nil
}

// Changes lists per-signal transitions between two records, sorted by signal
// name. The state label is included when it moved.
func Changes(prev, curr *record.Record) []string {
	if prev == nil || curr == nil {
		return nil
	}

	names := make([]string, 0, len(curr.Signals))
	for name := range curr.Signals {
		names = append(names, name)
	}
	sort.Strings(names)

	var changes []string
	for _, name := range names {
		currLabel := curr.Signals[name]
		prevLabel, ok := prev.Signals[name]
		if !ok {
			changes = append(changes, fmt.Sprintf("%s: NEW (%s)", name, currLabel))
			continue
		}
		if prevLabel != currLabel {
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", name, prevLabel, currLabel))
		}
	}
	if prev.MarketState.Label != curr.MarketState.Label {
		changes = append(changes, fmt.Sprintf("market_state: %s -> %s", prev.MarketState.Label, curr.MarketState.Label))
	}
	return changes
}

// DiffSummary renders the transition list as one changelog line.
func DiffSummary(prev, curr *record.Record) string {
	if prev == nil {
		return "Previous snapshot unavailable."
	}
	changes := Changes(prev, curr)
	if len(changes) == 0 {
		return "No signal changes."
	}
	return strings.Join(changes, "; ")
}
