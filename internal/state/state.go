package state

import (
	"fmt"
	"strings"

	"market-state-engine/internal/signal"
)

const (
	// FallbackLabel is the hardcoded catch-all when nothing matches and no
	// label is marked default.
	FallbackLabel = "MIXED"

	// RuleTagConfig tags decisions produced by the configured rule set.
	RuleTagConfig = "config"
	// RuleTagDisabled tags decisions produced while the rule set is off.
	RuleTagDisabled = "disabled"

	defaultNALabel = "NA"
)

// Condition requires one signal to carry one exact label.
type Condition struct {
	Signal string `mapstructure:"signal"`
	Is     string `mapstructure:"is"`
}

// LabelRule is the AND-set of conditions behind one aggregate label.
type LabelRule struct {
	Default    bool        `mapstructure:"default"`
	Conditions []Condition `mapstructure:"conditions"`
}

// RuleSet is the declarative market-state configuration: an ordered list of
// labels, each with its condition set, over a fixed set of required signals.
type RuleSet struct {
	Enabled         bool                 `mapstructure:"enabled"`
	OutputField     string               `mapstructure:"output_field"`
	NALabel         string               `mapstructure:"na_label"`
	RequiredSignals []string             `mapstructure:"required_signals"`
	LabelsOrder     []string             `mapstructure:"labels_order"`
	Labels          map[string]LabelRule `mapstructure:"labels"`
}

// Decision is the per-date outcome of the rule engine. Missing is only
// populated when a required signal was absent or NA.
type Decision struct {
	Label   string
	Rule    string
	Missing []string
}

// naLabel returns the configured NA label or its default.
func (rs *RuleSet) naLabel() string {
	if rs == nil || rs.NALabel == "" {
		return defaultNALabel
	}
	return rs.NALabel
}

// Validate fail-fast checks the rule set shape. It runs once at configuration
// load; a rule set that passes can never produce a per-date error.
// knownSignals is the set of signal names the engine declares.
func (rs *RuleSet) Validate(knownSignals map[string]bool) error {
	if rs == nil {
		return nil
	}
	if !rs.Enabled {
		return nil
	}

	if len(rs.RequiredSignals) == 0 {
		return fmt.Errorf("market_state: required_signals must be non-empty")
	}
	required := make(map[string]bool, len(rs.RequiredSignals))
	for _, name := range rs.RequiredSignals {
		if name == "" {
			return fmt.Errorf("market_state: required_signals contains an empty name")
		}
		if !knownSignals[name] {
			return fmt.Errorf("market_state: required signal %q is not a declared signal", name)
		}
		required[name] = true
	}

	if len(rs.LabelsOrder) == 0 {
		return fmt.Errorf("market_state: labels_order must be non-empty")
	}

	defaults := 0
	for _, rule := range rs.Labels {
		if rule.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("market_state: at most one label may be marked default, found %d", defaults)
	}

	for _, label := range rs.LabelsOrder {
		rule, ok := rs.Labels[label]
		if !ok {
			return fmt.Errorf("market_state: label %q in labels_order has no definition", label)
		}
		if rule.Default {
			continue
		}
		if len(rule.Conditions) == 0 {
			return fmt.Errorf("market_state: non-default label %q has no conditions", label)
		}
		for _, cond := range rule.Conditions {
			if !required[cond.Signal] {
				return fmt.Errorf("market_state: label %q references signal %q outside required_signals", label, cond.Signal)
			}
			if strings.TrimSpace(cond.Is) == "" {
				return fmt.Errorf("market_state: label %q has a condition without a target label", label)
			}
		}
	}

	return nil
}

// Evaluate resolves one date's aggregate label from that date's signal
// labels. It is a pure function of (signals, rule set) with no cross-date
// state.
//
// Required signals that are absent or NA short-circuit evaluation: the date
// reports the NA label with the missing names, even if the remaining signals
// would satisfy a rule. Otherwise labels_order is walked in declared order
// and the first fully satisfied condition set wins; later matches are never
// evaluated. With no match, the default-marked label applies, or the
// hardcoded catch-all.
func (rs *RuleSet) Evaluate(signals map[string]string) Decision {
	if rs == nil || !rs.Enabled {
		return Decision{Label: rs.naLabel(), Rule: RuleTagDisabled}
	}

	actual := make(map[string]string, len(rs.RequiredSignals))
	var missing []string
	for _, name := range rs.RequiredSignals {
		label, ok := signals[name]
		// The short circuit keys on the signal-level NA literal, not the
		// configured output NA label; the two coincide only by default.
		if !ok || label == string(signal.LabelNA) {
			missing = append(missing, name)
			continue
		}
		actual[name] = label
	}
	if len(missing) > 0 {
		return Decision{Label: rs.naLabel(), Rule: RuleTagConfig, Missing: missing}
	}

	var fallback string
	for _, label := range rs.LabelsOrder {
		rule := rs.Labels[label]
		if rule.Default {
			fallback = label
			continue
		}
		if satisfied(rule.Conditions, actual) {
			return Decision{Label: label, Rule: RuleTagConfig}
		}
	}

	if fallback == "" {
		for name, rule := range rs.Labels {
			if rule.Default {
				fallback = name
				break
			}
		}
	}
	if fallback == "" {
		fallback = FallbackLabel
	}
	return Decision{Label: fallback, Rule: RuleTagConfig}
}

func satisfied(conditions []Condition, actual map[string]string) bool {
	for _, cond := range conditions {
		if actual[cond.Signal] != cond.Is {
			return false
		}
	}
	return true
}
