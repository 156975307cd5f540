package state

import (
	"reflect"
	"testing"
)

func riskRuleSet() *RuleSet {
	return &RuleSet{
		Enabled:         true,
		OutputField:     "market_state",
		NALabel:         "NA",
		RequiredSignals: []string{"tech", "utilities", "rates"},
		LabelsOrder:     []string{"RISK_ON", "RISK_OFF", "MIXED"},
		Labels: map[string]LabelRule{
			"RISK_ON": {Conditions: []Condition{
				{Signal: "tech", Is: "UP"},
				{Signal: "utilities", Is: "DOWN"},
				{Signal: "rates", Is: "DOWN"},
			}},
			"RISK_OFF": {Conditions: []Condition{
				{Signal: "tech", Is: "DOWN"},
				{Signal: "utilities", Is: "UP"},
				{Signal: "rates", Is: "UP"},
			}},
			"MIXED": {Default: true},
		},
	}
}

func TestEvaluateFirstMatch(t *testing.T) {
	rs := riskRuleSet()
	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "DOWN", "rates": "DOWN"})
	if got.Label != "RISK_ON" || got.Rule != RuleTagConfig {
		t.Fatalf("want RISK_ON via config, got %+v", got)
	}
	if got.Missing != nil {
		t.Fatalf("missing should be absent, got %v", got.Missing)
	}
}

func TestEvaluateOrderWins(t *testing.T) {
	// Two labels with identical conditions: the earlier in labels_order wins.
	rs := riskRuleSet()
	rs.LabelsOrder = []string{"FIRST", "SECOND", "MIXED"}
	same := []Condition{{Signal: "tech", Is: "UP"}}
	rs.Labels = map[string]LabelRule{
		"FIRST":  {Conditions: same},
		"SECOND": {Conditions: same},
		"MIXED":  {Default: true},
	}
	rs.RequiredSignals = []string{"tech"}

	got := rs.Evaluate(map[string]string{"tech": "UP"})
	if got.Label != "FIRST" {
		t.Fatalf("first match must win, got %s", got.Label)
	}
}

func TestEvaluateMissingSignalShortCircuits(t *testing.T) {
	rs := riskRuleSet()
	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "DOWN"})
	if got.Label != "NA" || got.Rule != RuleTagConfig {
		t.Fatalf("missing required signal must yield NA via config, got %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, []string{"rates"}) {
		t.Fatalf("want missing [rates], got %v", got.Missing)
	}
}

func TestEvaluateNASignalCountsAsMissing(t *testing.T) {
	rs := riskRuleSet()
	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "DOWN", "rates": "NA"})
	if got.Label != "NA" {
		t.Fatalf("NA required signal must short-circuit, got %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, []string{"rates"}) {
		t.Fatalf("want missing [rates], got %v", got.Missing)
	}
}

func TestEvaluateNASignalWithCustomOutputLabel(t *testing.T) {
	// The short circuit keys on the literal NA a signal carries, not on the
	// configured output label. A required signal at NA must still count as
	// missing when na_label is something else entirely.
	rs := riskRuleSet()
	rs.NALabel = "UNKNOWN"

	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "UP", "rates": "NA"})
	if got.Label != "UNKNOWN" || got.Rule != RuleTagConfig {
		t.Fatalf("NA required signal must yield the output NA label, got %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, []string{"rates"}) {
		t.Fatalf("want missing [rates], got %v", got.Missing)
	}
}

func TestEvaluateDefaultLabel(t *testing.T) {
	rs := riskRuleSet()
	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "UP", "rates": "DOWN"})
	if got.Label != "MIXED" || got.Rule != RuleTagConfig {
		t.Fatalf("no match must fall back to the default label, got %+v", got)
	}
}

func TestEvaluateHardcodedFallback(t *testing.T) {
	rs := riskRuleSet()
	rs.LabelsOrder = []string{"RISK_ON", "RISK_OFF"}
	delete(rs.Labels, "MIXED")

	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "UP", "rates": "DOWN"})
	if got.Label != FallbackLabel {
		t.Fatalf("without a default the hardcoded catch-all applies, got %s", got.Label)
	}
}

func TestEvaluateDisabled(t *testing.T) {
	rs := riskRuleSet()
	rs.Enabled = false
	got := rs.Evaluate(map[string]string{"tech": "UP", "utilities": "DOWN", "rates": "DOWN"})
	if got.Label != "NA" || got.Rule != RuleTagDisabled {
		t.Fatalf("disabled rule set must report the NA label, got %+v", got)
	}
}

func TestEvaluateNilRuleSet(t *testing.T) {
	var rs *RuleSet
	got := rs.Evaluate(map[string]string{"tech": "UP"})
	if got.Label != "NA" || got.Rule != RuleTagDisabled {
		t.Fatalf("absent rule set behaves as disabled, got %+v", got)
	}
}

func TestEvaluateStateless(t *testing.T) {
	rs := riskRuleSet()
	on := map[string]string{"tech": "UP", "utilities": "DOWN", "rates": "DOWN"}
	off := map[string]string{"tech": "DOWN", "utilities": "UP", "rates": "UP"}
	if rs.Evaluate(on).Label != "RISK_ON" {
		t.Fatal("first evaluation wrong")
	}
	if rs.Evaluate(off).Label != "RISK_OFF" {
		t.Fatal("second evaluation wrong")
	}
	if rs.Evaluate(on).Label != "RISK_ON" {
		t.Fatal("evaluation must not carry state across calls")
	}
}

func TestValidate(t *testing.T) {
	known := map[string]bool{"tech": true, "utilities": true, "rates": true}

	if err := riskRuleSet().Validate(known); err != nil {
		t.Fatalf("valid rule set rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RuleSet)
	}{
		{"empty required_signals", func(rs *RuleSet) { rs.RequiredSignals = nil }},
		{"unknown required signal", func(rs *RuleSet) { rs.RequiredSignals = []string{"tech", "vix"} }},
		{"empty labels_order", func(rs *RuleSet) { rs.LabelsOrder = nil }},
		{"undefined label in order", func(rs *RuleSet) { rs.LabelsOrder = append(rs.LabelsOrder, "PANIC") }},
		{"non-default label without conditions", func(rs *RuleSet) {
			rs.Labels["RISK_ON"] = LabelRule{}
		}},
		{"condition outside required_signals", func(rs *RuleSet) {
			rs.Labels["RISK_ON"] = LabelRule{Conditions: []Condition{{Signal: "energy", Is: "UP"}}}
		}},
		{"condition without target", func(rs *RuleSet) {
			rs.Labels["RISK_ON"] = LabelRule{Conditions: []Condition{{Signal: "tech"}}}
		}},
		{"two defaults", func(rs *RuleSet) {
			rs.Labels["RISK_OFF"] = LabelRule{Default: true}
		}},
	}
	for _, tc := range cases {
		rs := riskRuleSet()
		tc.mutate(rs)
		if err := rs.Validate(known); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateDisabledSkipsChecks(t *testing.T) {
	rs := &RuleSet{Enabled: false}
	if err := rs.Validate(nil); err != nil {
		t.Fatalf("disabled rule set should not be validated: %v", err)
	}
	var nilRS *RuleSet
	if err := nilRS.Validate(nil); err != nil {
		t.Fatalf("absent rule set should not be validated: %v", err)
	}
}
