package signal

import (
	"testing"
)

func constant(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestEvaluateFlatSeriesNeverUp(t *testing.T) {
	columns := map[string][]float64{"TLT": constant(1, 25)}

	for _, rule := range []Rule{RuleGtSMA, RuleLtSMA} {
		def := Definition{Name: "rates", Kind: KindPriceProxy, Ticker: "TLT", Rule: rule}
		series, err := Evaluate(def, columns, 20)
		if err != nil {
			t.Fatalf("rule %s: %v", rule, err)
		}
		for i := 0; i < 19; i++ {
			if series.Points[i].Label != LabelNA {
				t.Fatalf("rule %s index %d: want NA, got %s", rule, i, series.Points[i].Label)
			}
		}
		for i := 19; i < 25; i++ {
			if series.Points[i].Label != LabelDown {
				t.Fatalf("rule %s index %d: flat series must resolve DOWN, got %s", rule, i, series.Points[i].Label)
			}
		}
	}
}

func TestEvaluateRelativeStrength(t *testing.T) {
	// XLE flat then up while SPY stays flat: ratio ends above its average.
	xle := append(constant(100, 10), constant(105, 11)...)
	columns := map[string][]float64{"XLE": xle, "SPY": constant(400, 21)}

	def := Definition{Name: "energy", Kind: KindRelativeStrength, A: "XLE", B: "SPY", Rule: RuleGtSMA}
	series, err := Evaluate(def, columns, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := series.Points[20]
	if last.Label != LabelUp {
		t.Fatalf("rising ratio should label UP, got %s (value=%v sma=%v)", last.Label, last.Value, last.SMA)
	}
	if last.Value != 105.0/400.0 {
		t.Fatalf("value should be the raw ratio, got %v", last.Value)
	}
}

func TestEvaluateLtSMARule(t *testing.T) {
	// TLT drops below its average: lt_sma labels UP (yields up).
	tlt := append(constant(110, 10), constant(105, 11)...)
	columns := map[string][]float64{"TLT": tlt}

	def := Definition{Name: "rates", Kind: KindPriceProxy, Ticker: "TLT", Rule: RuleLtSMA}
	series, err := Evaluate(def, columns, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := series.Points[20].Label; got != LabelUp {
		t.Fatalf("price below average should label UP under lt_sma, got %s", got)
	}
	if got := series.Points[19].Label; got != LabelUp {
		t.Fatalf("index 19 should already label UP, got %s", got)
	}
}

func TestEvaluateZeroDenominator(t *testing.T) {
	spy := constant(400, 25)
	spy[5] = 0 // division yields +Inf on this date
	columns := map[string][]float64{"XLK": constant(150, 25), "SPY": spy}

	def := Definition{Name: "tech", Kind: KindRelativeStrength, A: "XLK", B: "SPY", Rule: RuleGtSMA}
	series, err := Evaluate(def, columns, 5)
	if err != nil {
		t.Fatalf("a zero denominator must not fail the run: %v", err)
	}
	if series.BadValues != 1 {
		t.Fatalf("want 1 bad value recorded, got %d", series.BadValues)
	}
	if series.Points[5].ValueOK {
		t.Fatal("the non-finite ratio must be flagged")
	}
	// Every window containing index 5 is poisoned.
	for i := 5; i <= 9; i++ {
		if series.Points[i].Label != LabelNA {
			t.Fatalf("index %d: want NA while window contains the bad value, got %s", i, series.Points[i].Label)
		}
	}
	if series.Points[10].Label == LabelNA {
		t.Fatal("index 10: window no longer contains the bad value, label should resolve")
	}
}

func TestEvaluateWindowOverride(t *testing.T) {
	columns := map[string][]float64{"XLU": constant(65, 10)}
	def := Definition{Name: "utilities", Kind: KindPriceProxy, Ticker: "XLU", Rule: RuleGtSMA, Window: 3}
	series, err := Evaluate(def, columns, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Window != 3 {
		t.Fatalf("definition window must override the default, got %d", series.Window)
	}
	if series.Points[2].Label == LabelNA {
		t.Fatal("index 2 should be resolved under the overridden window")
	}
}

func TestEvaluateMissingTicker(t *testing.T) {
	def := Definition{Name: "tech", Kind: KindRelativeStrength, A: "XLK", B: "SPY", Rule: RuleGtSMA}
	if _, err := Evaluate(def, map[string][]float64{"XLK": constant(1, 5)}, 2); err == nil {
		t.Fatal("missing operand ticker must be an error")
	}
}

func TestDefinitionValidate(t *testing.T) {
	cases := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{"valid rs", Definition{Name: "x", Kind: KindRelativeStrength, A: "XLE", B: "SPY", Rule: RuleGtSMA}, false},
		{"valid proxy", Definition{Name: "x", Kind: KindPriceProxy, Ticker: "TLT", Rule: RuleLtSMA}, false},
		{"missing b", Definition{Name: "x", Kind: KindRelativeStrength, A: "XLE", Rule: RuleGtSMA}, true},
		{"missing ticker", Definition{Name: "x", Kind: KindPriceProxy, Rule: RuleGtSMA}, true},
		{"bad kind", Definition{Name: "x", Kind: "momentum", Ticker: "TLT", Rule: RuleGtSMA}, true},
		{"bad rule", Definition{Name: "x", Kind: KindPriceProxy, Ticker: "TLT", Rule: "crosses"}, true},
		{"negative window", Definition{Name: "x", Kind: KindPriceProxy, Ticker: "TLT", Rule: RuleGtSMA, Window: -1}, true},
	}
	for _, tc := range cases {
		err := tc.def.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
