package query

import (
	"testing"
	"time"
)

func TestFromMapOverridesDefaults(t *testing.T) {
	m := map[string]any{
		"criteria":           "packet",
		"interval":           30,
		"output_interval":    120,
		"threshold":          2.5,
		"nflows":             50,
		"disable_heuristics": 2,
	}
	q := FromMap(m)

	if q.Criteria != CriteriaPacket {
		t.Fatalf("criteria = %v, want packet", q.Criteria)
	}
	if q.Interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", q.Interval)
	}
	if q.OutputInterval != 120*time.Second {
		t.Fatalf("output_interval = %v, want 120s", q.OutputInterval)
	}
	if q.Threshold != 2.5 {
		t.Fatalf("threshold = %v, want 2.5", q.Threshold)
	}
	if q.NFlows != 50 {
		t.Fatalf("nflows = %v, want 50", q.NFlows)
	}
	if q.Heuristics != HeuristicsNone {
		t.Fatalf("heuristics = %v, want HeuristicsNone", q.Heuristics)
	}
	// unset fields keep DefaultQuery's values
	if q.MaxHashEntries != DefaultQuery.MaxHashEntries {
		t.Fatalf("max_hashentries = %v, want default %v", q.MaxHashEntries, DefaultQuery.MaxHashEntries)
	}
}

func TestFromMapAcceptsStringNumbers(t *testing.T) {
	// flag values and JSON config values don't always arrive as the
	// expected Go type; cast.To* should coerce strings too.
	q := FromMap(map[string]any{"interval": "45", "threshold": "1.5"})
	if q.Interval != 45*time.Second {
		t.Fatalf("interval = %v, want 45s", q.Interval)
	}
	if q.Threshold != 1.5 {
		t.Fatalf("threshold = %v, want 1.5", q.Threshold)
	}
}

func TestTwoStage(t *testing.T) {
	q := Query{Interval: 60 * time.Second, OutputInterval: 0}
	if q.TwoStage() {
		t.Fatal("TwoStage() = true with OutputInterval 0, want false")
	}

	q.OutputInterval = 60 * time.Second
	if q.TwoStage() {
		t.Fatal("TwoStage() = true with OutputInterval == Interval, want false")
	}

	q.OutputInterval = 300 * time.Second
	if !q.TwoStage() {
		t.Fatal("TwoStage() = false with OutputInterval > Interval, want true")
	}
}

func TestSubAttrThreshold(t *testing.T) {
	q := Query{Heuristics: HeuristicsAll}
	thresh, thresh2 := q.SubAttrThreshold(10, 20)
	if thresh != 40 || thresh2 != 80 {
		t.Fatalf("got (%d, %d), want (40, 80)", thresh, thresh2)
	}

	q.Heuristics = HeuristicsNone
	thresh, thresh2 = q.SubAttrThreshold(10, 20)
	if thresh != 10 || thresh2 != 20 {
		t.Fatalf("got (%d, %d), want unscaled (10, 20)", thresh, thresh2)
	}
}

func TestCriteriaString(t *testing.T) {
	cases := map[Criteria]string{
		CriteriaByte:        "byte",
		CriteriaPacket:      "packet",
		CriteriaCombination: "combination",
		Criteria(99):        "unknown",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Fatalf("Criteria(%d).String() = %q, want %q", c, got, want)
		}
	}
}
