// Package query defines the read-only aggregation configuration (spec §3
// Query, §6 Configuration surface) shared by the ingest adapter, the HHH
// engine, and the pipeline driver.
package query

import (
	"time"

	"github.com/odflow/odflow/prefix"
	"github.com/spf13/cast"
)

// Criteria selects the dimension that defines "heavy" (spec GLOSSARY).
type Criteria int

const (
	CriteriaByte Criteria = iota + 1
	CriteriaPacket
	CriteriaCombination
)

func (c Criteria) String() string {
	switch c {
	case CriteriaByte:
		return "byte"
	case CriteriaPacket:
		return "packet"
	case CriteriaCombination:
		return "combination"
	default:
		return "unknown"
	}
}

// HeuristicLevel controls which of HHH's default heuristics are enabled
// (spec §6 disable_heuristics: 0/1/2).
type HeuristicLevel int

const (
	HeuristicsAll       HeuristicLevel = 0 // all heuristics on
	HeuristicsStrictSub HeuristicLevel = 1 // keep the strict sub-attribute multiplier only
	HeuristicsNone      HeuristicLevel = 2 // disable both
)

// Query is the read-only configuration for one aggregation run (spec §3).
type Query struct {
	Criteria Criteria

	Interval       time.Duration // aggregation interval
	OutputInterval time.Duration // optional, enables two-stage mode when > Interval
	Threshold      float64       // percent; default 1 for re-aggregation, 3 for plot
	NFlows         int           // optional cap on output size, 0 = unbounded

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	MaxHashEntries int // default 1_000_000, triggers early rotation
	Heuristics     HeuristicLevel

	Filter *Filter // optional address/protocol filter; nil = no filter
}

// Filter is spec §6's "filter expression over address or protocol/port
// space": Addr, if set, constrains the flow's address-side prefix.Spec;
// Proto, if set, separately constrains the 3-byte protocol/port domain
// (spec §3, DomainProto's 24-bit [proto][port] key) that odflow's
// protocol sub-queue is keyed on. Either half may be nil, meaning that
// half imposes no constraint; a record must overlap both set halves to
// pass.
type Filter struct {
	Addr  *prefix.Spec
	Proto *prefix.Spec
}

// DefaultQuery supplies every default value, mirroring the teacher's
// package-level Options default literal.
var DefaultQuery = Query{
	Criteria:       CriteriaByte,
	Threshold:      1,
	MaxHashEntries: 1_000_000,
	Heuristics:     HeuristicsAll,
}

// FromMap builds a Query from a loosely-typed configuration map (as read
// from flags or a JSON config file), starting from DefaultQuery and
// overriding any key present in m. Uses spf13/cast to coerce values of
// unknown concrete type.
func FromMap(m map[string]any) Query {
	q := DefaultQuery
	if v, ok := m["criteria"]; ok {
		switch cast.ToString(v) {
		case "byte":
			q.Criteria = CriteriaByte
		case "packet":
			q.Criteria = CriteriaPacket
		case "combination":
			q.Criteria = CriteriaCombination
		}
	}
	if v, ok := m["interval"]; ok {
		q.Interval = time.Duration(cast.ToInt64(v)) * time.Second
	}
	if v, ok := m["output_interval"]; ok {
		q.OutputInterval = time.Duration(cast.ToInt64(v)) * time.Second
	}
	if v, ok := m["threshold"]; ok {
		q.Threshold = cast.ToFloat64(v)
	}
	if v, ok := m["nflows"]; ok {
		q.NFlows = cast.ToInt(v)
	}
	if v, ok := m["max_hashentries"]; ok {
		q.MaxHashEntries = cast.ToInt(v)
	}
	if v, ok := m["disable_heuristics"]; ok {
		q.Heuristics = HeuristicLevel(cast.ToInt(v))
	}
	if v, ok := m["duration"]; ok {
		q.Duration = time.Duration(cast.ToInt64(v)) * time.Second
	}
	if v, ok := m["start_time"]; ok {
		q.StartTime = cast.ToTime(v)
	}
	if v, ok := m["end_time"]; ok {
		q.EndTime = cast.ToTime(v)
	}
	return q
}

// TwoStage reports whether the query's OutputInterval configures
// two-stage aggregation (spec §4.8).
func (q *Query) TwoStage() bool {
	return q.OutputInterval > q.Interval
}

// SubAttrThreshold scales thresh/thresh2 for a per-parent sub-attribute
// HHH run (spec §4.5 "Thresholds"): the default "stricter sub-attribute"
// heuristic multiplies by 4 unless heuristics level 2 disabled it.
func (q *Query) SubAttrThreshold(thresh, thresh2 uint64) (uint64, uint64) {
	if q.Heuristics < HeuristicsNone {
		thresh *= 4
		thresh2 *= 4
	}
	return thresh, thresh2
}
