// Package output implements the three result emitters (spec §6): the
// Aguri-format text summary (re-aggregation's own historical format),
// a structured JSON summary, and a terse debug dump — plus a
// SIGHUP-driven file rotator for long-running daemons.
package output

import (
	"time"

	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/query"
)

// Summary bundles one interval's (or, in two-stage/plot mode, one
// capture's) result set with the bookkeeping every emitter needs: totals
// for percentage columns, the time range, and the query that produced it.
type Summary struct {
	Query     *query.Query
	Result    *odflow.Queue
	StartTime time.Time
	EndTime   time.Time
	Interval  time.Duration
	NFlows    int

	TotalByte   uint64
	TotalPacket uint64

	// Timestamps and PlotInterval are set only when a plot.Plot backed
	// this summary (spec §4.9). The JSON and debug emitters write one
	// data row per timestamp except the last, so rows appear only when
	// Timestamps holds two or more entries; PlotInterval is not read by
	// any emitter.
	Timestamps   []time.Time
	PlotInterval time.Duration
}

func (s *Summary) criterionPct(o *odflow.Odflow) float64 {
	if s.Query.Criteria == query.CriteriaPacket {
		if s.TotalPacket == 0 {
			return 0
		}
		return float64(o.Packet) / float64(s.TotalPacket) * 100
	}
	if s.TotalByte == 0 {
		return 0
	}
	return float64(o.Byte) / float64(s.TotalByte) * 100
}

func (s *Summary) subPct(parent, sub *odflow.Odflow) float64 {
	if s.Query.Criteria == query.CriteriaPacket {
		if parent.Packet == 0 {
			return 0
		}
		return float64(sub.Packet) / float64(parent.Packet) * 100
	}
	if parent.Byte == 0 {
		return 0
	}
	return float64(sub.Byte) / float64(parent.Byte) * 100
}
