package pipeline

import (
	"time"

	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/query"
)

// carryOverSlack is the tolerance around an output_interval boundary
// within which a closed buffer's end_time counts as landing on it (spec
// §4.8 "within 2 s of an output_interval boundary").
const carryOverSlack = 2 * time.Second

// carryOver is the single side buffer two-stage mode threads across
// Interval-sized closes until an OutputInterval boundary is reached
// (spec §4.8, §4 Non-goals "a single carry-over buffer").
type carryOver struct {
	active    bool
	result    *odflow.Queue
	startTime time.Time
	endTime   time.Time
}

// merge is the "restore" half of spec §4.8: if idle time since the last
// saved end_time exceeds output_interval+2s the carry-over is stale and
// discarded; otherwise its odflows are rolled into buf's hashes (by key,
// so HHH's lattice aggregation naturally merges them with this
// interval's own traffic) and buf's start_time is pulled back to the
// carry-over's.
func (c *carryOver) merge(buf *ingest.Response, q *query.Query) {
	if !c.active {
		return
	}

	idle := buf.StartTime.Sub(c.endTime)
	if q.OutputInterval <= 0 || idle > q.OutputInterval+carryOverSlack {
		c.reset()
		return
	}

	c.result.Each(func(o *odflow.Odflow) {
		h := buf.IPv4
		if o.AF == odflow.AF_INET6 {
			h = buf.IPv6
		}
		merged := h.AddCount(o.Spec, o.AF, o.Byte, o.Packet)
		if o.Sub.Len() > 0 {
			odflow.MoveAll(&merged.Sub, &o.Sub)
		}
	})

	if buf.StartTime.IsZero() || c.startTime.Before(buf.StartTime) {
		buf.StartTime = c.startTime
	}
	c.reset()
}

// shouldEmit decides, after this pass's HHH run, whether the interval
// boundary has been reached (spec §4.8 "mark emit after merge"): true
// when buf.EndTime lies within carryOverSlack of the nearest multiple of
// outputInterval from buf.StartTime.
func (c *carryOver) shouldEmit(buf *ingest.Response, q *query.Query) bool {
	if q.OutputInterval <= 0 {
		return true
	}
	elapsed := buf.EndTime.Sub(buf.StartTime)
	remainder := elapsed % q.OutputInterval
	distToPrev := remainder
	distToNext := q.OutputInterval - remainder
	return distToPrev <= carryOverSlack || distToNext <= carryOverSlack
}

// save stashes result and buf's times for the next invocation's merge.
func (c *carryOver) save(buf *ingest.Response, result *odflow.Queue) {
	c.active = true
	c.result = result
	c.startTime = buf.StartTime
	c.endTime = buf.EndTime
}

func (c *carryOver) reset() {
	c.active = false
	c.result = nil
	c.startTime = time.Time{}
	c.endTime = time.Time{}
}
