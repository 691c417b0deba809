package plot

import (
	"time"

	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// Plot accumulates, per time slot, how much of each already-known
// output odflow's traffic arrived during that slot (spec §4.9). It does
// not discover new odflows: Seed must be called once with the final
// result set (typically the re-aggregated HHH output) before the first
// AddSlot/AddUpInterval pass.
type Plot struct {
	Result     *odflow.Queue
	Criteria   query.Criteria
	Timestamps []time.Time
	Interval   time.Duration
}

// New builds a Plot with its first timestamp set to start
// (agurim.c:plot_init "insert the first timestamp").
func New(start time.Time, interval time.Duration) *Plot {
	return &Plot{
		Interval:   interval,
		Timestamps: []time.Time{start},
	}
}

// Seed installs the odflow set every subsequent AddUpInterval call folds
// counts into; each odflow gets one IdxCache slot per timestamp recorded
// so far (agurim.c:plot_init's idx_cache clear, adapted since Seed runs
// after Timestamps already holds the start slot).
func (p *Plot) Seed(result *odflow.Queue, criteria query.Criteria) {
	p.Result = result
	p.Criteria = criteria
	p.Result.Each(func(o *odflow.Odflow) {
		o.IdxCache.Clear()
		for range p.Timestamps {
			o.IdxCache.Append(0)
		}
	})
}

// AddSlot opens a new time slot: it records ts and appends a zeroed
// counter to every seeded odflow's IdxCache (agurim_plot.c:plot_addslot).
func (p *Plot) AddSlot(ts time.Time) {
	p.Timestamps = append(p.Timestamps, ts)
	p.Result.Each(func(o *odflow.Odflow) {
		o.IdxCache.Append(0)
	})
}

// AddUpInterval drains hash, folding each node's traffic into the last
// slot of whichever seeded odflow it overlaps (same address family, and
// the seeded key is a prefix of — or equal to — the node's own key), per
// agurim_plot.c:plot_addcount. A node matching no seeded odflow carries
// traffic HHH didn't judge heavy enough to report at the top level, and
// is dropped.
func (p *Plot) AddUpInterval(hash *odflow.Hash) {
	if hash.Buckets() == 0 {
		return
	}
	slot := len(p.Timestamps) - 1

	hash.EachBucket(func(q *odflow.Queue) {
		for {
			node := q.PopHead()
			if node == nil {
				break
			}
			target := p.findOverlap(node)
			if target == nil {
				continue
			}
			cnt := node.Byte
			if p.Criteria == query.CriteriaPacket {
				cnt = node.Packet
			}
			target.IdxCache.Add(slot, cnt)
		}
	})
}

func (p *Plot) findOverlap(node *odflow.Odflow) *odflow.Odflow {
	var found *odflow.Odflow
	p.Result.Each(func(o *odflow.Odflow) {
		if found != nil {
			return
		}
		if o.AF == node.AF && prefix.IsOverlapped(&o.Spec, &node.Spec) {
			found = o
		}
	})
	return found
}
