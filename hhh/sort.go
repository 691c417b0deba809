package hhh

import (
	"math"
	"sort"

	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// CountSort stably sorts queue's odflows from heaviest to lightest by
// criteria (spec §4.5 "Output ordering"). For CriteriaCombination it
// ranks by the larger of the byte count and the packet count scaled by
// the queue's own bytes-per-packet ratio, so byte-heavy and packet-heavy
// flows are compared on one scale.
func CountSort(q *odflow.Queue, criteria query.Criteria) {
	list := q.Slice()
	if len(list) < 2 {
		return
	}

	var bpr float64 // bytes per packet over the whole queue, used to scale packets onto the byte axis
	if criteria == query.CriteriaCombination {
		var totalByte, totalPacket uint64
		for _, o := range list {
			totalByte += o.Byte
			totalPacket += o.Packet
		}
		if totalPacket > 0 {
			bpr = float64(totalByte) / float64(totalPacket)
		}
	}

	score := func(o *odflow.Odflow) float64 {
		switch criteria {
		case query.CriteriaPacket:
			return float64(o.Packet)
		case query.CriteriaCombination:
			return math.Max(float64(o.Byte), float64(o.Packet)*bpr)
		default:
			return float64(o.Byte)
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return score(list[i]) > score(list[j])
	})

	q.Reset()
	for _, o := range list {
		q.PushTail(o)
	}
}

// AreaSort orders queue's odflows from most specific to least specific
// prefix (largest Srclen+Dstlen first), the ordering ListReduce and the
// output emitters rely on to find an entry's nearest surviving parent.
func AreaSort(q *odflow.Queue) {
	list := q.Slice()
	if len(list) < 2 {
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Spec.AreaLen() > list[j].Spec.AreaLen()
	})
	q.Reset()
	for _, o := range list {
		q.PushTail(o)
	}
}

// ListReduce folds queue down to at most max entries (spec §4.5
// "NFlows cap"). Queue must already be CountSort-ordered (heaviest
// first): the top max entries by rank are kept, and every entry beyond
// the cap is folded into the most specific still-kept prefix that
// overlaps it, freeing the merged entry. An entry with no overlapping
// ancestor among the kept set (no wildcard or covering prefix survived
// the cut) is dropped.
func ListReduce(q *odflow.Queue, max int) {
	if max <= 0 || q.Len() <= max {
		return
	}

	list := q.Slice()
	kept := list[:max]
	extras := list[max:]

	// search kept from most to least specific so a victim folds into
	// its nearest ancestor rather than straight into the widest wildcard.
	byArea := append([]*odflow.Odflow(nil), kept...)
	sort.SliceStable(byArea, func(i, j int) bool {
		return byArea[i].Spec.AreaLen() > byArea[j].Spec.AreaLen()
	})

	for _, victim := range extras {
		parent := parentLookup(byArea, victim.AF, &victim.Spec)
		if parent != nil {
			parent.Byte += victim.Byte
			parent.Packet += victim.Packet
			odflow.MoveAll(&parent.Sub, &victim.Sub)
		}
	}

	q.Reset()
	for _, o := range kept {
		q.PushTail(o)
	}
}

// parentLookup returns the most specific entry in kept (assumed
// AreaSort-ordered, most specific first) whose address family matches af
// and whose prefix overlaps spec, or nil if none does. The family check
// matters because a (0,0) wildcard's Spec is all-zero regardless of AF,
// so an IPv4 entry could otherwise fold into an IPv6 wildcard's counts
// (plot.Plot.findOverlap applies the same check for the same reason).
func parentLookup(kept []*odflow.Odflow, af odflow.AddressFamily, spec *prefix.Spec) *odflow.Odflow {
	for _, o := range kept {
		if o.AF == af && prefix.IsOverlapped(&o.Spec, spec) {
			return o
		}
	}
	return nil
}
