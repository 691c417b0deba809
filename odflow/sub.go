package odflow

import "github.com/odflow/odflow/prefix"

// LookupSub scans o.Sub for a matching spec. With heuristics enabled and
// no exact match, an existing entry that covers spec (such as a wildcard
// left by an earlier quick-merge) is returned instead. If neither is
// found and the sub_queue has already reached QuickMergeMax entries (and
// heuristics are enabled), it quick-merges the queue first (spec §4.6)
// and returns the resulting wildcard instead of creating a new entry.
// Otherwise it allocates a new odflow, inserts it at the head of o.Sub,
// and returns it.
func (o *Odflow) LookupSub(spec prefix.Spec, heuristics bool) *Odflow {
	var cover *Odflow
	for _, e := range o.Sub.Slice() {
		if prefix.Equal(&e.Spec, &spec) {
			return e
		}
		if heuristics && cover == nil && prefix.IsOverlapped(&e.Spec, &spec) {
			cover = e
		}
	}
	if cover != nil {
		return cover
	}

	if heuristics && o.Sub.Len() >= QuickMergeMax {
		return QuickMerge(&o.Sub, &spec)
	}

	sub := New(spec)
	o.Sub.PushHead(sub)
	return sub
}

// AddSubCount looks up (or quick-merge-resolves) the protocol/port child
// of o for spec and accumulates byte/packet into it.
func (o *Odflow) AddSubCount(spec prefix.Spec, af AddressFamily, byte, packet uint64, heuristics bool) *Odflow {
	sub := o.LookupSub(spec, heuristics)
	sub.AF = af
	sub.Byte += byte
	sub.Packet += packet
	return sub
}
