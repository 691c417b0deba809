package odflow

import "github.com/odflow/odflow/prefix"

// QuickMergeMax is the protocol sub_queue length (spec §4.6) at which
// quick-merge kicks in to protect against port-scan blowup.
const QuickMergeMax = 1000

// QuickMerge collapses a ballooning protocol sub_queue into a wildcard
// before a pending insert of odpsp would push it past QuickMergeMax.
// It builds the three candidate wildcards (proto:sport:*, proto:*:dport,
// proto:*:*), picks the one covering the most packets (falling back to
// proto:*:* when the best ported wildcard doesn't cover at least half of
// what proto:*:* would), removes every sub_queue entry the winner
// covers, inserts the wildcard at the position preserving descending
// prefix-length-sum order, and returns it so the caller's pending insert
// accumulates into it.
func QuickMerge(q *Queue, odpsp *prefix.Spec) *Odflow {
	var wildcard [3]*Odflow
	for i := 0; i < 3; i++ {
		srclen, dstlen := uint8(8), uint8(8)
		if i == 0 {
			srclen = 24
		} else if i == 1 {
			dstlen = 24
		}
		spec := prefix.Gen(odpsp, srclen, dstlen, 3)
		wc := New(spec)
		wc.AF = AF_LOCAL
		wildcard[i] = wc
	}

	var covered [3][]*Odflow
	for _, o := range q.Slice() {
		for i := 0; i < 3; i++ {
			if prefix.IsOverlapped(&wildcard[i].Spec, &o.Spec) {
				wildcard[i].Byte += o.Byte
				wildcard[i].Packet += o.Packet
				covered[i] = append(covered[i], o)
			}
		}
	}

	idx := 0
	if wildcard[0].Packet < wildcard[1].Packet {
		idx = 1
	}
	if wildcard[idx].Packet < wildcard[2].Packet/2 {
		idx = 2 // neither ported wildcard covers a majority
	}

	for _, o := range covered[idx] {
		q.Remove(o)
	}

	insertByAreaDesc(q, wildcard[idx])

	return wildcard[idx]
}

// insertByAreaDesc inserts o into q keeping the queue ordered by
// descending Srclen+Dstlen, appending at the tail if o is the most
// general entry.
func insertByAreaDesc(q *Queue, o *Odflow) {
	items := q.Slice()
	area := o.Spec.AreaLen()
	for i, e := range items {
		if e.Spec.AreaLen() <= area {
			if i == 0 {
				q.PushHead(o)
			} else {
				q.InsertAfter(items[i-1], o)
			}
			return
		}
	}
	q.PushTail(o)
}
