// Package hhh implements the recursive-lattice Hierarchical Heavy-Hitter
// search (spec §4.5): it walks the (srclen,dstlen) label lattice,
// aggregating the parent's flow list at each label and extracting
// aggregates whose traffic exceeds a threshold, subtracting extracted
// counts from their parent so traffic is never double-counted.
package hhh

import (
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// quadrant identifies one of the four sub-areas lattice_search recurses
// into.
//
//go:generate go run github.com/dmarkham/enumer -type=quadrant
type quadrant int

const (
	posLower quadrant = iota
	posLeft
	posRight
	posUpper
)

// onEdge marks which bottom edge of the lattice a (pl0,pl1) label pair
// sits on, to give fully-specified prefixes search priority (spec §4.5
// "Edge processing").
type onEdge int

const (
	noEdge onEdge = iota
	leftEdge
	rightEdge
)

// Domain bundles the per-address-family constants that parameterize a
// find_hhh run (spec §4.5): the lattice's maximum label, its minimum
// subdivision granularity, the byte width of the key, and the cutoff
// heuristic that caps subdivision resolution for short prefixes.
type Domain struct {
	AF        odflow.AddressFamily
	MaxSize   int // 32 (IPv4), 128 (IPv6), 24 (protocol/port)
	MinSize   int // subdivision floor
	ByteSize  int // key width in bytes: 4, 16, 3
	Cutoff    int // 0 disables the cutoff heuristic
	CutoffRes int
}

// DomainIPv4 is the IPv4 address lattice: 32 bits, cutoff at 16 capped to
// 8-bit resolution.
func DomainIPv4(heuristics bool) Domain {
	d := Domain{AF: odflow.AF_INET, MaxSize: 32, MinSize: 1, ByteSize: 4}
	if heuristics {
		d.Cutoff, d.CutoffRes = 16, 8
	}
	return d
}

// DomainIPv6 is the IPv6 address lattice: 128 bits, cutoff at 32 capped
// to 16-bit resolution. The /64 interface-id boundary is handled
// separately by Find.
func DomainIPv6(heuristics bool) Domain {
	d := Domain{AF: odflow.AF_INET6, MaxSize: 128, MinSize: 1, ByteSize: 16}
	if heuristics {
		d.Cutoff, d.CutoffRes = 32, 16
	}
	return d
}

// DomainProto is the protocol/port lattice: 24 bits ([proto][port]),
// never subdivided below 16 bits when heuristics are on.
func DomainProto(heuristics bool) Domain {
	d := Domain{AF: odflow.AF_LOCAL, MaxSize: 24, MinSize: 1, ByteSize: 3}
	if heuristics {
		d.MinSize = 16
	}
	return d
}

// params carries the state threaded through every lattice_search call
// for one find_hhh run.
type params struct {
	flowList    []*odflow.Odflow // original flows being aggregated; entries set to nil once extracted
	thresh      uint64
	thresh2     uint64
	domain      Domain
	heuristics  bool
	keepWild    bool // keep the (0,0) wildcard regardless of threshold (no address filter active)
	criteria    query.Criteria
	resultQueue *odflow.Queue
}

func thresholdMet(o *odflow.Odflow, p *params) bool {
	switch p.criteria {
	case query.CriteriaPacket:
		if o.Packet >= p.thresh2 {
			return true
		}
	case query.CriteriaByte:
		if o.Byte >= p.thresh {
			return true
		}
	case query.CriteriaCombination:
		if o.Packet >= p.thresh2 || o.Byte >= p.thresh {
			return true
		}
	}
	if p.keepWild && o.Spec.IsWildcard() {
		return true
	}
	return false
}

func labelFits(s *prefix.Spec, pl0, pl1 int) bool {
	return int(s.Srclen) >= pl0 && int(s.Dstlen) >= pl1
}

// aggregate builds, in tmp, one aggregate odflow per distinct masked key
// at label (pl0,pl1) among parent's tracked flow-list entries, recording
// each contributing original index in the new node's IdxCache. Returns
// the number of original flows that matched the label.
func aggregate(tmp *odflow.Hash, parent *odflow.Odflow, pl0, pl1 int, p *params) int {
	n := 0
	for i := 0; i < parent.IdxCache.Size(); i++ {
		idx := int(parent.IdxCache.Get(i))
		f := p.flowList[idx]
		if f == nil {
			continue // removed sub-entry
		}
		if !labelFits(&f.Spec, pl0, pl1) {
			continue
		}

		spec := prefix.Gen(&f.Spec, uint8(pl0), uint8(pl1), p.domain.ByteSize)
		node := tmp.Lookup(spec)
		node.Byte += f.Byte
		node.Packet += f.Packet
		node.AF = f.AF
		node.IdxCache.Append(uint64(idx))
		n++
	}
	return n
}

// extract drains tmp, keeping every node whose counts exceed the
// threshold: it subtracts the node's counts from parent, appends it to
// the result queue, and for every original flow it covers, moves that
// flow's sub_queue into the extracted node and marks the flow consumed.
func extract(tmp *odflow.Hash, parent *odflow.Odflow, p *params) int {
	nflows := 0
	tmp.EachBucket(func(q *odflow.Queue) {
		for {
			node := q.PopHead()
			if node == nil {
				break
			}
			if !thresholdMet(node, p) {
				continue // below threshold, discard
			}

			parent.Packet -= node.Packet
			parent.Byte -= node.Byte
			p.resultQueue.PushTail(node)
			nflows++

			for i := 0; i < node.IdxCache.Size(); i++ {
				idx := int(node.IdxCache.Get(i))
				f := p.flowList[idx]
				if f == nil {
					continue
				}
				if f.Sub.Len() > 0 {
					odflow.MoveAll(&node.Sub, &f.Sub)
				}
				p.flowList[idx] = nil
			}
			node.IdxCache.Clear()
		}
	})
	return nflows
}

// Search recursively visits the lattice sub-area rooted at label
// (pl0,pl1) with side size, subdividing into LOWER/LEFT/RIGHT/UPPER
// quadrants until size <= domain.MinSize. Returns the number of odflows
// extracted from this sub-area downward.
func search(parent *odflow.Odflow, pl0, pl1, size int, pos quadrant, p *params) int {
	edge := noEdge
	if pl0 == p.domain.MaxSize {
		edge = leftEdge
	} else if pl1 == p.domain.MaxSize {
		edge = rightEdge
	}

	doRecurse := true
	if size <= p.domain.MinSize {
		doRecurse = false
		if edge == leftEdge && size != 0 {
			doRecurse = true
		}
	}

	doAggregate := pos != posUpper

	if p.heuristics {
		plMax := pl0
		if pl1 > plMax {
			plMax = pl1
		}
		if p.domain.Cutoff != 0 && plMax < p.domain.Cutoff && size == p.domain.CutoffRes {
			doRecurse = false
		}
	}

	if !doAggregate && !doRecurse {
		return 0
	}

	var tmp *odflow.Hash
	var nodes []*odflow.Odflow

	if doAggregate {
		estimate := parent.IdxCache.Size() / 8
		tmp = odflow.NewHash(estimate)
		if n := aggregate(tmp, parent, pl0, pl1, p); n == 0 {
			return 0
		}
		nodes = tmp.Nodes()
	} else {
		nodes = []*odflow.Odflow{parent}
	}

	nflows := 0

	if doRecurse {
		var delta, subsize int
		if size == p.domain.MinSize {
			delta, subsize = size, 0
		} else {
			delta, subsize = size/2, size/2
		}
		if p.heuristics && pl0+pl1 == 192 {
			// IPv6 interface-id boundary: never subdivide the lower 64 bits.
			delta, subsize = size, 0
		}

		for _, node := range nodes {
			for subpos := posLower; subpos <= posUpper; subpos++ {
				if edge != noEdge && (subpos == posLeft || subpos == posRight) {
					continue
				}
				if !thresholdMet(node, p) {
					break // residual below threshold
				}

				subpl0, subpl1 := pl0, pl1
				switch subpos {
				case posLower:
					if edge == leftEdge {
						subpl1 += delta
					} else if edge == rightEdge {
						subpl0 += delta
					} else {
						subpl0 += delta
						subpl1 += delta
					}
				case posLeft:
					subpl0 += delta
				case posRight:
					subpl1 += delta
				}

				if p.heuristics && p.domain.Cutoff != 0 {
					subplMin := subpl0
					if subpl1 < subplMin {
						subplMin = subpl1
					}
					if subplMin < p.domain.Cutoff && (subplMin&(p.domain.CutoffRes-1)) != 0 {
						continue
					}
				}

				packet, byte := node.Packet, node.Byte
				n := search(node, subpl0, subpl1, subsize, subpos, p)
				nflows += n
				if n > 0 && doAggregate {
					parent.Packet -= packet - node.Packet
					parent.Byte -= byte - node.Byte
				}
			}
		}
	}

	if doAggregate {
		if thresholdMet(parent, p) {
			nflows += extract(tmp, parent, p)
		}
	}

	return nflows
}
