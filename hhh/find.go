package hhh

import (
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// Find runs the recursive lattice search over one address family's
// traffic and appends every extracted heavy-hitter odflow to out (spec
// §4.5 find_hhh). Exactly one of hash or source must be non-nil:
//
//   - hash: a main-attribute run. Every odflow in hash becomes a root
//     flow_list entry; hash is left empty on return.
//   - source: a sub-attribute run. Entries in source whose AF matches
//     domain.AF are pulled out (in order) as the flow_list. out may be a
//     separate queue (as RunInterval passes) or source itself, in which
//     case extracted entries accumulate back into it.
//
// Returns the number of odflows extracted into out.
func Find(hash *odflow.Hash, source *odflow.Queue, domain Domain, thresh, thresh2 uint64, criteria query.Criteria, heuristics, keepWild bool, out *odflow.Queue) int {
	root := odflow.New(prefix.Spec{})
	root.AF = domain.AF

	var flowList []*odflow.Odflow
	if hash != nil {
		flowList = hash.DrainInto(nil)
	} else {
		var kept []*odflow.Odflow
		for _, o := range source.Slice() {
			if o.AF == domain.AF {
				flowList = append(flowList, o)
			} else {
				kept = append(kept, o)
			}
		}
		source.Reset()
		for _, o := range kept {
			source.PushTail(o)
		}
	}

	for i, f := range flowList {
		root.IdxCache.Append(uint64(i))
		root.Byte += f.Byte
		root.Packet += f.Packet
	}

	p := &params{
		flowList:    flowList,
		thresh:      thresh,
		thresh2:     thresh2,
		domain:      domain,
		heuristics:  heuristics,
		keepWild:    keepWild,
		criteria:    criteria,
		resultQueue: out,
	}

	nflows := 0
	switch domain.MaxSize {
	case 32, 128:
		// left bottom edge, then right bottom edge, then the interior.
		nflows += search(root, domain.MaxSize, 0, domain.MaxSize, posLower, p)
		nflows += search(root, 0, domain.MaxSize, domain.MaxSize, posLower, p)
		if domain.MaxSize == 128 {
			// IPv6 also walks the /64 interface-id boundary: its own
			// left/right edges plus the interior, below the cutoff
			// heuristic's resolution floor for the /128 pass above.
			p.domain.MaxSize = 64
			nflows += search(root, 64, 0, 64, posLower, p)
			nflows += search(root, 0, 64, 64, posLower, p)
			nflows += search(root, 0, 0, 64, posLower, p)
			p.domain.MaxSize = 128
		} else {
			nflows += search(root, 0, 0, domain.MaxSize, posLower, p)
		}
	case 24:
		nflows += search(root, 24, 8, 16, posLower, p)
		nflows += search(root, 8, 24, 16, posLower, p)
		nflows += search(root, 8, 8, 16, posLower, p)
		// protocol space has no (0,0) catch-all sweep: anything still
		// unextracted below the (8,8) aggregate's threshold is simply
		// dropped (spec §9's quick-merge note: protocol residuals do not
		// carry the same conservation guarantee as address odflows).
	}

	return nflows
}
