package hhh

import (
	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/query"
)

// RunInterval runs the full HHH pass over one closed buffer (spec §4.6
// "per-interval processing"): find_hhh over the IPv4 and IPv6 address
// hashes, then a second, stricter find_hhh over each surviving node's
// protocol/port sub-queue, finally capping the result to query.NFlows.
//
// thresh/thresh2 are derived once from the *combined* IPv4+IPv6 totals
// (agurim.c:hhh_run sums ip_hash and ip6_hash before deriving
// thresh_byte/thresh_packet) and reused for both families, so a family
// with little traffic isn't held to a disproportionately low absolute
// cutoff just because its own total is small.
func RunInterval(buf *ingest.Response, q *query.Query) *odflow.Queue {
	result := &odflow.Queue{}
	heuristics := q.Heuristics == query.HeuristicsAll

	totalByte := buf.IPv4.Byte + buf.IPv6.Byte
	totalPacket := buf.IPv4.Packet + buf.IPv6.Packet
	thresh, thresh2 := thresholdCounts(q.Threshold, totalByte, totalPacket)

	runAddressFamily(buf.IPv4, DomainIPv4(heuristics), q, heuristics, thresh, thresh2, result)
	runAddressFamily(buf.IPv6, DomainIPv6(heuristics), q, heuristics, thresh, thresh2, result)

	if q.NFlows > 0 && result.Len() > q.NFlows {
		CountSort(result, q.Criteria)
		ListReduce(result, q.NFlows)
	}

	return result
}

// runAddressFamily runs find_hhh over one address hash and, for every
// extracted node, a second find_hhh over its protocol/port sub-queue
// (spec §4.6 "sub-attribute pass"; thresholds scaled via
// Query.SubAttrThreshold).
func runAddressFamily(hash *odflow.Hash, domain Domain, q *query.Query, heuristics bool, thresh, thresh2 uint64, result *odflow.Queue) {
	keepWild := q.Filter == nil

	Find(hash, nil, domain, thresh, thresh2, q.Criteria, heuristics, keepWild, result)

	subThresh, subThresh2 := q.SubAttrThreshold(thresh, thresh2)
	protoDomain := DomainProto(heuristics)

	result.Each(func(o *odflow.Odflow) {
		if o.AF != domain.AF || o.Sub.Len() == 0 {
			return
		}
		subResult := &odflow.Queue{}
		Find(nil, &o.Sub, protoDomain, subThresh, subThresh2, q.Criteria, heuristics, false, subResult)
		o.Sub.Reset()
		subResult.Each(func(s *odflow.Odflow) { o.Sub.PushTail(s) })
	})
}

// thresholdCounts converts a percent threshold into absolute byte/packet
// cutoffs (spec §4.5).
func thresholdCounts(percent float64, totalByte, totalPacket uint64) (thresh, thresh2 uint64) {
	frac := percent / 100
	return uint64(float64(totalByte) * frac), uint64(float64(totalPacket) * frac)
}
