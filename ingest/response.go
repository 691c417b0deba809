package ingest

import (
	"time"

	"github.com/odflow/odflow/odflow"
)

// addressHashBuckets is the initial bucket count for a top-level
// address hash (spec §3 "Odflow hash": 1,024 for address hashes).
const addressHashBuckets = 1024

// Response is one aggregation buffer: the IPv4 and IPv6 address odflow
// hashes for a single interval, plus the bookkeeping check_flowtime
// needs to decide when the interval is over (spec §4.4, §4.7 R[0]/R[1]).
type Response struct {
	IPv4 *odflow.Hash
	IPv6 *odflow.Hash

	StartTime time.Time
	EndTime   time.Time
	TsNext    time.Time

	NRecord int
}

// NewResponse allocates an empty buffer ready to receive records.
func NewResponse() *Response {
	return &Response{
		IPv4: odflow.NewHash(addressHashBuckets),
		IPv6: odflow.NewHash(addressHashBuckets),
	}
}

// Reset drains both hashes and zeroes the bookkeeping fields, readying
// the buffer for reuse after its HHH pass completes (spec §4.7
// "consumer loop... reset the buffer's hashes").
func (r *Response) Reset() {
	r.IPv4.Reset()
	r.IPv6.Reset()
	r.StartTime = time.Time{}
	r.EndTime = time.Time{}
	r.TsNext = time.Time{}
	r.NRecord = 0
}

// hash returns the address hash matching ipVersion (4 or 6).
func (r *Response) hash(ipVersion uint8) *odflow.Hash {
	if ipVersion == 6 {
		return r.IPv6
	}
	return r.IPv4
}
