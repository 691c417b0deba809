package odflow

import "github.com/odflow/odflow/prefix"

// MaxBuckets is the hard cap on bucket count for any Hash (spec §4.3).
const MaxBuckets = 4096

// bucket is one open-hash chain: a FIFO queue plus its own record count,
// mirrored into the owning Hash's aggregate NRecord.
type bucket struct {
	q       Queue
	nrecord int
}

// Hash is an open-chained odflow table. Bucket selection mixes four bytes
// of Src and four of Dst with a Jenkins-style hash (the same mix as the
// original odflow.c, reproduced bit for bit so bucket distribution
// matches the reference implementation for a given key).
type Hash struct {
	tbl     []bucket
	Byte    uint64
	Packet  uint64
	NRecord int
}

// NewHash allocates a Hash with at least n buckets, rounded up to the
// next power of two and capped at MaxBuckets.
func NewHash(n int) *Hash {
	buckets := 1
	for buckets < n && buckets < MaxBuckets {
		buckets *= 2
	}
	return &Hash{tbl: make([]bucket, buckets)}
}

// mix is the three-word mix() step of Bob Jenkins' lookup2 hash, as
// used by the original odflow.c's mix() macro.
func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 16
	c -= a
	c -= b
	c ^= b >> 5
	a -= b
	a -= c
	a ^= c >> 3
	b -= c
	b -= a
	b ^= a << 10
	c -= a
	c -= b
	c ^= b >> 15
	return a, b, c
}

// slotFetch mixes the first 4 bytes of v1 and v2 into a bucket index
// modulo the given power-of-two bucket count.
func slotFetch(v1, v2 []byte, buckets uint32) uint32 {
	a := uint32(0x9e3779b9)
	b := uint32(0x9e3779b9)
	c := uint32(0)

	b += uint32(v1[3])
	b += uint32(v1[2]) << 24
	b += uint32(v1[1]) << 16
	b += uint32(v1[0]) << 8

	a += uint32(v2[3])
	a += uint32(v2[2]) << 24
	a += uint32(v2[1]) << 16
	a += uint32(v2[0]) << 8

	_, _, c = mix(a, b, c)

	return c & (buckets - 1)
}

func (h *Hash) bucketIndex(spec *prefix.Spec) uint32 {
	return slotFetch(spec.Src[:4], spec.Dst[:4], uint32(len(h.tbl)))
}

// Lookup scans the target bucket's FIFO for a matching spec; if none is
// found, it allocates a new odflow, pushes it at the bucket head, and
// bumps nrecord on both the bucket and the hash. Lookup does not touch
// Byte/Packet counters — only AddCount does.
func (h *Hash) Lookup(spec prefix.Spec) *Odflow {
	idx := h.bucketIndex(&spec)
	bk := &h.tbl[idx]
	for _, o := range bk.q.Slice() {
		if prefix.Equal(&o.Spec, &spec) {
			return o
		}
	}
	o := New(spec)
	bk.q.PushHead(o)
	bk.nrecord++
	h.NRecord++
	return o
}

// AddCount looks up (or creates) the odflow for spec, tags it with af,
// and accumulates byte/packet into both the odflow and the hash totals.
func (h *Hash) AddCount(spec prefix.Spec, af AddressFamily, byte, packet uint64) *Odflow {
	o := h.Lookup(spec)
	o.AF = af
	o.Byte += byte
	o.Packet += packet
	h.Byte += byte
	h.Packet += packet
	return o
}

// Reset drains every bucket, freeing odflows, and zeroes the aggregate
// counters.
func (h *Hash) Reset() {
	if h.NRecord == 0 {
		return
	}
	for i := range h.tbl {
		h.tbl[i].q.Reset()
		h.tbl[i].nrecord = 0
	}
	h.Byte = 0
	h.Packet = 0
	h.NRecord = 0
}

// Buckets returns the number of buckets allocated.
func (h *Hash) Buckets() int {
	return len(h.tbl)
}

// EachBucket calls fn once per bucket, with that bucket's queue — used
// by HHH extraction and plot accumulation to drain the whole hash.
func (h *Hash) EachBucket(fn func(q *Queue)) {
	for i := range h.tbl {
		fn(&h.tbl[i].q)
	}
}

// Nodes returns every odflow currently in the hash without removing
// them, in bucket order. Used by HHH's lattice_search to walk the
// odflows it just aggregated for a label.
func (h *Hash) Nodes() []*Odflow {
	var out []*Odflow
	for i := range h.tbl {
		out = append(out, h.tbl[i].q.Slice()...)
	}
	return out
}

// DrainInto removes every odflow from the hash (in bucket order, FIFO
// within each bucket) and appends it to list, returning the extended
// slice. Used by the HHH driver to build find_hhh's flow_list from a
// hash's contents.
func (h *Hash) DrainInto(list []*Odflow) []*Odflow {
	for i := range h.tbl {
		for {
			o := h.tbl[i].q.PopHead()
			if o == nil {
				break
			}
			h.tbl[i].nrecord--
			list = append(list, o)
		}
	}
	h.Byte = 0
	h.Packet = 0
	h.NRecord = 0
	return list
}
