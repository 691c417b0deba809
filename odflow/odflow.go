package odflow

import (
	"github.com/odflow/odflow/count"
	"github.com/odflow/odflow/prefix"
)

// Odflow is a traffic aggregate keyed by a two-sided prefix (spec §3). An
// address odflow carries a Sub queue of protocol/port children; a
// protocol odflow, when aggregated in "protocol view", carries address
// children. Exactly one container (a hash bucket, a result queue, or a
// parent's Sub queue) owns an Odflow at any instant.
type Odflow struct {
	Spec   prefix.Spec
	AF     AddressFamily
	Byte   uint64
	Packet uint64

	// Sub holds this odflow's children of the complementary dimension,
	// in FIFO insertion order.
	Sub Queue

	// IdxCache is dual-use (spec §3, §9 "Dual-use idx_cache"): during HHH
	// aggregation it holds indices into a parent-owned flow_list; during
	// plotting it holds one counter per time slot. The two uses never
	// overlap in time for a given odflow, so a single cleared-between-
	// phases array is sufficient.
	IdxCache count.Array
}

// New allocates an odflow for the given key. The caller is responsible
// for inserting it into exactly one container.
func New(spec prefix.Spec) *Odflow {
	return &Odflow{Spec: spec}
}

// Clone returns a new odflow with o's key and address family only: zero
// counts and empty Sub and IdxCache.
func (o *Odflow) Clone() *Odflow {
	return &Odflow{Spec: o.Spec, AF: o.AF}
}
