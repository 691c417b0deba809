package odflow

import (
	"testing"

	"github.com/odflow/odflow/prefix"
)

func addrSpec(a, b, c, d byte) prefix.Spec {
	var s prefix.Spec
	s.Src[0], s.Src[1], s.Src[2], s.Src[3] = a, b, c, d
	s.Dst[0], s.Dst[1], s.Dst[2], s.Dst[3] = a, b, c, d
	s.Srclen, s.Dstlen = 32, 32
	return s
}

func TestHashAddCountAccumulates(t *testing.T) {
	h := NewHash(1024)
	s := addrSpec(10, 0, 0, 1)
	h.AddCount(s, AF_INET, 100, 1)
	h.AddCount(s, AF_INET, 50, 1)

	o := h.Lookup(s)
	if o.Byte != 150 || o.Packet != 2 {
		t.Fatalf("got byte=%d packet=%d", o.Byte, o.Packet)
	}
	if h.Byte != 150 || h.Packet != 2 || h.NRecord != 1 {
		t.Fatalf("hash totals wrong: byte=%d packet=%d nrecord=%d", h.Byte, h.Packet, h.NRecord)
	}
}

func TestHashBucketsPowerOfTwoCapped(t *testing.T) {
	h := NewHash(1000)
	if h.Buckets() != 1024 {
		t.Fatalf("want 1024 buckets, got %d", h.Buckets())
	}
	h2 := NewHash(1_000_000)
	if h2.Buckets() != MaxBuckets {
		t.Fatalf("want capped at %d, got %d", MaxBuckets, h2.Buckets())
	}
}

func TestHashResetZeroesCounters(t *testing.T) {
	h := NewHash(64)
	h.AddCount(addrSpec(1, 2, 3, 4), AF_INET, 10, 1)
	h.Reset()
	if h.Byte != 0 || h.Packet != 0 || h.NRecord != 0 {
		t.Fatal("Reset must zero aggregate counters")
	}
}

func TestDrainIntoMovesAllAndZeroes(t *testing.T) {
	h := NewHash(64)
	for i := 0; i < 50; i++ {
		h.AddCount(addrSpec(10, 0, 0, byte(i)), AF_INET, 1, 1)
	}
	list := h.DrainInto(nil)
	if len(list) != 50 {
		t.Fatalf("drained %d, want 50", len(list))
	}
	if h.NRecord != 0 {
		t.Fatal("DrainInto must leave hash empty")
	}
}

func TestQuickMergeTriggersAtThreshold(t *testing.T) {
	parent := New(addrSpec(10, 0, 0, 1))
	parent.AF = AF_INET

	for i := 0; i < QuickMergeMax+50; i++ {
		var sp prefix.Spec
		sp.Src[0] = 6
		sp.Dst[0] = 6
		sp.Src[1], sp.Src[2] = byte(i>>8), byte(i)
		sp.Dst[1], sp.Dst[2] = 0, 80
		sp.Srclen, sp.Dstlen = 24, 24
		parent.AddSubCount(sp, AF_LOCAL, 100, 1, true)
	}

	if parent.Sub.Len() > 10 {
		t.Fatalf("sub_queue should have collapsed to a handful of wildcards, got %d", parent.Sub.Len())
	}

	var total uint64
	parent.Sub.Each(func(o *Odflow) { total += o.Packet })
	if total != uint64(QuickMergeMax+50) {
		t.Fatalf("packet total not conserved through quick-merge: got %d", total)
	}
}
