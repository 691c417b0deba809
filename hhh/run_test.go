package hhh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

func ipv6Spec(a, b byte) prefix.Spec {
	var s prefix.Spec
	s.Src[0], s.Src[1] = a, b
	s.Dst[0], s.Dst[1] = a, b
	s.Srclen, s.Dstlen = 128, 128
	return s
}

// TestRunIntervalSharesThresholdAcrossFamilies exercises the bug spec
// §4.5/agurim.c:hhh_run guards against: a low-traffic family must not
// get a correspondingly low absolute threshold of its own. Here IPv4
// carries the overwhelming majority of traffic and IPv6 carries a tiny
// flow that clears an IPv6-only threshold but must not clear the
// combined one.
func TestRunIntervalSharesThresholdAcrossFamilies(t *testing.T) {
	buf := ingest.NewResponse()

	// Heavy IPv4 traffic: 99000 bytes total.
	for i := byte(1); i <= 9; i++ {
		buf.IPv4.AddCount(ipv4Spec(10, 0, 0, i), odflow.AF_INET, 11_000, 10)
	}

	// One small IPv6 flow: 100 bytes. Against an IPv6-only total of 100
	// and a 10% threshold (10 bytes), 100 bytes clears easily. Against
	// the combined total (~99100 bytes) and the same 10% threshold
	// (~9910 bytes), it must not individually clear the cutoff, and so
	// must be folded into the IPv6 wildcard rather than kept standalone
	// at full /128 specificity.
	buf.IPv6.AddCount(ipv6Spec(0x20, 0x01), odflow.AF_INET6, 100, 1)

	q := &query.Query{Criteria: query.CriteriaByte, Threshold: 10}
	result := RunInterval(buf, q)

	var sawStandaloneV6 bool
	result.Each(func(o *odflow.Odflow) {
		if o.AF == odflow.AF_INET6 && o.Spec.Srclen == 128 {
			sawStandaloneV6 = true
		}
	})
	require.False(t, sawStandaloneV6, "tiny IPv6 flow must not clear a threshold sized for the IPv4-dominated combined total")

	var totalByte uint64
	result.Each(func(o *odflow.Odflow) { totalByte += o.Byte })
	require.Equal(t, uint64(9*11_000+100), totalByte, "combined byte total must be conserved across both families")
}
