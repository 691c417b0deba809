package ingest

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odflow/odflow/query"
)

func encodeRecord(t *testing.T, rec FlowRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, rec))
	return buf.Bytes()
}

func sampleRecord(a, b, c, d byte, ts uint32) FlowRecord {
	var rec FlowRecord
	rec.SrcAddr[0], rec.SrcAddr[1], rec.SrcAddr[2], rec.SrcAddr[3] = a, b, c, d
	rec.DstAddr[0], rec.DstAddr[1], rec.DstAddr[2], rec.DstAddr[3] = 10, 0, 1, 1
	rec.SrcPort = 1234
	rec.DstPort = 80
	rec.IPVersion = 4
	rec.Protocol = 6
	rec.Packets = 1
	rec.Bytes = 1000
	rec.FirstTS = ts
	rec.LastTS = ts
	return rec
}

func sampleRecord6(a0, a1 byte, ts uint32) FlowRecord {
	var rec FlowRecord
	rec.SrcAddr[0], rec.SrcAddr[1] = a0, a1
	rec.DstAddr[0], rec.DstAddr[1] = 0x20, 0x02
	rec.SrcPort = 1234
	rec.DstPort = 443
	rec.IPVersion = 6
	rec.Protocol = 6
	rec.Packets = 1
	rec.Bytes = 1500
	rec.FirstTS = ts
	rec.LastTS = ts
	return rec
}

func newTestAdapter(q *query.Query) (*Adapter, *[]*Response) {
	var rotated []*Response
	initial := NewResponse()
	a := NewAdapter(q, initial, func(closed *Response) *Response {
		rotated = append(rotated, closed)
		return NewResponse()
	}, nil)
	return a, &rotated
}

func TestDecodeRecordRoundTrips(t *testing.T) {
	rec := sampleRecord(10, 0, 0, 1, 1000)
	raw := encodeRecord(t, rec)
	require.Len(t, raw, RecordSize)

	got, err := DecodeRecord(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestIngestAccumulatesAddressAndProtocol(t *testing.T) {
	q := &query.Query{} // no interval: no boundary alignment, nothing dropped
	a, _ := newTestAdapter(q)

	rec := sampleRecord(10, 0, 0, 1, 1000)
	require.NoError(t, a.Ingest(rec))
	require.NoError(t, a.Ingest(rec))

	o := a.Current().IPv4.Lookup(addressSpec(&rec))
	require.Equal(t, uint64(2000), o.Byte)
	require.Equal(t, uint64(2), o.Packet)
	require.Equal(t, 1, o.Sub.Len())
	require.Equal(t, uint64(2000), o.Sub.First().Byte)
}

func TestIngestAccumulatesIPv6IntoSeparateHash(t *testing.T) {
	q := &query.Query{}
	a, _ := newTestAdapter(q)

	v4 := sampleRecord(10, 0, 0, 1, 1000)
	v6 := sampleRecord6(0x20, 0x01, 1000)

	require.NoError(t, a.Ingest(v4))
	require.NoError(t, a.Ingest(v6))
	require.NoError(t, a.Ingest(v6))

	require.Equal(t, uint64(1000), a.Current().IPv4.Byte)
	require.Equal(t, uint64(3000), a.Current().IPv6.Byte)

	o := a.Current().IPv6.Lookup(addressSpec(&v6))
	require.Equal(t, uint64(3000), o.Byte)
	require.Equal(t, uint64(2), o.Packet)
}

func TestCheckFlowTimeRotatesOnIntervalBoundary(t *testing.T) {
	q := &query.Query{Interval: 60 * time.Second}
	a, rotated := newTestAdapter(q)

	// First record lands before the computed start-time boundary and is
	// dropped; it only serves to establish the boundary itself.
	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 1, 1000)))
	require.False(t, q.StartTime.IsZero())

	boundary := uint32(q.StartTime.Unix())
	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 2, boundary)))
	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 3, boundary+65))) // past ts_next

	require.Len(t, *rotated, 1)
	require.Equal(t, 1, a.Current().NRecord)
}

func TestCheckFlowTimeClampsNonDecreasingTime(t *testing.T) {
	q := &query.Query{Interval: 60 * time.Second}
	a, _ := newTestAdapter(q)

	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 1, 1000)))
	boundary := uint32(q.StartTime.Unix())
	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 2, boundary)))
	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 3, boundary-50))) // earlier than ts_max, clamped not dropped
	require.Equal(t, 2, a.Current().NRecord)
}

func TestIngestStopsPastEndTime(t *testing.T) {
	q := &query.Query{EndTime: time.Unix(1000, 0).UTC()}
	a, _ := newTestAdapter(q)

	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 1, 999)))
	err := a.Ingest(sampleRecord(10, 0, 0, 2, 2000))
	require.ErrorIs(t, err, ErrCaptureComplete)
}

func TestWriteBuffersPartialTrailingRecord(t *testing.T) {
	q := &query.Query{}
	a, _ := newTestAdapter(q)

	raw := encodeRecord(t, sampleRecord(10, 0, 0, 1, 1000))
	n, err := a.Write(raw[:RecordSize-5])
	require.NoError(t, err)
	require.Equal(t, RecordSize-5, n)
	require.Equal(t, 0, a.Current().NRecord)

	n, err = a.Write(raw[RecordSize-5:])
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 1, a.Current().NRecord)
}

func TestIngestStopsWhenClosingFlagSet(t *testing.T) {
	q := &query.Query{}
	a, _ := newTestAdapter(q)

	closing := false
	a.Closing = func() bool { return closing }

	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 1, 1000)))
	require.Equal(t, 1, a.Current().NRecord)

	closing = true
	err := a.Ingest(sampleRecord(10, 0, 0, 2, 1001))
	require.ErrorIs(t, err, ErrClosing)
	require.Equal(t, 1, a.Current().NRecord, "record observed after Closing must not be inserted")
}

func TestFilterMatchRejectsNonOverlapping(t *testing.T) {
	filter, err := ParseFilterExpr("10.0.0.0/24")
	require.NoError(t, err)

	q := &query.Query{Filter: filter}
	a, _ := newTestAdapter(q)

	require.NoError(t, a.Ingest(sampleRecord(192, 168, 0, 1, 1000)))
	require.Equal(t, 0, a.Current().NRecord)

	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 5, 1000)))
	require.Equal(t, 1, a.Current().NRecord)
}

// TestParseFilterExprProtoPort covers the documented
// "<addr>[/<len>]:<proto>:<port>" form: the protocol clause must parse
// on its own, not be swallowed into "<proto>:<port>" by a two-way split,
// and it must not corrupt the address Spec it's paired with.
func TestParseFilterExprProtoPort(t *testing.T) {
	f, err := ParseFilterExpr("10.0.0.0/24:6:80")
	require.NoError(t, err)
	require.NotNil(t, f.Addr)
	require.Equal(t, uint8(24), f.Addr.Srclen)
	require.Equal(t, byte(10), f.Addr.Src[0], "protocol clause must not overwrite the address prefix's first octet")

	require.NotNil(t, f.Proto)
	require.Equal(t, uint8(24), f.Proto.Srclen)
	require.Equal(t, byte(6), f.Proto.Src[0])
	require.Equal(t, byte(0), f.Proto.Src[1])
	require.Equal(t, byte(80), f.Proto.Src[2])
}

// TestParseFilterExprProtoOnly covers the simpler CLI-documented
// "<addr>[/len]:<proto>" form with no port clause: the protocol must
// still land in its own 8-bit Spec, not in the address Spec's Src[0].
func TestParseFilterExprProtoOnly(t *testing.T) {
	f, err := ParseFilterExpr("10.0.0.0/24:17")
	require.NoError(t, err)
	require.Equal(t, byte(10), f.Addr.Src[0])
	require.Equal(t, uint8(24), f.Addr.Srclen)

	require.NotNil(t, f.Proto)
	require.Equal(t, uint8(8), f.Proto.Srclen, "no port clause: protocol-only Spec stays at 8 bits")
	require.Equal(t, byte(17), f.Proto.Src[0])
}

// TestParseFilterExprWildcardAddrWithProto covers a wildcard address
// paired with a real protocol clause ("*:6"): the early-return the old
// implementation took on a wildcard address used to skip the protocol
// clause entirely.
func TestParseFilterExprWildcardAddrWithProto(t *testing.T) {
	f, err := ParseFilterExpr("*:6")
	require.NoError(t, err)
	require.Nil(t, f.Addr)
	require.NotNil(t, f.Proto)
	require.Equal(t, byte(6), f.Proto.Src[0])
}

// TestIngestRejectsNonMatchingProtocol exercises the fixed protocol
// filter end-to-end through Adapter.Ingest.
func TestIngestRejectsNonMatchingProtocol(t *testing.T) {
	filter, err := ParseFilterExpr("*:17") // UDP only; sampleRecord uses protocol 6 (TCP)
	require.NoError(t, err)

	q := &query.Query{Filter: filter}
	a, _ := newTestAdapter(q)

	require.NoError(t, a.Ingest(sampleRecord(10, 0, 0, 1, 1000)))
	require.Equal(t, 0, a.Current().NRecord, "TCP record must be rejected by a UDP-only protocol filter")
}
