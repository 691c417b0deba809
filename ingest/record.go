// Package ingest decodes the fixed-width flow record wire format and
// feeds each record into the current aggregation buffer (spec §4.4,
// §6 "Flow record wire format").
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// RecordSize is the on-wire size of one FlowRecord in bytes.
const RecordSize = 56

// ErrTruncatedRecord is returned when fewer than RecordSize bytes are
// available to decode a record (spec §7 "input-format errors": warn and
// skip, never abort).
var ErrTruncatedRecord = errors.New("ingest: truncated flow record")

// FlowRecord is the wire format of one flow: network byte order, fixed
// width, IPv4 addresses left-justified in the 16-byte fields (spec §6).
type FlowRecord struct {
	SrcAddr   [16]byte
	DstAddr   [16]byte
	SrcPort   uint16
	DstPort   uint16
	IPVersion uint8
	Protocol  uint8
	Pad       uint16 // reserved, must round-trip as zero
	Packets   uint32
	Bytes     uint32
	FirstTS   uint32
	LastTS    uint32
}

// DecodeRecord reads one FlowRecord from r.
func DecodeRecord(r io.Reader) (FlowRecord, error) {
	var rec FlowRecord
	if err := binary.Read(r, binary.BigEndian, &rec); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return FlowRecord{}, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
		}
		return FlowRecord{}, err
	}
	return rec, nil
}

// FirstSeen returns the record's first_ts as a time.Time.
func (f *FlowRecord) FirstSeen() time.Time {
	return time.Unix(int64(f.FirstTS), 0).UTC()
}

// LastSeen returns the record's last_ts as a time.Time — the timestamp
// check_flowtime tracks for ordering and rotation.
func (f *FlowRecord) LastSeen() time.Time {
	return time.Unix(int64(f.LastTS), 0).UTC()
}

// AddrLen returns 4 for an IPv4 record, 16 for IPv6.
func (f *FlowRecord) AddrLen() int {
	if f.IPVersion == 6 {
		return 16
	}
	return 4
}

// EncodeRecord writes one FlowRecord to w in the same fixed-width,
// big-endian wire format DecodeRecord reads (used by odflow-pcapread to
// feed a live odflowd).
func EncodeRecord(w io.Writer, rec FlowRecord) error {
	return binary.Write(w, binary.BigEndian, rec)
}
