package ingest

import (
	"bytes"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// ErrCaptureComplete is returned by Ingest/Write once a record falls
// past query.EndTime or query.Duration (spec §4.4 "return stop"): the
// caller should stop feeding further records.
var ErrCaptureComplete = errors.New("ingest: capture window complete")

// ErrClosing is returned by Ingest/Write once Closing reports a pending
// shutdown (spec §5 "signal handlers set atomic flags ... check_flowtime
// returns −1, which drains the producer path"): the caller must stop
// feeding further records and let the producer's own goroutine finish
// the hand-off, rather than have a second goroutine reach into the
// buffer the producer may still be mutating.
var ErrClosing = errors.New("ingest: shutdown requested")

// RotateFunc is called when the current buffer's interval has elapsed
// or (with heuristics on) either address hash has grown past
// query.MaxHashEntries (spec §4.4, §4.7 "producer's rotate"). closed is
// the buffer being retired; the returned Response becomes current.
type RotateFunc func(closed *Response) *Response

// Adapter decodes flow records and inserts them into the current
// Response buffer, enforcing monotonic time and interval/rotation
// policy (spec §4.4 check_flowtime).
type Adapter struct {
	Query *query.Query

	// Closing, if set, is consulted once per record (spec §4.4
	// check_flowtime); when it reports true, checkFlowTime stops
	// inserting and returns ErrClosing instead of touching any pipeline
	// mutex itself — only the producer's own goroutine, once Write/Ingest
	// returns, is allowed to perform the buffer hand-off.
	Closing func() bool

	current *Response
	rotate  RotateFunc
	tsMax   time.Time

	log   *zerolog.Logger
	inbuf []byte
}

// NewAdapter builds an Adapter ingesting into initial, calling rotate
// whenever check_flowtime decides the interval is over. log defaults to
// zerolog.Nop() when nil.
func NewAdapter(q *query.Query, initial *Response, rotate RotateFunc, log *zerolog.Logger) *Adapter {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Adapter{Query: q, current: initial, rotate: rotate, log: log}
}

// Current returns the buffer the adapter is presently inserting into.
func (a *Adapter) Current() *Response {
	return a.current
}

// checkFlowTime enforces non-decreasing time, interval alignment, and
// rotation (spec §4.4). Returns (false, nil) to silently drop a record
// outside the configured window, (false, ErrClosing) if a shutdown is
// pending, or (false, ErrCaptureComplete) to signal the caller the
// capture is done.
func (a *Adapter) checkFlowTime(ts time.Time) (bool, error) {
	if a.Closing != nil && a.Closing() {
		return false, ErrClosing
	}

	if ts.Before(a.tsMax) {
		ts = a.tsMax
	} else {
		a.tsMax = ts
	}

	if a.Query.StartTime.IsZero() && a.Query.Interval > 0 {
		a.Query.StartTime = ts.Truncate(a.Query.Interval).Add(a.Query.Interval)
	}
	if !a.Query.StartTime.IsZero() && ts.Before(a.Query.StartTime) {
		return false, nil
	}

	if a.current.StartTime.IsZero() {
		a.current.StartTime = ts
		if a.Query.Interval > 0 {
			a.current.TsNext = ts.Add(a.Query.Interval)
		}
	}

	timeBased := a.Query.Interval > 0 && !a.current.TsNext.IsZero() && !ts.Before(a.current.TsNext)
	hashFull := false
	if a.Query.Heuristics == query.HeuristicsAll && a.Query.MaxHashEntries > 0 {
		hashFull = a.current.IPv4.NRecord > a.Query.MaxHashEntries ||
			a.current.IPv6.NRecord > a.Query.MaxHashEntries
	}

	if timeBased || hashFull {
		prevNext := a.current.TsNext
		closed := a.current
		closed.EndTime = ts

		a.current = a.rotate(closed)
		a.current.StartTime = ts
		if timeBased {
			a.current.TsNext = prevNext.Add(a.Query.Interval)
		} else if a.Query.Interval > 0 {
			a.current.TsNext = ts.Add(a.Query.Interval)
		}
	}

	if !a.Query.EndTime.IsZero() && ts.After(a.Query.EndTime) {
		return false, ErrCaptureComplete
	}
	if a.Query.Duration > 0 && ts.Sub(a.current.StartTime) > a.Query.Duration {
		return false, ErrCaptureComplete
	}

	return true, nil
}

// Ingest performs the two insertions spec §4.4 describes: the address
// odflow, then the protocol/port sub-odflow beneath it.
func (a *Adapter) Ingest(rec FlowRecord) error {
	ts := rec.LastSeen()
	cont, err := a.checkFlowTime(ts)
	if err != nil {
		return err
	}
	if !cont {
		return nil
	}

	spec := addressSpec(&rec)
	proto := protocolSpec(&rec)
	if f := a.Query.Filter; f != nil {
		if f.Addr != nil && !filterMatch(f.Addr, &spec) {
			return nil
		}
		if f.Proto != nil && !filterMatch(f.Proto, &proto) {
			return nil
		}
	}

	af := odflow.AF_INET
	if rec.IPVersion == 6 {
		af = odflow.AF_INET6
	}

	o := a.current.hash(rec.IPVersion).AddCount(spec, af, uint64(rec.Bytes), uint64(rec.Packets))
	a.current.NRecord++

	heuristics := a.Query.Heuristics == query.HeuristicsAll
	o.AddSubCount(proto, odflow.AF_LOCAL, uint64(rec.Bytes), uint64(rec.Packets), heuristics)

	return nil
}

// Write implements io.Writer: it decodes as many complete RecordSize
// chunks from p as are available, buffering any trailing partial record
// for the next call (mirrors the teacher's streaming session Write).
func (a *Adapter) Write(p []byte) (n int, err error) {
	lenp := len(p)
	var raw []byte
	if len(a.inbuf) > 0 {
		a.inbuf = append(a.inbuf, p...)
		raw = a.inbuf
	} else {
		raw = p
	}

	defer func() {
		if len(raw) == 0 {
			a.inbuf = a.inbuf[:0]
		} else if len(a.inbuf) == 0 || &raw[0] != &a.inbuf[0] {
			a.inbuf = append(a.inbuf[:0], raw...)
		}
	}()

	for len(raw) >= RecordSize {
		rec, decErr := DecodeRecord(bytes.NewReader(raw[:RecordSize]))
		raw = raw[RecordSize:]
		if decErr != nil {
			a.log.Warn().Err(decErr).Msg("skipping malformed flow record")
			continue
		}

		if ierr := a.Ingest(rec); ierr != nil {
			if errors.Is(ierr, ErrCaptureComplete) || errors.Is(ierr, ErrClosing) {
				return lenp, ierr
			}
			a.log.Warn().Err(ierr).Msg("dropping flow record")
		}
	}

	return lenp, nil
}

func addressSpec(rec *FlowRecord) prefix.Spec {
	var s prefix.Spec
	n := rec.AddrLen()
	length := uint8(n * 8)
	s.Srclen, s.Dstlen = length, length
	copy(s.Src[:n], rec.SrcAddr[:n])
	copy(s.Dst[:n], rec.DstAddr[:n])
	return s
}

func protocolSpec(rec *FlowRecord) prefix.Spec {
	var s prefix.Spec
	s.Src[0] = rec.Protocol
	s.Src[1] = byte(rec.SrcPort >> 8)
	s.Src[2] = byte(rec.SrcPort)
	s.Dst[0] = rec.Protocol
	s.Dst[1] = byte(rec.DstPort >> 8)
	s.Dst[2] = byte(rec.DstPort)
	s.Srclen, s.Dstlen = 24, 24
	return s
}
