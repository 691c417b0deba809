// Package pipeline implements the two-buffer producer/consumer driver
// (spec §4.7, §5): the producer (ingest) fills one Response buffer
// while the consumer runs the HHH engine over the other, handing off
// buffers at interval boundaries under a pair of per-buffer mutexes.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/odflow/odflow/hhh"
	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/query"
)

// ResultFunc receives one interval's extracted odflows together with
// the closed buffer they were drawn from (for its StartTime/EndTime and
// totals) — the consumer's hand-off to the output stage.
type ResultFunc func(result *odflow.Queue, buf *ingest.Response)

// Pipeline owns the two Response buffers and their mutexes, the
// Adapter feeding them, and the consumer goroutine running HHH over a
// closed buffer (spec §4.7, §5 "two OS threads").
type Pipeline struct {
	Query    *query.Query
	Adapter  *ingest.Adapter
	OnResult ResultFunc

	// OnRotateLog is called once per consumer pass when a SIGHUP was
	// observed since the previous pass (spec §5 "SIGHUP causes the
	// consumer to reopen its output file").
	OnRotateLog func()

	buf [2]*ingest.Response
	mu  [2]sync.Mutex

	epoch   atomic.Uint64
	closing atomic.Bool
	hup     atomic.Bool
	exiting atomic.Bool

	carry     carryOver
	log       *zerolog.Logger
	blockWarn *rate.Limiter

	// KV publishes the latest completed interval's result for any
	// concurrent reader (e.g. a status endpoint) without taking a buffer
	// mutex, mirroring the teacher's pipe.Pipe.KV lock-free publish
	// pattern. The consumer Store()s "last_result" and "last_end" once
	// per interval, right after OnResult; nothing else ever deletes from
	// it, so Load is always safe from any goroutine.
	KV *xsync.MapOf[string, any]

	done chan struct{}
}

// New builds a Pipeline and its embedded Adapter. log defaults to
// zerolog.Nop() when nil.
func New(q *query.Query, onResult ResultFunc, log *zerolog.Logger) *Pipeline {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	p := &Pipeline{
		Query:     q,
		OnResult:  onResult,
		log:       log,
		blockWarn: rate.NewLimiter(rate.Every(time.Second), 1),
		KV:        xsync.NewMapOf[string, any](),
		done:      make(chan struct{}),
	}
	p.buf[0] = ingest.NewResponse()
	p.buf[1] = ingest.NewResponse()
	p.Adapter = ingest.NewAdapter(q, p.buf[0], p.rotate, log)
	p.Adapter.Closing = p.exiting.Load
	return p
}

// Start locks the producer's initial buffer and spawns the consumer
// goroutine (spec §4.7 "at startup the producer locks M[0]").
func (p *Pipeline) Start() {
	p.mu[0].Lock()
	go p.consume()
}

// rotate implements the producer's rotate sequence (spec §4.7): unlock
// the outgoing buffer, advance the epoch, then trylock the incoming
// buffer, falling back to a blocking lock (with a rate-limited warning)
// if the consumer hasn't released it yet.
func (p *Pipeline) rotate(closed *ingest.Response) *ingest.Response {
	e := p.epoch.Load()
	p.mu[e&1].Unlock()

	e++
	p.epoch.Store(e)
	next := p.buf[e&1]

	if !p.mu[e&1].TryLock() {
		if p.blockWarn.Allow() {
			p.log.Warn().Uint64("epoch", e).Msg("producer blocked waiting for consumer to release buffer")
		}
		p.mu[e&1].Lock()
	}

	return next
}

// Stop requests a cooperative shutdown (spec §5 "signal handlers set
// atomic flags ... check_flowtime returns −1, which drains the producer
// path"): safe to call from any goroutine, including a signal handler.
// It only marks the pipeline as exiting — Adapter.Ingest/Write notice
// the flag on the next record (via Adapter.Closing) and stop feeding the
// producer's buffer. Stop never touches a buffer mutex itself; Close
// must still be called, from the producer's own goroutine, to hand the
// final buffer off to the consumer.
func (p *Pipeline) Stop() {
	p.exiting.Store(true)
}

// Close finalizes a clean shutdown. It must be called only by the
// producer's own goroutine, once that goroutine has genuinely stopped
// feeding the pipeline — after Adapter.Write/Ingest has returned for the
// last time, whether because Stop was observed mid-stream or because
// the input simply ran out. Close unlocks the buffer the producer was
// last writing into so the consumer can drain it and exit (spec §4.7
// rotation safety: the two threads never touch the same buffer at once).
// Idempotent: safe to call more than once.
func (p *Pipeline) Close() {
	if p.closing.CompareAndSwap(false, true) {
		p.exiting.Store(true)
		p.mu[p.epoch.Load()&1].Unlock()
	}
}

// Reopen marks that the output file should be reopened on the
// consumer's next pass (spec §5 "SIGHUP").
func (p *Pipeline) Reopen() {
	p.hup.Store(true)
}

// Wait blocks until the consumer goroutine has processed the final
// buffer after Close.
func (p *Pipeline) Wait() {
	<-p.done
}

// consume is the consumer thread body: acquire the current epoch's
// mutex, optionally merge two-stage carry-over, run HHH, hand the
// result to OnResult (or stash it for two-stage), reset the buffer,
// honor a pending log-rotation request, then release and advance
// (spec §4.7 "consumer loop").
func (p *Pipeline) consume() {
	defer close(p.done)

	myEpoch := uint64(0)
	for {
		p.mu[myEpoch&1].Lock()
		buf := p.buf[myEpoch&1]

		if p.Query.TwoStage() {
			p.carry.merge(buf, p.Query)
		}

		result := hhh.RunInterval(buf, p.Query)

		emit := true
		if p.Query.TwoStage() {
			emit = p.carry.shouldEmit(buf, p.Query)
			if !emit {
				p.carry.save(buf, result)
			}
		}
		if emit && p.OnResult != nil {
			p.OnResult(result, buf)
		}

		p.KV.Store("last_result", result)
		p.KV.Store("last_end", buf.EndTime)

		buf.Reset()

		if p.hup.CompareAndSwap(true, false) && p.OnRotateLog != nil {
			p.OnRotateLog()
		}

		// Only the buffer Close released is the last one; an exiting flag
		// set by Stop alone, or seen while an earlier epoch is processed,
		// does not end the loop.
		done := p.closing.Load() && myEpoch == p.epoch.Load()
		p.mu[myEpoch&1].Unlock()
		if done {
			return
		}
		myEpoch++
	}
}
