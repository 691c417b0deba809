package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

func TestCarryOverMergeRollsOdflowsIntoBuffer(t *testing.T) {
	q := &query.Query{Interval: 60 * time.Second, OutputInterval: 300 * time.Second}

	var spec prefix.Spec
	spec.Srclen, spec.Dstlen = 32, 32
	spec.Src[0], spec.Src[1], spec.Src[2], spec.Src[3] = 10, 0, 0, 1
	spec.Dst[0], spec.Dst[1], spec.Dst[2], spec.Dst[3] = 10, 0, 0, 2

	carried := odflow.New(spec)
	carried.AF = odflow.AF_INET
	carried.Byte = 1000
	carried.Packet = 10

	savedQueue := &odflow.Queue{}
	savedQueue.PushTail(carried)

	var c carryOver
	c.save(&ingest.Response{StartTime: time.Unix(0, 0).UTC(), EndTime: time.Unix(60, 0).UTC()}, savedQueue)

	buf := ingest.NewResponse()
	buf.StartTime = time.Unix(60, 0).UTC()
	buf.EndTime = time.Unix(120, 0).UTC()

	c.merge(buf, q)

	require.False(t, c.active)
	got := buf.IPv4.Lookup(spec)
	require.Equal(t, uint64(1000), got.Byte)
	require.Equal(t, uint64(10), got.Packet)
	require.Equal(t, time.Unix(0, 0).UTC(), buf.StartTime)
}

func TestCarryOverMergeDiscardsAfterLongIdle(t *testing.T) {
	q := &query.Query{Interval: 60 * time.Second, OutputInterval: 300 * time.Second}

	var c carryOver
	c.save(&ingest.Response{StartTime: time.Unix(0, 0).UTC(), EndTime: time.Unix(60, 0).UTC()}, &odflow.Queue{})

	buf := ingest.NewResponse()
	buf.StartTime = time.Unix(60, 0).Add(q.OutputInterval + 10*time.Second).UTC()
	buf.EndTime = buf.StartTime.Add(60 * time.Second)

	c.merge(buf, q)
	require.False(t, c.active, "stale carry-over must be discarded, not merged")
}

func TestCarryOverShouldEmitNearBoundary(t *testing.T) {
	q := &query.Query{OutputInterval: 300 * time.Second}

	var c carryOver
	buf := &ingest.Response{
		StartTime: time.Unix(0, 0).UTC(),
		EndTime:   time.Unix(300, 0).UTC(),
	}
	require.True(t, c.shouldEmit(buf, q))

	buf.EndTime = time.Unix(120, 0).UTC()
	require.False(t, c.shouldEmit(buf, q))
}

func TestCarryOverSaveThenShouldEmitFiveIntervals(t *testing.T) {
	// S4: interval=60, output_interval=300; five consecutive closes should
	// save on the first four and emit on the fifth.
	q := &query.Query{Interval: 60 * time.Second, OutputInterval: 300 * time.Second}
	var c carryOver

	start := time.Unix(0, 0).UTC()
	for i := 0; i < 5; i++ {
		buf := ingest.NewResponse()
		buf.StartTime = start
		buf.EndTime = start.Add(q.Interval)

		c.merge(buf, q)

		emit := c.shouldEmit(buf, q)
		if i < 4 {
			require.False(t, emit, "interval %d", i)
			c.save(buf, &odflow.Queue{})
		} else {
			require.True(t, emit, "final interval should land on the boundary")
		}

		start = buf.EndTime
	}
}
