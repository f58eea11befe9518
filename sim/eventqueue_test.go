package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func popAll(q *EventQueue, targetUS int64) []Event {
	var out []Event
	for {
		ev, ok := q.PopDue(targetUS)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestEventQueue_OrdersByTime(t *testing.T) {
	// GIVEN events scheduled out of timestamp order
	q := NewEventQueue("n")
	require.NoError(t, q.Schedule(Event{EventType: "C", TimeUS: 300, Source: "n"}, 0))
	require.NoError(t, q.Schedule(Event{EventType: "A", TimeUS: 100, Source: "n"}, 0))
	require.NoError(t, q.Schedule(Event{EventType: "B", TimeUS: 200, Source: "n"}, 0))

	// WHEN popping everything due
	got := popAll(q, 1000)

	// THEN they come out in timestamp order
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].EventType)
	assert.Equal(t, "B", got[1].EventType)
	assert.Equal(t, "C", got[2].EventType)
}

func TestEventQueue_EqualTimestamps_TieBreakByInsertion(t *testing.T) {
	// Equal timestamps must resolve by insertion sequence, never by pointer
	// identity or any per-process ordering.
	q := NewEventQueue("n")
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, q.Schedule(Event{EventType: name, TimeUS: 500, Source: "n"}, 0))
	}

	got := popAll(q, 1000)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].EventType)
	assert.Equal(t, "second", got[1].EventType)
	assert.Equal(t, "third", got[2].EventType)
}

func TestEventQueue_BoundaryRule_EventAtTargetIsDeferred(t *testing.T) {
	// An event at exactly the target belongs to the next cycle.
	q := NewEventQueue("n")
	require.NoError(t, q.Schedule(Event{EventType: "before", TimeUS: 999, Source: "n"}, 0))
	require.NoError(t, q.Schedule(Event{EventType: "at", TimeUS: 1000, Source: "n"}, 0))

	got := popAll(q, 1000)
	require.Len(t, got, 1)
	assert.Equal(t, "before", got[0].EventType)

	// The deferred event pops in the cycle whose target exceeds it.
	got = popAll(q, 2000)
	require.Len(t, got, 1)
	assert.Equal(t, "at", got[0].EventType)
}

func TestEventQueue_ScheduleInPast_FailsLoudly(t *testing.T) {
	q := NewEventQueue("n")

	err := q.Schedule(Event{EventType: "late", TimeUS: 400, Source: "n"}, 500)

	require.Error(t, err)
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, KindScheduling, ne.Kind)
	assert.Equal(t, 0, q.Len(), "a rejected event must not be enqueued")
}

func TestEventQueue_DeliverAcceptsPastTimestamps(t *testing.T) {
	// Inbound cross-node events may predate the node's clock by up to one
	// quantum; delivery has no past check.
	q := NewEventQueue("n")
	q.Deliver(Event{EventType: "inbound", TimeUS: 100, Source: "other"})

	got := popAll(q, 1000)
	require.Len(t, got, 1)
	assert.Equal(t, "inbound", got[0].EventType)
}

func TestEventQueue_PeekTime(t *testing.T) {
	q := NewEventQueue("n")
	_, ok := q.PeekTime()
	assert.False(t, ok)

	require.NoError(t, q.Schedule(Event{EventType: "x", TimeUS: 42, Source: "n"}, 0))
	ts, ok := q.PeekTime()
	require.True(t, ok)
	assert.Equal(t, int64(42), ts)
}
