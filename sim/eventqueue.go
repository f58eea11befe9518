// Implements the deterministic node-side event queue. Ordering is the core
// of the determinism contract: (time_us, insertion sequence), where the
// sequence comes from a counter owned by the queue, never from wall-clock
// or pointer identity.

package sim

import (
	"container/heap"
)

// queueItem pairs an event with its insertion sequence number, the tie-break
// for equal timestamps.
type queueItem struct {
	event Event
	seq   uint64
}

// itemHeap implements heap.Interface over queueItems.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].event.TimeUS != h[j].event.TimeUS {
		return h[i].event.TimeUS < h[j].event.TimeUS
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(queueItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// EventQueue holds a node's not-yet-processed future events.
//
// Two insertion paths exist on purpose:
//   - Schedule is for the node's own future work and rejects timestamps in
//     the node's past, since that is a correctness bug in the node.
//   - Deliver is for coordinator-routed inbound events, which may legitimately
//     carry timestamps earlier than the node's clock (they were produced by
//     another node inside the previous quantum).
type EventQueue struct {
	nodeID string
	items  itemHeap
	seq    uint64
}

// NewEventQueue creates an empty queue for the named node.
func NewEventQueue(nodeID string) *EventQueue {
	return &EventQueue{nodeID: nodeID, items: make(itemHeap, 0)}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return len(q.items)
}

// Schedule enqueues a future event the node planned for itself. Scheduling
// into the past fails loudly with a SchedulingError.
func (q *EventQueue) Schedule(ev Event, nowUS int64) error {
	if ev.TimeUS < nowUS {
		return SchedulingErrorf(q.nodeID, "scheduled %s at %dus, already at %dus", ev.EventType, ev.TimeUS, nowUS)
	}
	q.push(ev)
	return nil
}

// Deliver enqueues an inbound event routed by the coordinator. No past check:
// cross-node events arrive at quantum boundaries and may predate the node's
// clock by up to one quantum.
func (q *EventQueue) Deliver(ev Event) {
	q.push(ev)
}

func (q *EventQueue) push(ev Event) {
	heap.Push(&q.items, queueItem{event: ev, seq: q.seq})
	q.seq++
}

// PopDue removes and returns the earliest event with TimeUS strictly below
// target. An event at exactly target stays queued for the next cycle; the
// boundary rule must be applied consistently everywhere or federated runs
// drift apart by one quantum.
func (q *EventQueue) PopDue(targetUS int64) (Event, bool) {
	if len(q.items) == 0 || q.items[0].event.TimeUS >= targetUS {
		return Event{}, false
	}
	item := heap.Pop(&q.items).(queueItem)
	return item.event, true
}

// PeekTime returns the timestamp of the earliest queued event.
func (q *EventQueue) PeekTime() (int64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].event.TimeUS, true
}
