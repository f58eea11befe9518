// Defines the Event struct that flows between nodes and the coordinator.
// Events are immutable records of something happening at a point in virtual time.

package sim

import (
	"encoding/json"
	"fmt"
)

// Event is the unit of communication in the federation. The coordinator is
// type-agnostic to payloads: it reads only the routing fields (Source,
// Destination) and the timestamp. Everything else passes through unmodified.
//
// An empty Destination means the event is informational (a metric or log
// sample) and is handed to the run's EventSink instead of another node.
type Event struct {
	EventType   string         `json:"event_type"`
	TimeUS      int64          `json:"time_us"`
	Source      string         `json:"source"`
	Destination string         `json:"destination,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	SizeBytes   int            `json:"size_bytes,omitempty"`
}

// Validate checks the structural invariants every event must satisfy
// regardless of who produced it.
func (e Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event has empty event_type")
	}
	if e.TimeUS < 0 {
		return fmt.Errorf("event %q has negative time_us %d", e.EventType, e.TimeUS)
	}
	if e.Source == "" {
		return fmt.Errorf("event %q at %dus has empty source", e.EventType, e.TimeUS)
	}
	return nil
}

func (e Event) String() string {
	dst := e.Destination
	if dst == "" {
		dst = "<sink>"
	}
	return fmt.Sprintf("Event(%s %s->%s @%dus)", e.EventType, e.Source, dst, e.TimeUS)
}

// EncodeEvents serializes a batch of events as a single JSON array, the shape
// both sides of the wire protocol exchange. A nil slice encodes as "[]", the
// common "no events" case.
func EncodeEvents(events []Event) ([]byte, error) {
	if events == nil {
		events = []Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encoding %d events: %w", len(events), err)
	}
	return data, nil
}

// DecodeEvents parses a JSON array of events. Anything that is not a
// syntactically valid JSON array of event objects is an error; callers
// translate that into a ProtocolError for the offending peer.
func DecodeEvents(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decoding event array: %w", err)
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}
