// Event sinks receive undirected events (no destination, or a destination no
// live node answers to). They are the federation's metrics/log boundary; the
// coordinator itself never interprets payloads.

package sim

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// EventSink persists informational events emitted during a run.
type EventSink interface {
	Record(ev Event) error
	Close() error
}

// === LogSink ===

// LogSink writes undirected events to the structured log. The default sink
// when no persistence is configured.
type LogSink struct{}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink { return &LogSink{} }

// Record logs the event at info level.
func (s *LogSink) Record(ev Event) error {
	logrus.Infof("metric %s from %s at %dus: %v", ev.EventType, ev.Source, ev.TimeUS, ev.Payload)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// === CSVSink ===

// CSVSink appends one row per event to a CSV file:
// time_us, event_type, source, destination, payload(JSON), size_bytes.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates the file (truncating any previous run's output) and
// writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating metrics file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"time_us", "event_type", "source", "destination", "payload", "size_bytes"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing metrics header: %w", err)
	}
	return &CSVSink{file: f, writer: w}, nil
}

// Record appends one event row.
func (s *CSVSink) Record(ev Event) error {
	payload := ""
	if ev.Payload != nil {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload of %s: %w", ev, err)
		}
		payload = string(data)
	}
	return s.writer.Write([]string{
		strconv.FormatInt(ev.TimeUS, 10),
		ev.EventType,
		ev.Source,
		ev.Destination,
		payload,
		strconv.Itoa(ev.SizeBytes),
	})
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
