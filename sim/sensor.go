// SensorNode: the reference deterministic node model. A simulated IoT sensor
// that samples a Gaussian temperature on a fixed period and transmits each
// reading to a gateway node.

package sim

import (
	"encoding/json"
	"fmt"
)

// Sensor event types.
const (
	EventSample   = "SAMPLE"   // self-scheduled periodic sampling tick
	EventTransmit = "TRANSMIT" // reading sent to the gateway
)

// SensorNode is deterministic by construction: its output stream is a pure
// function of (node id, scenario seed, delivered events). Two runs with the
// same scenario and seed produce byte-identical TRANSMIT streams.
type SensorNode struct {
	ModelCore

	// Defaults match the reference behavior: first sample at t=1s, one sample
	// per second, readings addressed to "gateway". Config may override via
	// "start_us", "interval_us", and "gateway".
	StartUS    int64
	IntervalUS int64
	GatewayID  string

	// Temperature distribution (degrees Celsius).
	MeanTemp  float64
	StdevTemp float64

	SamplesTaken int
	MessagesSent int
}

type sensorConfig struct {
	Seed       int64  `json:"seed"`
	StartUS    *int64 `json:"start_us"`
	IntervalUS *int64 `json:"interval_us"`
	Gateway    string `json:"gateway"`
}

// NewSensorNode creates a sensor with the reference defaults. Identity and
// seed arrive later, via Init.
func NewSensorNode() *SensorNode {
	return &SensorNode{
		StartUS:    1_000_000,
		IntervalUS: 1_000_000,
		GatewayID:  "gateway",
		MeanTemp:   20.0,
		StdevTemp:  2.0,
	}
}

// Init derives the RNG, registers handlers, and schedules the first sample.
func (n *SensorNode) Init(nodeID string, config json.RawMessage) error {
	var cfg sensorConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("sensor %s config: %w", nodeID, err)
	}
	if cfg.StartUS != nil {
		n.StartUS = *cfg.StartUS
	}
	if cfg.IntervalUS != nil {
		n.IntervalUS = *cfg.IntervalUS
	}
	if cfg.Gateway != "" {
		n.GatewayID = cfg.Gateway
	}
	n.InitCore(nodeID, cfg.Seed)
	n.Handle(EventSample, n.onSample)
	return n.ScheduleSelf(Event{
		EventType: EventSample,
		TimeUS:    n.StartUS,
		Source:    nodeID,
	})
}

// Advance delegates to the deterministic core.
func (n *SensorNode) Advance(targetUS int64, inbound []Event) ([]Event, error) {
	return n.AdvanceCore(targetUS, inbound)
}

// Shutdown is a no-op; the sensor holds no external resources.
func (n *SensorNode) Shutdown() error { return nil }

// onSample takes one reading, schedules the next sampling tick, and emits the
// TRANSMIT event carrying the reading.
func (n *SensorNode) onSample(ev Event) ([]Event, error) {
	temperature := n.RNG().NormFloat64()*n.StdevTemp + n.MeanTemp
	n.SamplesTaken++

	if err := n.ScheduleSelf(Event{
		EventType: EventSample,
		TimeUS:    n.CurrentTimeUS() + n.IntervalUS,
		Source:    n.NodeID(),
	}); err != nil {
		return nil, err
	}

	n.MessagesSent++
	return []Event{{
		EventType:   EventTransmit,
		TimeUS:      n.CurrentTimeUS(),
		Source:      n.NodeID(),
		Destination: n.GatewayID,
		Payload: map[string]any{
			"temperature": temperature,
			"unit":        "C",
			"sample_id":   n.SamplesTaken,
		},
		SizeBytes: 64,
	}}, nil
}
