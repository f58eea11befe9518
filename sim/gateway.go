// GatewayNode: reference edge-gateway model. Receives sensor readings,
// processes each after a fixed deterministic latency, and aggregates
// per-sensor statistics.

package sim

import (
	"encoding/json"
	"fmt"
)

// EventProcess is the gateway's self-scheduled processing completion.
const EventProcess = "PROCESS"

// GatewayNode is deterministic: processing latency is fixed and aggregation
// depends only on the delivered event stream.
type GatewayNode struct {
	ModelCore

	// ProcessingDelayUS is the fixed latency between receiving a reading and
	// finishing its processing. Config may override via "processing_delay_us".
	ProcessingDelayUS int64

	MessagesReceived  int
	MessagesProcessed int
	// Readings accumulates processed temperatures per source sensor.
	Readings map[string][]float64
}

type gatewayConfig struct {
	Seed              int64  `json:"seed"`
	ProcessingDelayUS *int64 `json:"processing_delay_us"`
}

// NewGatewayNode creates a gateway with the reference 100us processing delay.
func NewGatewayNode() *GatewayNode {
	return &GatewayNode{ProcessingDelayUS: 100}
}

// Init registers handlers. The gateway schedules nothing up front; all its
// work is reactive.
func (n *GatewayNode) Init(nodeID string, config json.RawMessage) error {
	var cfg gatewayConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("gateway %s config: %w", nodeID, err)
	}
	if cfg.ProcessingDelayUS != nil {
		n.ProcessingDelayUS = *cfg.ProcessingDelayUS
	}
	n.InitCore(nodeID, cfg.Seed)
	n.Readings = make(map[string][]float64)
	n.Handle(EventTransmit, n.onTransmit)
	n.Handle(EventProcess, n.onProcess)
	return nil
}

// Advance delegates to the deterministic core.
func (n *GatewayNode) Advance(targetUS int64, inbound []Event) ([]Event, error) {
	return n.AdvanceCore(targetUS, inbound)
}

// Shutdown is a no-op.
func (n *GatewayNode) Shutdown() error { return nil }

// onTransmit queues the reading for processing after the fixed delay.
// Inbound TRANSMIT events may predate the gateway's clock by up to one
// quantum (cross-node delivery happens at quantum boundaries), so the
// processing completion is anchored to the reading's own timestamp.
func (n *GatewayNode) onTransmit(ev Event) ([]Event, error) {
	n.MessagesReceived++
	payload := map[string]any{"sensor": ev.Source}
	for k, v := range ev.Payload {
		payload[k] = v
	}
	return nil, n.ScheduleSelf(Event{
		EventType: EventProcess,
		TimeUS:    ev.TimeUS + n.ProcessingDelayUS,
		Source:    n.NodeID(),
		Payload:   payload,
		SizeBytes: ev.SizeBytes,
	})
}

// onProcess records the reading.
func (n *GatewayNode) onProcess(ev Event) ([]Event, error) {
	n.MessagesProcessed++
	src, _ := ev.Payload["sensor"].(string)
	if src == "" {
		src = "unknown"
	}
	if temp, ok := ev.Payload["temperature"].(float64); ok {
		n.Readings[src] = append(n.Readings[src], temp)
	}
	return nil, nil
}
