// The determinism harness drives a single NodeModel through the protocol
// semantics without a network: INIT with a seed, fixed-quantum ADVANCE
// cycles, SHUTDOWN. It exists so the determinism and event-queue contracts
// can be verified in-process, byte for byte.

package sim

import (
	"encoding/json"
	"fmt"
)

// Harness wraps one model and plays the coordinator's role for it.
type Harness struct {
	model     NodeModel
	nodeID    string
	quantumUS int64
	nowUS     int64
	inbound   []Event
	emitted   []Event
}

// NewHarness initializes model as nodeID with the given scenario seed and
// quantum. The config JSON handed to the model is exactly what a coordinator
// would send.
func NewHarness(model NodeModel, nodeID string, seed, quantumUS int64) (*Harness, error) {
	if quantumUS <= 0 {
		return nil, fmt.Errorf("quantum must be positive, got %dus", quantumUS)
	}
	config, err := json.Marshal(map[string]any{"seed": seed})
	if err != nil {
		return nil, err
	}
	if err := model.Init(nodeID, config); err != nil {
		return nil, fmt.Errorf("init %s: %w", nodeID, err)
	}
	return &Harness{model: model, nodeID: nodeID, quantumUS: quantumUS}, nil
}

// NowUS returns the harness's virtual clock (the last advance target).
func (h *Harness) NowUS() int64 { return h.nowUS }

// Emitted returns the full ordered stream the model has emitted so far.
func (h *Harness) Emitted() []Event { return h.emitted }

// Deliver queues events for the model's next advance, exactly as the
// coordinator's routing pass would between cycles.
func (h *Harness) Deliver(events ...Event) {
	h.inbound = append(h.inbound, events...)
}

// Step runs one full-quantum advance cycle and returns the events emitted
// during it.
func (h *Harness) Step() ([]Event, error) {
	return h.stepTo(h.nowUS + h.quantumUS)
}

func (h *Harness) stepTo(targetUS int64) ([]Event, error) {
	inbound := h.inbound
	h.inbound = nil
	out, err := h.model.Advance(targetUS, inbound)
	if err != nil {
		return nil, err
	}
	h.nowUS = targetUS
	h.emitted = append(h.emitted, out...)
	return out, nil
}

// RunFor advances cycle by cycle until exactly durationUS and returns the
// complete emitted stream. The final cycle is clamped to durationUS when the
// duration is not a quantum multiple, the same rule the coordinator's clock
// applies.
func (h *Harness) RunFor(durationUS int64) ([]Event, error) {
	for h.nowUS < durationUS {
		target := h.nowUS + h.quantumUS
		if target > durationUS {
			target = durationUS
		}
		if _, err := h.stepTo(target); err != nil {
			return nil, err
		}
	}
	return h.emitted, nil
}

// Shutdown forwards the simulation-end signal to the model.
func (h *Harness) Shutdown() error {
	return h.model.Shutdown()
}
