// Node-side building blocks: the NodeModel contract every in-process backend
// implements, and the NodeServer that exposes a model to a coordinator over
// the wire protocol. Real external backends (emulators, containers) speak the
// same protocol from their own processes and never touch this code.

package sim

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"

	"github.com/sirupsen/logrus"
)

// NodeModel is a single simulated node. Implementations declare themselves
// deterministic by construction: their only sources of variation are the
// seeded RNG handed out at Init, their virtual clock, and the inbound event
// stream. Models wrapping genuinely non-deterministic backends are exempt and
// must say so in their documentation.
type NodeModel interface {
	// Init assigns the node its identity and configuration. The config JSON
	// always carries "seed", the scenario seed the node derives its RNG from.
	Init(nodeID string, config json.RawMessage) error
	// Advance processes all queued events strictly before targetUS and
	// returns the events emitted along the way. On return the node's clock
	// is exactly targetUS.
	Advance(targetUS int64, inbound []Event) ([]Event, error)
	// Shutdown releases any resources. Called once, at simulation end.
	Shutdown() error
	// CurrentTimeUS returns the node's virtual clock.
	CurrentTimeUS() int64
}

// NewNodeModel constructs a built-in reference model by type name, the same
// names scenario files use.
func NewNodeModel(kind string) (NodeModel, error) {
	switch kind {
	case "sensor":
		return NewSensorNode(), nil
	case "gateway":
		return NewGatewayNode(), nil
	default:
		return nil, fmt.Errorf("unknown node type %q", kind)
	}
}

// === ModelCore ===

// Handler processes one due event at the node's current virtual time and may
// emit outbound events. Follow-up work is scheduled through the core, not
// returned.
type Handler func(ev Event) ([]Event, error)

// ModelCore is the deterministic kernel shared by the built-in models: a
// virtual clock, the (time, insertion-sequence) event queue, a seeded RNG,
// and a dispatch table keyed by event type. The coordinator is type-agnostic
// to payloads; each node owns its own dispatch.
type ModelCore struct {
	nodeID   string
	clockUS  int64
	queue    *EventQueue
	rng      *rand.Rand
	handlers map[string]Handler
}

// InitCore sets identity, derives the RNG seed from (nodeID, scenario seed),
// and resets the clock and queue.
func (m *ModelCore) InitCore(nodeID string, seed int64) {
	m.nodeID = nodeID
	m.clockUS = 0
	m.queue = NewEventQueue(nodeID)
	m.rng = NewNodeRNG(nodeID, NewScenarioKey(seed))
	if m.handlers == nil {
		m.handlers = make(map[string]Handler)
	}
}

// Handle registers the handler for an event type.
func (m *ModelCore) Handle(eventType string, h Handler) {
	if m.handlers == nil {
		m.handlers = make(map[string]Handler)
	}
	m.handlers[eventType] = h
}

// NodeID returns the identity assigned at Init.
func (m *ModelCore) NodeID() string { return m.nodeID }

// CurrentTimeUS returns the node's virtual clock.
func (m *ModelCore) CurrentTimeUS() int64 { return m.clockUS }

// RNG returns the node's seeded RNG, its only permitted randomness source.
func (m *ModelCore) RNG() *rand.Rand { return m.rng }

// ScheduleSelf queues future work for this node. Scheduling into the node's
// past is a programming error and fails loudly.
func (m *ModelCore) ScheduleSelf(ev Event) error {
	return m.queue.Schedule(ev, m.clockUS)
}

// AdvanceCore implements the deterministic advance contract: pop every queued
// event with TimeUS strictly below target in (time, insertion) order, set the
// clock to each popped timestamp before dispatching it, then land the clock
// exactly on target. Events at exactly target stay queued for the next cycle.
func (m *ModelCore) AdvanceCore(targetUS int64, inbound []Event) ([]Event, error) {
	for _, ev := range inbound {
		m.queue.Deliver(ev)
	}
	var out []Event
	for {
		ev, ok := m.queue.PopDue(targetUS)
		if !ok {
			break
		}
		m.clockUS = ev.TimeUS
		h, known := m.handlers[ev.EventType]
		if !known {
			logrus.Debugf("node %s: no handler for %s, dropping", m.nodeID, ev.EventType)
			continue
		}
		emitted, err := h(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
	}
	m.clockUS = targetUS
	return out, nil
}

// === NodeServer ===

// NodeServer serves one NodeModel to one coordinator connection. It accepts
// a single connection (the coordinator owns the node for the run's lifetime)
// and runs the strict request/response loop until SHUTDOWN or disconnect.
type NodeServer struct {
	model NodeModel
	ln    net.Listener
}

// NewNodeServer starts listening at addr (e.g. "127.0.0.1:5001"; port 0
// picks a free port, see Addr).
func NewNodeServer(model NodeModel, addr string) (*NodeServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening at %s: %w", addr, err)
	}
	return &NodeServer{model: model, ln: ln}, nil
}

// Addr returns the bound listen address.
func (s *NodeServer) Addr() string { return s.ln.Addr().String() }

// Close stops listening. Safe to call while Serve blocks in Accept.
func (s *NodeServer) Close() error { return s.ln.Close() }

// Serve blocks until the protocol session ends. A model error (for example a
// SchedulingError from a buggy handler) is surfaced by closing the connection
// mid-cycle; the coordinator observes that as a failure of this node only.
func (s *NodeServer) Serve() error {
	conn, err := s.ln.Accept()
	if err != nil {
		return fmt.Errorf("accepting coordinator connection: %w", err)
	}
	defer conn.Close()
	logrus.Infof("coordinator connected from %s", conn.RemoteAddr())

	codec := NewCodec("coordinator", conn)
	for {
		cmd, err := codec.ReadCommand()
		if err != nil {
			if KindOf(err) == KindTransport {
				// Coordinator went away; nothing more to serve.
				return nil
			}
			return err
		}
		switch cmd.Kind {
		case CmdInit:
			if err := s.model.Init(cmd.NodeID, cmd.Config); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := codec.WriteReady(); err != nil {
				return err
			}
		case CmdAdvance:
			inbound, err := codec.ReadEvents()
			if err != nil {
				return err
			}
			outbound, err := s.model.Advance(cmd.TargetUS, inbound)
			if err != nil {
				logrus.Errorf("advance to %dus failed: %v", cmd.TargetUS, err)
				return err
			}
			if err := codec.WriteDone(outbound); err != nil {
				return err
			}
		case CmdShutdown:
			logrus.Infof("shutdown received at %dus", s.model.CurrentTimeUS())
			return s.model.Shutdown()
		}
	}
}
