// Coordinator-side proxy for one connected node process. The handle owns the
// transport connection (closed exactly once) and enforces the protocol state
// machine from the coordinator's side: the coordinator never sends a second
// ADVANCE before the prior DONE has been consumed.

package sim

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HandleState is the protocol state of one node as seen by the coordinator.
type HandleState string

const (
	StateConnecting    HandleState = "connecting"
	StateAwaitingReady HandleState = "awaiting_ready"
	StateIdle          HandleState = "idle"
	StateAdvancing     HandleState = "advancing"
	StateAwaitingDone  HandleState = "awaiting_done"
	StateFailed        HandleState = "failed"
	StateShutDown      HandleState = "shut_down"
)

// NodeHandle proxies one node process.
//
// Concurrency: within a cycle exactly one coordinator goroutine drives a
// given handle, and the pending inbound queue is mutated only by the
// coordinator's single routing pass after the cycle's fan-in completes, so
// the handle needs no internal locking beyond the close-once guard.
type NodeHandle struct {
	NodeID string

	addr    string
	conn    net.Conn
	codec   *Codec
	timeout time.Duration

	state         HandleState
	currentTimeUS int64
	pending       []Event

	failedCycle int64
	failErr     *NodeError
	closeOnce   sync.Once
}

// NewNodeHandle creates a handle for a node expected to listen at addr.
// timeout bounds every per-operation wait (INIT/ADVANCE responses).
func NewNodeHandle(nodeID, addr string, timeout time.Duration) *NodeHandle {
	return &NodeHandle{
		NodeID:      nodeID,
		addr:        addr,
		timeout:     timeout,
		state:       StateConnecting,
		failedCycle: -1,
	}
}

// State returns the handle's protocol state.
func (h *NodeHandle) State() HandleState { return h.state }

// Live reports whether the node still participates in advance cycles.
func (h *NodeHandle) Live() bool {
	return h.state != StateFailed && h.state != StateShutDown
}

// CurrentTimeUS returns the last virtual time this node is known to have
// reached. Monotonically non-decreasing and bounded by the scenario clock.
func (h *NodeHandle) CurrentTimeUS() int64 { return h.currentTimeUS }

// FailedSince returns the cycle at which the node failed, or -1.
func (h *NodeHandle) FailedSince() int64 { return h.failedCycle }

// FailureError returns the error that failed the node, or nil.
func (h *NodeHandle) FailureError() *NodeError { return h.failErr }

// QueueInbound appends an event addressed to this node, to be delivered on
// its next advance. Called only from the coordinator's routing pass.
func (h *NodeHandle) QueueInbound(ev Event) {
	h.pending = append(h.pending, ev)
}

// TakeInbound drains the pending inbound queue.
func (h *NodeHandle) TakeInbound() []Event {
	evs := h.pending
	h.pending = nil
	return evs
}

// Connect dials the node with retries. Backend processes are launched
// externally and may not be listening yet when the coordinator starts, so a
// short dial-retry loop replaces any launch-order coupling.
func (h *NodeHandle) Connect(maxRetries int, retryDelay time.Duration) error {
	if h.state != StateConnecting {
		return ProtocolErrorf(h.NodeID, "Connect in state %s", h.state)
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, err := net.DialTimeout("tcp", h.addr, h.timeout)
		if err == nil {
			h.conn = conn
			h.codec = NewCodec(h.NodeID, conn)
			logrus.Infof("connected to node %s at %s", h.NodeID, h.addr)
			return nil
		}
		lastErr = err
		logrus.Debugf("dial %s (%s) attempt %d failed: %v", h.NodeID, h.addr, attempt+1, err)
		time.Sleep(retryDelay)
	}
	err := TransportError(h.NodeID, lastErr)
	h.fail(-1, err)
	return err
}

// Init sends INIT and waits (bounded) for READY.
func (h *NodeHandle) Init(config json.RawMessage) error {
	if h.state != StateConnecting || h.conn == nil {
		return ProtocolErrorf(h.NodeID, "Init in state %s", h.state)
	}
	h.state = StateAwaitingReady
	if err := h.codec.WriteInit(h.NodeID, config); err != nil {
		h.fail(-1, err)
		return err
	}
	if err := h.setDeadline(); err != nil {
		h.fail(-1, err)
		return err
	}
	if err := h.codec.ReadReady(); err != nil {
		err = h.classify(err)
		h.fail(-1, err)
		return err
	}
	h.state = StateIdle
	return nil
}

// Advance runs one request/response exchange: send ADVANCE with the inbound
// events, block (bounded) for DONE, and return the node's emitted events.
// The coordinator calls this from a per-node goroutine; the barrier join
// happens above, in Coordinator.runCycle. cycle is carried only for failure
// attribution in the run summary.
func (h *NodeHandle) Advance(cycle, targetUS int64, inbound []Event) ([]Event, error) {
	if h.state != StateIdle {
		err := ProtocolErrorf(h.NodeID, "Advance in state %s", h.state)
		h.fail(cycle, err)
		return nil, err
	}
	cycleStartUS := h.currentTimeUS

	h.state = StateAdvancing
	if err := h.codec.WriteAdvance(targetUS, inbound); err != nil {
		h.fail(cycle, err)
		return nil, err
	}

	h.state = StateAwaitingDone
	if err := h.setDeadline(); err != nil {
		h.fail(cycle, err)
		return nil, err
	}
	emitted, err := h.codec.ReadDone()
	if err != nil {
		err = h.classify(err)
		h.fail(cycle, err)
		return nil, err
	}

	// A node may never emit into its own past. Emission happened somewhere in
	// [cycleStart, target), so anything below cycle start is detectably
	// retroactive and rejected rather than clamped.
	for _, ev := range emitted {
		if ev.TimeUS < cycleStartUS {
			err := SchedulingErrorf(h.NodeID, "emitted %s at %dus, cycle started at %dus", ev.EventType, ev.TimeUS, cycleStartUS)
			h.fail(cycle, err)
			return nil, err
		}
	}

	h.state = StateIdle
	h.currentTimeUS = targetUS
	return emitted, nil
}

// Shutdown sends SHUTDOWN and waits up to grace for the node to acknowledge
// by closing its end, then closes the connection. A node that outlives the
// grace period is force-closed; that is not a failure.
func (h *NodeHandle) Shutdown(grace time.Duration) {
	if h.state != StateIdle {
		h.closeConn()
		return
	}
	if err := h.codec.WriteShutdown(); err == nil {
		_ = h.conn.SetReadDeadline(time.Now().Add(grace))
		// EOF from the peer is the acknowledgement.
		buf := make([]byte, 1)
		for {
			if _, err := h.conn.Read(buf); err != nil {
				if err != io.EOF {
					logrus.Debugf("node %s did not close within shutdown grace: %v", h.NodeID, err)
				}
				break
			}
		}
	}
	h.closeConn()
	h.state = StateShutDown
	logrus.Infof("node %s shut down at %dus", h.NodeID, h.currentTimeUS)
}

// Fail transitions the handle to Failed at the given coordinator cycle.
// Failed is terminal for the remainder of the run.
func (h *NodeHandle) Fail(cycle int64, err error) {
	h.fail(cycle, err)
}

func (h *NodeHandle) fail(cycle int64, err error) {
	if h.state == StateFailed {
		return
	}
	ne, ok := err.(*NodeError)
	if !ok {
		ne = TransportError(h.NodeID, err)
	}
	ne.Cycle = cycle
	h.state = StateFailed
	h.failedCycle = cycle
	h.failErr = ne
	h.closeConn()
	logrus.Errorf("node %s failed (%s, cycle %d): %v", h.NodeID, ne.Kind, cycle, ne.Err)
}

func (h *NodeHandle) closeConn() {
	h.closeOnce.Do(func() {
		if h.conn != nil {
			_ = h.conn.Close()
		}
	})
}

func (h *NodeHandle) setDeadline() error {
	if err := h.conn.SetReadDeadline(time.Now().Add(h.timeout)); err != nil {
		return TransportError(h.NodeID, err)
	}
	return nil
}

// classify rewrites transport-level deadline expirations as timeouts so the
// summary distinguishes "slow node" from "dead connection".
func (h *NodeHandle) classify(err error) error {
	ne, ok := err.(*NodeError)
	if !ok || ne.Kind != KindTransport {
		return err
	}
	var nerr net.Error
	if errors.As(ne.Err, &nerr) && nerr.Timeout() {
		return TimeoutErrorf(h.NodeID, "no response within %s", h.timeout)
	}
	return err
}
