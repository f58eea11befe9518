// Error taxonomy for per-node failures. All of these are fatal to the node
// that raised them and never to the whole run (unless it is the last live node).

package sim

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a node failure for logging and the run summary.
type ErrorKind string

const (
	// KindProtocol covers malformed lines and messages that are invalid in
	// the node's current protocol state.
	KindProtocol ErrorKind = "protocol"
	// KindTimeout covers missing responses within the per-cycle deadline.
	KindTimeout ErrorKind = "timeout"
	// KindScheduling covers events scheduled or emitted in the past. It
	// indicates a correctness bug in the node implementation and is surfaced
	// immediately rather than clamped or dropped silently.
	KindScheduling ErrorKind = "scheduling"
	// KindTransport covers connection resets, broken pipes, and dial failures.
	// Policy-wise identical to KindTimeout.
	KindTransport ErrorKind = "transport"
)

// NodeError is the single error type crossing the Node Handle boundary.
// The coordinator converts every NodeError into a Failed state transition
// plus a structured log record; it never aborts the run loop.
type NodeError struct {
	Kind   ErrorKind
	NodeID string
	Cycle  int64 // coordinator cycle during which the failure occurred, -1 outside the run loop
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s error at cycle %d: %v", e.NodeID, e.Kind, e.Cycle, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// ProtocolErrorf builds a KindProtocol NodeError. Cycle is filled in by the
// coordinator when the error crosses the handle boundary.
func ProtocolErrorf(nodeID, format string, args ...any) *NodeError {
	return &NodeError{Kind: KindProtocol, NodeID: nodeID, Cycle: -1, Err: fmt.Errorf(format, args...)}
}

// TimeoutErrorf builds a KindTimeout NodeError.
func TimeoutErrorf(nodeID, format string, args ...any) *NodeError {
	return &NodeError{Kind: KindTimeout, NodeID: nodeID, Cycle: -1, Err: fmt.Errorf(format, args...)}
}

// SchedulingErrorf builds a KindScheduling NodeError.
func SchedulingErrorf(nodeID, format string, args ...any) *NodeError {
	return &NodeError{Kind: KindScheduling, NodeID: nodeID, Cycle: -1, Err: fmt.Errorf(format, args...)}
}

// TransportError wraps an I/O error from the node's connection.
func TransportError(nodeID string, err error) *NodeError {
	return &NodeError{Kind: KindTransport, NodeID: nodeID, Cycle: -1, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindTransport if err is not a
// NodeError (raw I/O errors surface from the net package directly).
func KindOf(err error) ErrorKind {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return KindTransport
}
