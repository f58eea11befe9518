// Package sim implements the federated co-simulation core: a coordinator
// that advances heterogeneous node processes in conservative lockstep, the
// line-oriented protocol they speak, and the deterministic building blocks
// node implementations rely on.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - event.go: the Event record that flows between nodes and the coordinator
//   - coordinator.go: the lockstep loop (fan-out, barrier, routing)
//   - handle.go: the per-node protocol state machine on the coordinator side
//
// # Architecture
//
// One coordinating goroutine owns the ScenarioClock and never mutates it
// concurrently. Each cycle it fans ADVANCE requests out across all live
// NodeHandles (one goroutine per handle, joined with an errgroup barrier),
// then routes the collected events and advances the clock. Per-node failures
// (timeout, malformed response, broken connection) transition only that
// handle to Failed; the run continues until no live nodes remain.
//
// Node-side, ModelCore provides the deterministic kernel (virtual clock,
// (time, insertion-sequence) event queue, SHA-256-derived RNG seed) that the
// built-in reference models (sensor.go, gateway.go) are assembled from, and
// NodeServer exposes any NodeModel to a coordinator over the wire. The
// Harness drives a NodeModel through the same semantics without a network,
// which is how the determinism contract is tested.
package sim
