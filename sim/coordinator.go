// The coordinator: owns the scenario clock, drives all node handles through
// synchronized advance cycles, routes emitted events, and detects failures.

package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrAllNodesFailed terminates a run in which no live nodes remain. Partial
// failures do not abort a run; only total failure does.
var ErrAllNodesFailed = errors.New("all nodes failed")

// CoordinatorConfig carries the run parameters the coordinator needs beyond
// the node list.
type CoordinatorConfig struct {
	QuantumUS      int64         // fixed virtual-time step per cycle
	Seed           int64         // scenario seed, forwarded to every node in INIT
	AdvanceTimeout time.Duration // per-operation deadline for INIT/ADVANCE responses
	ShutdownGrace  time.Duration // bounded wait for shutdown acknowledgement
	DialRetries    int           // connection attempts per node
	DialRetryDelay time.Duration // pause between connection attempts
	ProgressEvery  int64         // cycles between progress log lines (0 = 1000)
}

// withDefaults fills unset optional fields.
func (cfg CoordinatorConfig) withDefaults() CoordinatorConfig {
	if cfg.AdvanceTimeout <= 0 {
		cfg.AdvanceTimeout = 10 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 2 * time.Second
	}
	if cfg.DialRetries <= 0 {
		cfg.DialRetries = 10
	}
	if cfg.DialRetryDelay <= 0 {
		cfg.DialRetryDelay = 500 * time.Millisecond
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 1000
	}
	return cfg
}

// Coordinator advances a set of federated nodes in conservative lockstep.
type Coordinator struct {
	cfg     CoordinatorConfig
	clock   *ScenarioClock
	key     ScenarioKey
	sink    EventSink
	cycle   int64
	byID    map[string]*NodeHandle
	handles []*NodeHandle // registration order; also the deterministic routing order
}

// NewCoordinator creates a coordinator with no nodes registered. Undirected
// and undeliverable events go to sink; a nil sink logs them.
func NewCoordinator(cfg CoordinatorConfig, sink EventSink) *Coordinator {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = NewLogSink()
	}
	return &Coordinator{
		cfg:   cfg,
		clock: NewScenarioClock(cfg.QuantumUS),
		key:   NewScenarioKey(cfg.Seed),
		sink:  sink,
		byID:  make(map[string]*NodeHandle),
	}
}

// Clock exposes the scenario clock for observation. Nodes never see it; they
// learn about time only through ADVANCE targets.
func (c *Coordinator) Clock() *ScenarioClock { return c.clock }

// Handles returns the registered node handles in registration order.
func (c *Coordinator) Handles() []*NodeHandle { return c.handles }

// AddNode registers a node expected to listen at addr. Registration order is
// load-bearing: it is the order the routing pass walks each cycle's results,
// which keeps same-timestamp tie-breaks reproducible across runs.
func (c *Coordinator) AddNode(nodeID, addr string) error {
	if nodeID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if _, dup := c.byID[nodeID]; dup {
		return fmt.Errorf("duplicate node id %q", nodeID)
	}
	h := NewNodeHandle(nodeID, addr, c.cfg.AdvanceTimeout)
	c.byID[nodeID] = h
	c.handles = append(c.handles, h)
	return nil
}

// ConnectAll dials and initializes every registered node. Setup is fail-fast:
// a node that cannot be reached or refuses INIT aborts the run before any
// virtual time passes, unlike mid-run failures which degrade gracefully.
func (c *Coordinator) ConnectAll() error {
	logrus.Infof("connecting to %d nodes (seed=%d)", len(c.handles), c.cfg.Seed)
	config, err := json.Marshal(map[string]any{"seed": c.cfg.Seed})
	if err != nil {
		return fmt.Errorf("building INIT config: %w", err)
	}
	for _, h := range c.handles {
		if err := h.Connect(c.cfg.DialRetries, c.cfg.DialRetryDelay); err != nil {
			return fmt.Errorf("connecting node %s: %w", h.NodeID, err)
		}
		if err := h.Init(config); err != nil {
			return fmt.Errorf("initializing node %s: %w", h.NodeID, err)
		}
		logrus.Infof("node %s initialized and ready", h.NodeID)
	}
	return nil
}

// RunSimulation drives the global clock from 0 to durationUS in fixed quanta.
//
// Each cycle: fan out ADVANCE (with pending inbound events) to all live nodes
// concurrently, join at the all-DONE barrier, route emitted events, then and
// only then advance the clock. No node's time ever exceeds the global clock
// observed at the start of a cycle.
//
// Known approximation: within one quantum live nodes advance concurrently and
// causally independently; events between them are delivered only at the next
// quantum boundary. Sub-quantum causality between two live nodes is NOT
// modeled, only end-of-quantum consistency. Choose the quantum accordingly.
//
// A node that times out, disconnects, or responds malformed transitions to
// Failed and is excluded from subsequent cycles; the run continues with the
// remaining nodes and only returns ErrAllNodesFailed once none are left.
func (c *Coordinator) RunSimulation(ctx context.Context, durationUS int64) (*RunSummary, error) {
	if durationUS <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %dus", durationUS)
	}
	logrus.Infof("starting run: duration=%dus quantum=%dus nodes=%d",
		durationUS, c.cfg.QuantumUS, len(c.handles))
	startWall := time.Now()

	var runErr error
	for c.clock.NowUS() < durationUS {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if c.liveCount() == 0 {
			runErr = ErrAllNodesFailed
			break
		}
		c.runCycle(durationUS)
		if c.cycle%c.cfg.ProgressEvery == 0 {
			elapsed := time.Since(startWall)
			logrus.Infof("cycle %d: t=%dus (%.1f%%), wall=%s",
				c.cycle, c.clock.NowUS(), 100*float64(c.clock.NowUS())/float64(durationUS), elapsed.Round(time.Millisecond))
		}
	}

	for _, h := range c.handles {
		if h.Live() {
			h.Shutdown(c.cfg.ShutdownGrace)
		}
	}
	if err := c.sink.Close(); err != nil {
		logrus.Warnf("closing event sink: %v", err)
	}

	summary := c.buildSummary(durationUS, startWall)
	if runErr == nil && summary.FailedNodes == len(c.handles) {
		runErr = ErrAllNodesFailed
	}
	summary.Success = runErr == nil
	summary.Log()
	return summary, runErr
}

// runCycle performs one barrier-synchronized advance across all live nodes.
func (c *Coordinator) runCycle(durationUS int64) {
	c.cycle++
	target := c.clock.NextTarget(durationUS)

	live := make([]*NodeHandle, 0, len(c.handles))
	for _, h := range c.handles {
		if h.Live() {
			live = append(live, h)
		}
	}

	// Fan out concurrently: one slow node must not delay starting the others'
	// work for this cycle. Results land in per-node slots, so the only shared
	// write during the fan-out is each goroutine's own index.
	emitted := make([][]Event, len(live))
	g := new(errgroup.Group)
	for i, h := range live {
		i, h := i, h
		inbound := h.TakeInbound()
		g.Go(func() error {
			evs, err := h.Advance(c.cycle, target, inbound)
			if err != nil {
				// Already recorded on the handle; the run continues without it.
				return nil
			}
			emitted[i] = evs
			return nil
		})
	}
	_ = g.Wait() // barrier: every node reached target, failed, or timed out

	// Route strictly after the fan-in, in registration order, so delivery
	// order into each destination queue is reproducible. Ordering truth for
	// same-timestamp events remains the destination node's own queue.
	for i, h := range live {
		for _, ev := range emitted[i] {
			c.route(h, ev)
		}
	}

	c.clock.AdvanceTo(target)
}

func (c *Coordinator) route(from *NodeHandle, ev Event) {
	if ev.Destination == "" {
		c.recordToSink(ev)
		return
	}
	dst, known := c.byID[ev.Destination]
	if !known {
		logrus.Debugf("event %s from %s has unknown destination %q, treating as metric", ev.EventType, from.NodeID, ev.Destination)
		c.recordToSink(ev)
		return
	}
	if !dst.Live() {
		logrus.Debugf("dropping %s from %s: destination %s is %s", ev.EventType, from.NodeID, dst.NodeID, dst.State())
		return
	}
	dst.QueueInbound(ev)
}

func (c *Coordinator) recordToSink(ev Event) {
	if err := c.sink.Record(ev); err != nil {
		logrus.Warnf("event sink rejected %s: %v", ev, err)
	}
}

func (c *Coordinator) liveCount() int {
	n := 0
	for _, h := range c.handles {
		if h.Live() {
			n++
		}
	}
	return n
}
