// Aggregates the final outcome of a run: every node's terminal state, failure
// attribution, and wall-clock performance figures.

package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NodeReport is one node's line in the run summary.
type NodeReport struct {
	NodeID        string
	State         HandleState
	CurrentTimeUS int64
	FailedCycle   int64     // -1 unless State is failed
	ErrorKind     ErrorKind // empty unless State is failed
	Error         string    // empty unless State is failed
}

// RunSummary is the user-visible outcome of one simulation run. A run with
// partial failures still succeeds but flags which nodes degraded and from
// which cycle onward; a run where every node failed is a hard failure.
type RunSummary struct {
	RunID       string
	Success     bool
	DurationUS  int64 // requested virtual duration
	CompletedUS int64 // virtual time actually reached
	Cycles      int64
	WallTime    time.Duration
	FailedNodes int
	Nodes       []NodeReport
}

func (c *Coordinator) buildSummary(durationUS int64, startWall time.Time) *RunSummary {
	s := &RunSummary{
		RunID:       uuid.NewString(),
		DurationUS:  durationUS,
		CompletedUS: c.clock.NowUS(),
		Cycles:      c.cycle,
		WallTime:    time.Since(startWall),
	}
	for _, h := range c.handles {
		r := NodeReport{
			NodeID:        h.NodeID,
			State:         h.State(),
			CurrentTimeUS: h.CurrentTimeUS(),
			FailedCycle:   h.FailedSince(),
		}
		if ne := h.FailureError(); ne != nil {
			r.ErrorKind = ne.Kind
			r.Error = ne.Err.Error()
		}
		if r.State == StateFailed {
			s.FailedNodes++
		}
		s.Nodes = append(s.Nodes, r)
	}
	return s
}

// Log emits the summary through the structured logger, one line per node.
func (s *RunSummary) Log() {
	logrus.Infof("run %s finished: t=%dus/%dus, %d cycles, wall=%s, %d/%d nodes failed",
		s.RunID, s.CompletedUS, s.DurationUS, s.Cycles, s.WallTime.Round(time.Millisecond),
		s.FailedNodes, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.State == StateFailed {
			logrus.Errorf("  node %s: %s since cycle %d (%s: %s)", n.NodeID, n.State, n.FailedCycle, n.ErrorKind, n.Error)
		} else {
			logrus.Infof("  node %s: %s at %dus", n.NodeID, n.State, n.CurrentTimeUS)
		}
	}
}

// Print displays the summary at the end of a CLI run.
func (s *RunSummary) Print() {
	fmt.Println("=== Run Summary ===")
	fmt.Printf("Run ID        : %s\n", s.RunID)
	fmt.Printf("Virtual time  : %dus of %dus\n", s.CompletedUS, s.DurationUS)
	fmt.Printf("Cycles        : %d\n", s.Cycles)
	fmt.Printf("Wall time     : %s\n", s.WallTime.Round(time.Millisecond))
	if s.WallTime > 0 {
		speedup := (float64(s.CompletedUS) / 1e6) / s.WallTime.Seconds()
		fmt.Printf("Speedup       : %.1fx\n", speedup)
	}
	for _, n := range s.Nodes {
		if n.State == StateFailed {
			fmt.Printf("Node %-12s: FAILED since cycle %d (%s: %s)\n", n.NodeID, n.FailedCycle, n.ErrorKind, n.Error)
		} else {
			fmt.Printf("Node %-12s: %s at %dus\n", n.NodeID, n.State, n.CurrentTimeUS)
		}
	}
}
