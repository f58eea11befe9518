// The scenario clock: the single piece of run-wide state. It is owned
// exclusively by the coordinator; nodes learn about time only through
// ADVANCE targets and never write it.

package sim

// ScenarioClock tracks the synchronized global virtual time for one run.
// Its lifetime is exactly one simulation run; there is no cross-run state.
type ScenarioClock struct {
	nowUS     int64
	quantumUS int64
}

// NewScenarioClock creates a clock at t=0 with a fixed quantum. The quantum
// is a configuration input and is not mutated at runtime.
func NewScenarioClock(quantumUS int64) *ScenarioClock {
	if quantumUS <= 0 {
		panic("NewScenarioClock: quantum must be positive")
	}
	return &ScenarioClock{nowUS: 0, quantumUS: quantumUS}
}

// NowUS returns the current synchronized virtual time.
func (c *ScenarioClock) NowUS() int64 { return c.nowUS }

// QuantumUS returns the fixed step size.
func (c *ScenarioClock) QuantumUS() int64 { return c.quantumUS }

// NextTarget returns the barrier time for the next cycle, capped at the run
// duration so the final partial quantum (if any) still lands exactly on it.
func (c *ScenarioClock) NextTarget(durationUS int64) int64 {
	return min(c.nowUS+c.quantumUS, durationUS)
}

// AdvanceTo moves the clock forward to target. Only the coordinator calls
// this, once per cycle, after the barrier join.
func (c *ScenarioClock) AdvanceTo(targetUS int64) {
	if targetUS < c.nowUS {
		panic("ScenarioClock: time moved backwards")
	}
	c.nowUS = targetUS
}
