// YAML scenario loading: node list, duration, seed, and quantum. Validation
// is fail-fast with explicit field errors; there is no schema framework and
// no dynamic configuration.
//
// Example:
//
//	simulation:
//	  duration_s: 10
//	  seed: 42
//	  time_quantum_us: 1000
//
//	nodes:
//	  - id: sensor1
//	    type: sensor
//	    port: 5001

package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScenarioNode is one node entry in a scenario file. The process backing it
// is launched externally; the coordinator only needs somewhere to dial.
type ScenarioNode struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Host string `yaml:"host"` // defaults to localhost
	Port int    `yaml:"port"`
}

// Addr returns the dialable address for this node.
func (n ScenarioNode) Addr() string {
	host := n.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, n.Port)
}

// Scenario is a validated simulation scenario.
type Scenario struct {
	DurationS     float64
	Seed          int64
	TimeQuantumUS int64
	Nodes         []ScenarioNode
}

// DurationUS converts the scenario duration to virtual microseconds.
func (s *Scenario) DurationUS() int64 {
	return int64(s.DurationS * 1e6)
}

// scenarioFile mirrors the YAML layout before validation.
type scenarioFile struct {
	Simulation struct {
		DurationS     float64 `yaml:"duration_s"`
		Seed          *int64  `yaml:"seed"`
		TimeQuantumUS *int64  `yaml:"time_quantum_us"`
	} `yaml:"simulation"`
	Nodes []ScenarioNode `yaml:"nodes"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario validates scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid scenario YAML: %w", err)
	}

	sim := file.Simulation
	if sim.DurationS <= 0 {
		return nil, fmt.Errorf("simulation.duration_s must be positive, got %v", sim.DurationS)
	}
	if sim.Seed == nil {
		return nil, fmt.Errorf("missing required field simulation.seed")
	}
	quantumUS := int64(1000)
	if sim.TimeQuantumUS != nil {
		if *sim.TimeQuantumUS <= 0 {
			return nil, fmt.Errorf("simulation.time_quantum_us must be positive, got %d", *sim.TimeQuantumUS)
		}
		quantumUS = *sim.TimeQuantumUS
	}
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes defined in scenario")
	}

	seen := make(map[string]bool, len(file.Nodes))
	for i, n := range file.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: missing required field id", i)
		}
		if n.Type == "" {
			return nil, fmt.Errorf("node %d (id=%s): missing required field type", i, n.ID)
		}
		if n.Port <= 0 || n.Port > 65535 {
			return nil, fmt.Errorf("node %d (id=%s): invalid port %d", i, n.ID, n.Port)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}

	return &Scenario{
		DurationS:     sim.DurationS,
		Seed:          *sim.Seed,
		TimeQuantumUS: quantumUS,
		Nodes:         file.Nodes,
	}, nil
}
