package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xedgesim/xedgesim/sim"
)

// nodeSpecs holds ad-hoc --node id=host:port entries for flag-driven runs.
var nodeSpecs []string

// runCmd executes a federated simulation as the coordinator. The node
// processes themselves must already be listening (start them externally or
// via the `node` subcommand).
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a federated simulation as the coordinator",
	Run: func(cmd *cobra.Command, args []string) {
		durationUS := int64(durationS * 1e6)
		nodes := make(map[string]string) // id -> addr, insertion order kept separately
		var order []string

		if scenarioPath != "" {
			scenario, err := sim.LoadScenario(scenarioPath)
			if err != nil {
				logrus.Fatalf("loading scenario: %v", err)
			}
			durationUS = scenario.DurationUS()
			quantumUS = scenario.TimeQuantumUS
			seed = scenario.Seed
			for _, n := range scenario.Nodes {
				nodes[n.ID] = n.Addr()
				order = append(order, n.ID)
			}
		} else {
			for _, spec := range nodeSpecs {
				id, addr, ok := strings.Cut(spec, "=")
				if !ok || id == "" || addr == "" {
					logrus.Fatalf("invalid --node %q, want id=host:port", spec)
				}
				nodes[id] = addr
				order = append(order, id)
			}
		}
		if len(order) == 0 {
			logrus.Fatalf("no nodes configured; use --scenario or --node")
		}

		var sink sim.EventSink
		if metricsPath != "" {
			var err error
			sink, err = sim.NewCSVSink(metricsPath)
			if err != nil {
				logrus.Fatalf("opening metrics sink: %v", err)
			}
		}

		coord := sim.NewCoordinator(sim.CoordinatorConfig{
			QuantumUS:      quantumUS,
			Seed:           seed,
			AdvanceTimeout: time.Duration(timeoutS * float64(time.Second)),
		}, sink)
		for _, id := range order {
			if err := coord.AddNode(id, nodes[id]); err != nil {
				logrus.Fatalf("registering node: %v", err)
			}
		}
		if err := coord.ConnectAll(); err != nil {
			logrus.Fatalf("setup failed: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := coord.RunSimulation(ctx, durationUS)
		if summary != nil {
			summary.Print()
		}
		if err != nil {
			if errors.Is(err, sim.ErrAllNodesFailed) {
				fmt.Fprintln(os.Stderr, "run failed: all nodes failed")
			} else {
				fmt.Fprintf(os.Stderr, "run aborted: %v\n", err)
			}
			os.Exit(1)
		}
	},
}
