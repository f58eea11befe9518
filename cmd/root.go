package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Shared CLI flags
	logLevel string // Log verbosity level

	// Run flags (coordinator side)
	scenarioPath string  // Path to scenario YAML
	durationS    float64 // Simulation duration in virtual seconds
	quantumUS    int64   // Time quantum in virtual microseconds
	seed         int64   // Scenario seed for deterministic execution
	metricsPath  string  // CSV file for undirected metric events ("" = log only)
	timeoutS     float64 // Per-cycle response deadline in wall seconds

	// Node flags (node side)
	nodeType string // Built-in model type (sensor, gateway)
	nodePort int    // Port to listen on for the coordinator
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "xedgesim",
	Short: "Federated co-simulation coordinator and reference nodes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file (overrides duration/quantum/seed flags)")
	runCmd.Flags().Float64Var(&durationS, "duration", 10.0, "Simulation duration in virtual seconds")
	runCmd.Flags().Int64Var(&quantumUS, "quantum", 1000, "Time quantum in virtual microseconds")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Scenario seed for deterministic execution")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "CSV file for undirected metric events (default: log only)")
	runCmd.Flags().Float64Var(&timeoutS, "timeout", 10.0, "Per-cycle node response deadline in seconds")
	runCmd.Flags().StringSliceVar(&nodeSpecs, "node", nil, "Node as id=host:port (repeatable; ignored with --scenario)")

	nodeCmd.Flags().StringVar(&nodeType, "type", "sensor", "Built-in model type (sensor, gateway)")
	nodeCmd.Flags().IntVar(&nodePort, "port", 0, "Port to listen on for the coordinator")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(nodeCmd)
}
