package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xedgesim/xedgesim/sim"
)

// nodeCmd serves one built-in reference model to a coordinator. Identity and
// seed arrive over the wire in INIT; the process only chooses what to model
// and where to listen.
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Serve a built-in node model on a port",
	Run: func(cmd *cobra.Command, args []string) {
		model, err := sim.NewNodeModel(nodeType)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		server, err := sim.NewNodeServer(model, fmt.Sprintf("0.0.0.0:%d", nodePort))
		if err != nil {
			logrus.Fatalf("starting node server: %v", err)
		}
		defer server.Close()
		logrus.Infof("%s node listening at %s", nodeType, server.Addr())
		if err := server.Serve(); err != nil {
			logrus.Fatalf("node session ended with error: %v", err)
		}
	},
}
