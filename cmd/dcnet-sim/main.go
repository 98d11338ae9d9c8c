// Command dcnet-sim drives a single in-process simulation of the
// anonymous broadcast protocol end to end: registration, submission,
// aggregation, unblinding, and leader combine. It exists for local
// experimentation and is not a networked service; messages still cross
// the wire codec's Canonical/Frame boundary exactly as they would over a
// socket, so the simulation exercises the same bytes a real transport
// would carry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	numUsers   int
	numServers int
	numRounds  int
	payload    string
	verbose    bool
	configDir  string

	rootCmd = &cobra.Command{
		Use:   "dcnet-sim",
		Short: "Local simulator for the anonymous DC-net broadcast protocol",
		Long: `dcnet-sim runs a configurable number of users and anytrust servers
through a configurable number of rounds entirely in-process: every
registration, submission, aggregation, unblinding, and leader-combine step
happens in this one binary, with no network involved.`,
		RunE: runSimulate,
	}
)

func init() {
	rootCmd.Flags().IntVarP(&numUsers, "users", "u", 8, "number of simulated users")
	rootCmd.Flags().IntVarP(&numServers, "servers", "s", 3, "number of anytrust committee servers")
	rootCmd.Flags().IntVarP(&numRounds, "rounds", "r", 4, "number of rounds to simulate")
	rootCmd.Flags().StringVarP(&payload, "payload", "m", "hello from an anonymous user", "payload one user reserves a slot to broadcast")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each round's intermediate state")
	rootCmd.Flags().StringVarP(&configDir, "config-dir", "d", "", "if set, seal and persist user 0's and server 0's long-term Config to this directory after the run, then reload and validate them back")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
