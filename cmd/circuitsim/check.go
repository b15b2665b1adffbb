package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdxjjb/circuitsim/internal/simulator"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Args:  cobra.ExactArgs(1),
	Short: "Parse a circuit definition and report errors without running it",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	sim, rep, err := simulator.Load(path)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if rep != nil {
		rep.Summary()
	}
	if sim == nil {
		return fmt.Errorf("check: circuit has %d error(s)", rep.Count())
	}

	fmt.Fprintln(os.Stdout, "ok")
	if !sim.CheckNetwork() {
		// Load already refuses a circuit with unconnected inputs, so this
		// branch only matters if a future caller builds a Simulator some
		// other way; kept so CheckNetwork's result is never silently unused.
		fmt.Fprintln(os.Stderr, "warning: not every device input is connected")
	}
	return nil
}
