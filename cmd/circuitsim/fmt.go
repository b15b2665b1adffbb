package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdxjjb/circuitsim/internal/simulator"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <path>",
	Args:  cobra.ExactArgs(1),
	Short: "Parse a circuit definition and print it back in canonical form",
	RunE:  runFmt,
}

func runFmt(cmd *cobra.Command, args []string) error {
	path := args[0]

	sim, rep, err := simulator.Load(path)
	if err != nil {
		return fmt.Errorf("fmt: %w", err)
	}
	if sim == nil {
		rep.Summary()
		return fmt.Errorf("fmt: circuit has %d error(s), not formatted", rep.Count())
	}

	fmt.Print(sim.Format())
	return nil
}
