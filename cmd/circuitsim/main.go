// Command circuitsim loads a digital-logic circuit definition and runs it,
// checks it, or drives it interactively. Grounded on emul/main.go's flag
// handling and terminal lifecycle, restructured onto cobra subcommands the
// way jhkimqd-chaos-utils' cmd/chaos-runner lays out its command tree.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdxjjb/circuitsim/internal/simlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "circuitsim",
	Short: "Digital-logic circuit definition simulator",
	Long: `circuitsim parses a circuit definition file (devices, connections,
monitors) and simulates it: run it for a fixed number of steps, check it
for errors without running, or drive it interactively from a terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			simlog.ConfigureDefault()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log device/network diagnostics to stderr")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(fmtCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
