package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdxjjb/circuitsim/internal/driver/serialmonitor"
	"github.com/pdxjjb/circuitsim/internal/simulator"
)

var (
	runSteps      int
	runClockSeed  uint64
	runMaxSettle  int
	runSerialPort string
	runSerialBaud int
)

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Args:  cobra.ExactArgs(1),
	Short: "Load, cold-start, and run a circuit for N steps",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 1, "number of simulation steps to run")
	runCmd.Flags().Uint64Var(&runClockSeed, "seed", 0, "clock PRNG seed (0 keeps the default)")
	runCmd.Flags().IntVar(&runMaxSettle, "max-settle", 0, "combinational settle bound (0 = 3*devices+10)")
	runCmd.Flags().StringVar(&runSerialPort, "serial-port", "", "device name to mirror every monitor sample to (e.g. /dev/ttyUSB0)")
	runCmd.Flags().IntVar(&runSerialBaud, "serial-baud", 9600, "baud rate for --serial-port")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []simulator.Option
	if runClockSeed != 0 {
		opts = append(opts, simulator.WithClockSeed(runClockSeed))
	}
	if runMaxSettle != 0 {
		opts = append(opts, simulator.WithMaxSettleIterations(runMaxSettle))
	}
	if runSerialPort != "" {
		sink, err := serialmonitor.Open(runSerialPort, runSerialBaud)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer sink.Close()
		opts = append(opts, simulator.WithSink(sink))
	}

	sim, rep, err := simulator.Load(path, opts...)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if sim == nil {
		rep.Summary()
		return fmt.Errorf("run: circuit has %d error(s), not run", rep.Count())
	}

	start := time.Now()
	stats := sim.Run(runSteps)
	elapsed := time.Since(start)

	printSnapshot(sim)

	fmt.Fprintf(os.Stderr, "\n%d step(s) in %v\n", runSteps, elapsed.Round(time.Microsecond))
	if stats.Oscillated {
		fmt.Fprintf(os.Stderr, "warning: combinational network failed to settle %d time(s)\n", stats.OscillationCount)
	}
	return nil
}

func printSnapshot(sim *simulator.Simulator) {
	for _, entry := range sim.Snapshot() {
		fmt.Printf("%-16s", entry.Name)
		for _, lvl := range entry.Levels {
			fmt.Printf(" %s", lvl)
		}
		fmt.Println()
	}
}
