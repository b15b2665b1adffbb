package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pdxjjb/circuitsim/internal/driver/serialmonitor"
	"github.com/pdxjjb/circuitsim/internal/simulator"
)

var (
	replSerialPort string
	replSerialBaud int
)

var replCmd = &cobra.Command{
	Use:   "repl <path>",
	Args:  cobra.ExactArgs(1),
	Short: "Drive a circuit interactively from the terminal",
	Long: `repl loads a circuit and accepts single-letter commands, one per
line, echoing the current monitor snapshot after each:

  n           step once
  c N         continue N steps
  s NAME 0|1  set a switch
  m SPEC      add a monitor (SPEC is a device name or NAME.Q / NAME.QBAR)
  seed N      reseed the clock PRNG
  r           cold-start the circuit again, picking up a reseed
  q           quit`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&replSerialPort, "serial-port", "", "device name to mirror every monitor sample to (e.g. /dev/ttyUSB0)")
	replCmd.Flags().IntVar(&replSerialBaud, "serial-baud", 9600, "baud rate for --serial-port")
}

// savedTermState holds the terminal's state before setupTerminal put it in
// raw mode, so restoreTerminal can put it back (emul/main.go's pattern).
var savedTermState *term.State

func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to get terminal state: %w", err)
	}
	savedTermState = state
	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	return nil
}

func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
		savedTermState = nil
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []simulator.Option
	if replSerialPort != "" {
		sink, err := serialmonitor.Open(replSerialPort, replSerialBaud)
		if err != nil {
			return fmt.Errorf("repl: %w", err)
		}
		defer sink.Close()
		opts = append(opts, simulator.WithSink(sink))
	}

	sim, rep, err := simulator.Load(path, opts...)
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	if sim == nil {
		rep.Summary()
		return fmt.Errorf("repl: circuit has %d error(s), not loaded", rep.Count())
	}

	if err := setupTerminal(); err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	sim.Run(0) // cold start with no steps yet, so "n"/"c" begin from a known state

	reader := newRawLineReader(os.Stdin)
	fmt.Fprint(os.Stdout, "circuitsim repl — n, c N, s NAME 0|1, m SPEC, seed N, r, q\r\n")
	for {
		fmt.Fprint(os.Stdout, "> ")
		line, err := reader.readLine()
		if err != nil {
			return nil // EOF / closed input ends the session cleanly
		}
		if quit := dispatchReplCommand(sim, line); quit {
			return nil
		}
		printSnapshotCRLF(sim)
	}
}

// dispatchReplCommand runs one REPL command and reports whether the
// session should end.
func dispatchReplCommand(sim *simulator.Simulator, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "n":
		sim.ContinueRun(1)
	case "c":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				n = v
			}
		}
		sim.ContinueRun(n)
	case "s":
		if len(fields) < 3 {
			fmt.Fprint(os.Stdout, "usage: s NAME 0|1\r\n")
			return false
		}
		level, err := strconv.Atoi(fields[2])
		if err != nil {
			fmt.Fprint(os.Stdout, "usage: s NAME 0|1\r\n")
			return false
		}
		if err := sim.SetSwitch(fields[1], level); err != nil {
			fmt.Fprintf(os.Stdout, "error: %v\r\n", err)
		}
	case "m":
		if len(fields) < 2 {
			fmt.Fprint(os.Stdout, "usage: m SPEC\r\n")
			return false
		}
		if err := sim.AddMonitor(fields[1]); err != nil {
			fmt.Fprintf(os.Stdout, "error: %v\r\n", err)
		}
	case "seed":
		if len(fields) < 2 {
			fmt.Fprint(os.Stdout, "usage: seed N\r\n")
			return false
		}
		seed, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			fmt.Fprint(os.Stdout, "usage: seed N\r\n")
			return false
		}
		sim.SetClockSeed(seed)
	case "r":
		sim.Run(0)
	case "q":
		return true
	default:
		fmt.Fprintf(os.Stdout, "unknown command %q\r\n", fields[0])
	}
	return false
}

func printSnapshotCRLF(sim *simulator.Simulator) {
	for _, entry := range sim.Snapshot() {
		fmt.Fprintf(os.Stdout, "%-16s", entry.Name)
		for _, lvl := range entry.Levels {
			fmt.Fprintf(os.Stdout, " %s", lvl)
		}
		fmt.Fprint(os.Stdout, "\r\n")
	}
}

// rawLineReader assembles lines of input one byte at a time, since raw
// terminal mode delivers keystrokes without the kernel's line discipline:
// no local echo, and Enter arrives as '\r' rather than '\n'.
type rawLineReader struct {
	r *bufio.Reader
}

func newRawLineReader(f *os.File) *rawLineReader {
	return &rawLineReader{r: bufio.NewReader(f)}
}

func (rr *rawLineReader) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := rr.r.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '\r', '\n':
			fmt.Fprint(os.Stdout, "\r\n")
			return sb.String(), nil
		case 127, '\b': // backspace/delete
			if sb.Len() > 0 {
				s := sb.String()
				sb.Reset()
				sb.WriteString(s[:len(s)-1])
				fmt.Fprint(os.Stdout, "\b \b")
			}
		case 3: // Ctrl-C
			return "", fmt.Errorf("interrupted")
		default:
			sb.WriteByte(b)
			fmt.Fprintf(os.Stdout, "%c", b)
		}
	}
}
