// Package simulator is the facade of spec.md §6's driver contract: it
// wires Names/Scanner/Device/Network/Monitor/Parser together, exposing the
// Load/Run/ContinueRun/SetSwitch/AddMonitor/RemoveMonitor/Snapshot/
// CheckNetwork operations a UI (or the CLI in cmd/circuitsim) drives the
// simulation through. Grounded on lang/ysem/analyzer.go's
// Analyze() (*IR, []string) build-then-report shape and emul/cpu.go's
// NewCPU/Reset/Run lifecycle.
package simulator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/monitor"
	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/network"
	"github.com/pdxjjb/circuitsim/internal/parser"
	"github.com/pdxjjb/circuitsim/internal/report"
	"github.com/pdxjjb/circuitsim/internal/scanner"
	"github.com/pdxjjb/circuitsim/internal/token"
)

// ErrNotAnOutputSpec is returned by AddMonitor/RemoveMonitor when spec does
// not match the output_id grammar (spec.md §4.6).
var ErrNotAnOutputSpec = errors.New("simulator: not an output_id")

// ErrUnknownDevice is returned by AddMonitor/RemoveMonitor/SetSwitch when
// the name is not a legal identifier or never occurred in the circuit
// definition. A name that occurred there but is not a device is reported
// by the device or monitor package instead (device.ErrNotASwitch,
// monitor.ErrDeviceAbsent), and RemoveMonitor treats it as a no-op.
var ErrUnknownDevice = errors.New("simulator: unknown device")

// defaultClockSeed is the seed ColdStartup uses unless SetClockSeed is
// called first (spec.md §9's open question).
const defaultClockSeed = 1

// Simulator owns one loaded circuit: its device library, connection graph,
// monitored traces, and the name table they share.
type Simulator struct {
	tab *names.Table
	kw  *token.KeywordIDs
	lib *device.Library
	net *network.Network
	mon *monitor.Monitors

	started bool // Run has cold-started at least once
}

// Load parses the circuit definition file at path and returns a Simulator
// ready to run, along with the Reporter that recorded every error seen
// during parsing (possibly empty). A non-nil error means the session could
// not proceed at all: the file could not be opened, its extension is not
// one a circuit definition uses, or the scanner hit a character the
// grammar can never accept — in every one of these cases Simulator is nil.
// A nil error with a non-empty Reporter means parsing reported recoverable
// errors (syntactic and/or semantic); Simulator is still nil, since
// spec.md §4.6 abandons circuit construction after the first error.
func Load(path string, opts ...Option) (*Simulator, *report.Reporter, error) {
	if ext := strings.ToLower(pathExt(path)); ext != ".txt" && ext != ".def" && ext != ".circuit" {
		return nil, nil, fmt.Errorf("simulator: %s: unrecognized circuit definition extension %q", path, ext)
	}

	tab := names.New()
	kw := token.RegisterKeywords(tab)

	sc, err := scanner.Open(path, tab)
	if err != nil {
		return nil, nil, fmt.Errorf("simulator: %s: %w", path, err)
	}
	defer sc.Close()

	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	devKW := device.KeywordIDs{Q: kw.Q, QBAR: kw.QBAR, CLK: kw.CLK, DATA: kw.DATA, SET: kw.SET, CLEAR: kw.CLEAR}
	lib := device.New(tab, devKW)
	if cfg.clockSeed != 0 {
		lib.SetClockSeed(cfg.clockSeed)
	}
	net := network.New(lib, devKW, cfg.maxSettleIterations)
	mon := monitor.New(lib, tab)
	for _, sink := range cfg.sinks {
		mon.AddSink(sink)
	}

	rep := report.New(os.Stderr, sc)
	if cfg.reportWriter != nil {
		rep = report.New(cfg.reportWriter, sc)
	}

	p := parser.New(sc, tab, kw, lib, net, mon, rep)
	errCount, fatal := p.Parse()
	if fatal != nil {
		return nil, rep, fmt.Errorf("simulator: %s: %w", path, fatal)
	}
	if errCount > 0 {
		return nil, rep, nil
	}

	if !net.CheckAllInputsConnected() {
		rep.ReportGlobal(report.NetworkInputsUnconnected, "not every device input is connected")
		return nil, rep, nil
	}

	return &Simulator{tab: tab, kw: kw, lib: lib, net: net, mon: mon}, rep, nil
}

func pathExt(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}

// config bundles Load's optional construction parameters.
type config struct {
	clockSeed           uint64
	maxSettleIterations int
	reportWriter        io.Writer
	sinks               []monitor.Sink
}

func defaultConfig() config {
	return config{clockSeed: defaultClockSeed}
}

// Option configures Load.
type Option func(*config)

// WithClockSeed overrides the PRNG seed ColdStartup uses to randomize
// clock phase offsets (spec.md §9).
func WithClockSeed(seed uint64) Option {
	return func(c *config) { c.clockSeed = seed }
}

// WithMaxSettleIterations overrides the combinational settle bound; 0 (the
// default) uses network.New's recommended 3*deviceCount+10.
func WithMaxSettleIterations(n int) Option {
	return func(c *config) { c.maxSettleIterations = n }
}

// WithReportWriter redirects parse-error rendering away from os.Stderr.
func WithReportWriter(w io.Writer) Option {
	return func(c *config) { c.reportWriter = w }
}

// WithSink registers a monitor.Sink that receives every recorded sample
// (e.g. internal/driver/serialmonitor).
func WithSink(s monitor.Sink) Option {
	return func(c *config) { c.sinks = append(c.sinks, s) }
}

// Run cold-starts the circuit (resetting every stateful device and
// clearing all monitor traces) and then steps it n times, matching
// spec.md §6's run(n).
func (s *Simulator) Run(n int) network.Stats {
	s.lib.ColdStartup()
	s.mon.Reset()
	s.started = true
	return s.step(n)
}

// ContinueRun steps the circuit n more times without resetting devices or
// monitor traces, matching spec.md §6's continue_run(n). If Run has not
// been called yet, ContinueRun cold-starts first, since there is no prior
// state to continue from.
func (s *Simulator) ContinueRun(n int) network.Stats {
	if !s.started {
		s.lib.ColdStartup()
		s.started = true
	}
	return s.step(n)
}

func (s *Simulator) step(n int) network.Stats {
	for i := 0; i < n; i++ {
		s.net.Step()
		s.mon.RecordStep()
	}
	return s.net.Stats()
}

// SetClockSeed reseeds the clock phase PRNG, matching spec.md §9's
// Simulator::set_clock_seed(u64) hook. It takes effect on the next Run
// (ColdStartup re-randomizes every clock's phase from the current seed);
// it has no effect on an already-cold-started run until Run is called
// again.
func (s *Simulator) SetClockSeed(seed uint64) {
	s.lib.SetClockSeed(seed)
}

// SetSwitch sets the named switch device's output level. level must be 0
// or 1; any other value is rejected the same way a bad qualifier is.
func (s *Simulator) SetSwitch(name string, level int) error {
	id, ok, err := names.Query(s.tab, name)
	if err != nil || !ok {
		return ErrUnknownDevice
	}
	if level != 0 && level != 1 {
		return device.ErrBadQualifier
	}
	lvl := device.LOW
	if level == 1 {
		lvl = device.HIGH
	}
	return s.lib.SetSwitch(id, lvl)
}

// AddMonitor begins recording the output_id named by spec (e.g. "G" or
// "D1.Q"), matching spec.md §6's add_monitor(spec).
func (s *Simulator) AddMonitor(spec string) error {
	dev, port, err := s.resolveOutputSpec(spec)
	if err != nil {
		return err
	}
	return s.mon.MakeMonitor(dev, port)
}

// RemoveMonitor stops recording the output_id named by spec, matching
// spec.md §6's remove_monitor(spec). A no-op if it was not monitored.
func (s *Simulator) RemoveMonitor(spec string) error {
	dev, port, err := s.resolveOutputSpec(spec)
	if err != nil {
		return err
	}
	s.mon.RemoveMonitor(dev, port)
	return nil
}

// resolveOutputSpec parses `NAME [ "." ("Q"|"QBAR") ]` against the live
// name table, the same output_id production internal/parser uses.
func (s *Simulator) resolveOutputSpec(spec string) (dev, port names.ID, err error) {
	name, qualifier, hasQualifier := strings.Cut(spec, ".")
	id, ok, qerr := names.Query(s.tab, name)
	if qerr != nil || !ok {
		return 0, 0, ErrUnknownDevice
	}
	if !hasQualifier {
		return id, device.NoPort, nil
	}
	switch qualifier {
	case "Q":
		return id, s.kw.Q, nil
	case "QBAR":
		return id, s.kw.QBAR, nil
	default:
		return 0, 0, ErrNotAnOutputSpec
	}
}

// Snapshot returns every monitored trace, named and ordered as
// monitor.Monitors.Snapshot describes, matching spec.md §6's
// snapshot() → {trace_name, levels[]}[].
func (s *Simulator) Snapshot() []monitor.SnapshotEntry {
	return s.mon.Snapshot()
}

// CheckNetwork reports whether every device input is currently connected,
// matching spec.md §6's check_network() → bool.
func (s *Simulator) CheckNetwork() bool {
	return s.net.CheckAllInputsConnected()
}

// Stats returns settle/oscillation statistics accumulated over every step
// since Load; a cold start (Run) does not reset them.
func (s *Simulator) Stats() network.Stats {
	return s.net.Stats()
}

// SignalNames returns the display name of every monitored and unmonitored
// output in the circuit, for a UI to present a pick-list.
func (s *Simulator) SignalNames() (monitored, unmonitored []string) {
	return s.mon.SignalNames()
}

// Format reconstructs a canonical textual rendering of the loaded circuit:
// a DEVICES: section in construction order, a CONNECTIONS: section with one
// line per connected input slot, and a MONITOR line if anything is
// monitored. Used by the CLI's fmt subcommand to pretty-print a definition
// file; grounded on the same output_id/qualifier formatting AddMonitor and
// internal/parser already use, so a formatted file parses back to the same
// circuit.
func (s *Simulator) Format() string {
	var b strings.Builder

	b.WriteString("DEVICES:\n")
	for _, id := range s.lib.All() {
		d, _ := s.lib.Get(id)
		fmt.Fprintf(&b, "    %s %s%s;\n", d.Kind, s.tab.String(id), s.qualifierSuffix(d))
	}

	b.WriteString("\nCONNECTIONS:\n")
	for _, id := range s.lib.All() {
		d, _ := s.lib.Get(id)
		for _, port := range s.inputPortOrder(d) {
			ref := d.Inputs[port]
			if ref == nil {
				continue
			}
			b.WriteString("    ")
			b.WriteString(s.tab.String(ref.Device))
			if ref.Port != device.NoPort {
				b.WriteByte('.')
				b.WriteString(s.tab.String(ref.Port))
			}
			fmt.Fprintf(&b, " > %s.%s;\n", s.tab.String(id), s.tab.String(port))
		}
	}

	if monitored, _ := s.mon.SignalNames(); len(monitored) > 0 {
		fmt.Fprintf(&b, "\nMONITOR %s;\n", strings.Join(monitored, ", "))
	}

	return b.String()
}

// qualifierSuffix renders a device's construction qualifier the way the
// grammar accepts it back, or "" for kinds that forbid one.
func (s *Simulator) qualifierSuffix(d *device.Device) string {
	switch d.Kind {
	case device.AND, device.NAND, device.OR, device.NOR:
		return fmt.Sprintf("(%d)", d.InputCount)
	case device.SWITCH:
		if d.SwitchLevel == device.HIGH {
			return "(1)"
		}
		return "(0)"
	case device.CLOCK:
		return fmt.Sprintf("(%d)", d.HalfPeriod)
	case device.RC:
		return fmt.Sprintf("(%d)", d.RCDuration)
	default:
		return ""
	}
}

// inputPortOrder returns d's input ports in the fixed order spec.md §4.3
// assigns them at construction, since Device.Inputs is a map.
func (s *Simulator) inputPortOrder(d *device.Device) []names.ID {
	switch d.Kind {
	case device.AND, device.NAND, device.OR, device.NOR:
		ports := make([]names.ID, d.InputCount)
		for i := 1; i <= d.InputCount; i++ {
			ports[i-1] = s.tab.MustLookup(fmt.Sprintf("I%d", i))
		}
		return ports
	case device.XOR:
		return []names.ID{s.tab.MustLookup("I1"), s.tab.MustLookup("I2")}
	case device.DTYPE:
		return []names.ID{s.kw.DATA, s.kw.CLK, s.kw.SET, s.kw.CLEAR}
	default:
		return nil
	}
}
