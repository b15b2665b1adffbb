// Package network implements the connection graph and the cycle-accurate
// step algorithm of spec.md §4.4: clock pre-phase, D-type sampling,
// combinational settle, clock post-phase, and RC update, run in that fixed
// order every step.
package network

import (
	"errors"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/simlog"
)

// Errors returned by Connect, matching spec.md §4.4's NetErr enumeration.
var (
	ErrDeviceAbsent          = errors.New("network: device absent")
	ErrOutputPortAbsent      = errors.New("network: output port absent")
	ErrInputPortAbsent       = errors.New("network: input port absent")
	ErrInputAlreadyConnected = errors.New("network: input already connected")
	ErrInputToInput          = errors.New("network: output side names an input port")
	ErrOutputToOutput        = errors.New("network: input side names an output port")
)

// Stats reports settle behavior: SettleIterations is for the most recent
// Step call; Oscillated and OscillationCount accumulate over every Step call
// on the Network and are never reset. Surfaced by
// the CLI's run subcommand as a post-run summary (grounded on emul/main.go's
// end-of-run cycle/time statistics block).
type Stats struct {
	SettleIterations int
	Oscillated       bool
	OscillationCount int
}

// Network owns the connection graph over a device.Library and implements
// one simulation step.
type Network struct {
	lib *device.Library
	kw  device.KeywordIDs

	maxSettleIterations int
	stats               Stats
}

// New returns a Network over lib. maxSettleIterations bounds the
// combinational fixed-point loop; pass 0 to use the recommended default of
// 3*deviceCount + 10, recomputed from the current device count each step.
func New(lib *device.Library, kw device.KeywordIDs, maxSettleIterations int) *Network {
	return &Network{lib: lib, kw: kw, maxSettleIterations: maxSettleIterations}
}

// Connect stores the directed edge (outDevice, outPort) -> (inDevice,
// inPort) after validating both endpoints exist, the output port exists on
// outDevice, the input port exists on inDevice, and the input slot is
// currently unconnected.
func (n *Network) Connect(outDevice names.ID, outPort names.ID, inDevice names.ID, inPort names.ID) error {
	out, ok := n.lib.Get(outDevice)
	if !ok {
		return ErrDeviceAbsent
	}
	if _, ok := out.Outputs[outPort]; !ok {
		if _, isInput := out.Inputs[outPort]; isInput {
			return ErrInputToInput
		}
		return ErrOutputPortAbsent
	}

	in, ok := n.lib.Get(inDevice)
	if !ok {
		return ErrDeviceAbsent
	}
	existing, ok := in.Inputs[inPort]
	if !ok {
		if _, isOutput := in.Outputs[inPort]; isOutput {
			return ErrOutputToOutput
		}
		return ErrInputPortAbsent
	}
	if existing != nil {
		return ErrInputAlreadyConnected
	}

	in.Inputs[inPort] = &device.OutputRef{Device: outDevice, Port: outPort}
	return nil
}

// CheckAllInputsConnected reports whether every input slot of every device
// holds an upstream reference.
func (n *Network) CheckAllInputsConnected() bool {
	for _, id := range n.lib.All() {
		d, _ := n.lib.Get(id)
		for _, ref := range d.Inputs {
			if ref == nil {
				return false
			}
		}
	}
	return true
}

// QueryOutput returns the current level of the given device's output port.
func (n *Network) QueryOutput(dev names.ID, port names.ID) device.Level {
	d, ok := n.lib.Get(dev)
	if !ok {
		return device.BLANK
	}
	return d.Outputs[port]
}

// readInput resolves the level an input slot currently observes: the
// referenced upstream output's current level, or BLANK if unconnected.
func (n *Network) readInput(ref *device.OutputRef) device.Level {
	if ref == nil {
		return device.BLANK
	}
	up, ok := n.lib.Get(ref.Device)
	if !ok {
		return device.BLANK
	}
	return up.Outputs[ref.Port]
}

// Step advances the network by one simulation cycle in the fixed phase
// order of spec.md §4.4. It returns false if the combinational sub-network
// failed to settle within the iteration bound (an oscillation), true
// otherwise.
func (n *Network) Step() bool {
	n.clockPrePhase()
	n.dtypeSample()
	settled := n.combinationalSettle()
	n.clockPostPhase()
	n.rcUpdate()

	if !settled {
		n.stats.Oscillated = true
		n.stats.OscillationCount++
		simlog.Logger().Warn().Int("settle_iterations", n.stats.SettleIterations).Msg("combinational network failed to settle")
	}
	return settled
}

// Stats returns settle/oscillation statistics accumulated across calls to
// Step.
func (n *Network) Stats() Stats {
	return n.stats
}

// clockPrePhase implements spec.md §4.4 step 1: any clock whose counter has
// reached 0 emits the transient RISING/FALLING level for this half-step and
// flips its stored level. Clocks with a nonzero counter are untouched here.
func (n *Network) clockPrePhase() {
	for _, id := range n.lib.FindByKind(device.CLOCK) {
		d, _ := n.lib.Get(id)
		if d.ClockCounter != 0 {
			continue
		}
		current := d.Outputs[device.NoPort].Steady()
		if current == device.HIGH {
			d.Outputs[device.NoPort] = device.FALLING
		} else {
			d.Outputs[device.NoPort] = device.RISING
		}
	}
}

// dtypeSample implements spec.md §4.4 step 2: on a RISING clock edge, latch
// DATA into stored Q, with SET/CLEAR asynchronous overrides (SET wins
// ties). Q/QBAR are driven from the stored state every step regardless of
// whether a latch happened this step.
func (n *Network) dtypeSample() {
	for _, id := range n.lib.FindByKind(device.DTYPE) {
		d, _ := n.lib.Get(id)

		clk := n.readInput(d.Inputs[n.kw.CLK])
		set := n.readInput(d.Inputs[n.kw.SET]).Steady()
		clear := n.readInput(d.Inputs[n.kw.CLEAR]).Steady()

		if clk == device.RISING {
			d.DTypeQ = n.readInput(d.Inputs[n.kw.DATA]).Steady()
		}

		switch {
		case set == device.HIGH:
			d.DTypeQ = device.HIGH
		case clear == device.HIGH:
			d.DTypeQ = device.LOW
		}

		d.Outputs[n.kw.Q] = d.DTypeQ
		if d.DTypeQ == device.HIGH {
			d.Outputs[n.kw.QBAR] = device.LOW
		} else {
			d.Outputs[n.kw.QBAR] = device.HIGH
		}
	}
}

// combinationalSettle implements spec.md §4.4 step 3: re-evaluate every
// non-stateful device until a full pass produces no change, or the
// iteration bound is exceeded.
func (n *Network) combinationalSettle() bool {
	bound := n.maxSettleIterations
	if bound <= 0 {
		bound = 3*len(n.lib.All()) + 10
	}

	gates := n.combinationalDevices()

	for iter := 1; iter <= bound; iter++ {
		changed := false
		for _, id := range gates {
			d, _ := n.lib.Get(id)
			newLevel := n.evaluateGate(d)
			if d.Outputs[device.NoPort] != newLevel {
				d.Outputs[device.NoPort] = newLevel
				changed = true
			}
		}
		n.stats.SettleIterations = iter
		if !changed {
			return true
		}
	}
	return false
}

func (n *Network) combinationalDevices() []names.ID {
	var out []names.ID
	for _, kind := range []device.Kind{device.AND, device.NAND, device.OR, device.NOR, device.XOR} {
		out = append(out, n.lib.FindByKind(kind)...)
	}
	return out
}

func (n *Network) evaluateGate(d *device.Device) device.Level {
	highCount := 0
	total := 0
	for _, ref := range d.Inputs {
		total++
		if n.readInput(ref).Steady() == device.HIGH {
			highCount++
		}
	}

	switch d.Kind {
	case device.AND:
		return boolLevel(highCount == total)
	case device.NAND:
		return boolLevel(!(highCount == total))
	case device.OR:
		return boolLevel(highCount > 0)
	case device.NOR:
		return boolLevel(!(highCount > 0))
	case device.XOR:
		return boolLevel(highCount == 1)
	default:
		return device.BLANK
	}
}

func boolLevel(b bool) device.Level {
	if b {
		return device.HIGH
	}
	return device.LOW
}

// clockPostPhase implements spec.md §4.4 step 4: decrement each clock's
// counter. A counter that reaches 0 is left there for the next step's
// clockPrePhase to toggle on. A clock that toggled this step (its counter
// was already 0) starts its next half-period: the counter is reloaded so it
// reaches 0 again half_period steps later, and the displayed level moves
// from the transient RISING/FALLING to the steady level.
func (n *Network) clockPostPhase() {
	for _, id := range n.lib.FindByKind(device.CLOCK) {
		d, _ := n.lib.Get(id)
		d.ClockCounter--
		if d.ClockCounter < 0 {
			d.ClockCounter = d.HalfPeriod - 1
			d.Outputs[device.NoPort] = d.Outputs[device.NoPort].Steady()
		}
	}
}

// rcUpdate implements spec.md §4.4 step 5: increment the elapsed counter;
// output HIGH while elapsed <= duration, otherwise LOW. RCs are reset only
// by device.Library.ColdStartup.
func (n *Network) rcUpdate() {
	for _, id := range n.lib.FindByKind(device.RC) {
		d, _ := n.lib.Get(id)
		d.RCElapsed++
		if d.RCElapsed <= d.RCDuration {
			d.Outputs[device.NoPort] = device.HIGH
		} else {
			d.Outputs[device.NoPort] = device.LOW
		}
	}
}
