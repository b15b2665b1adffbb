// Package device implements the primitive device kinds of spec.md §4.3:
// construction, qualifier validation, port layout, and cold startup.
package device

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/simlog"
)

// Kind identifies a device's primitive type.
type Kind int

const (
	AND Kind = iota
	NAND
	OR
	NOR
	XOR
	SWITCH
	CLOCK
	DTYPE
	RC
)

func (k Kind) String() string {
	switch k {
	case AND:
		return "AND"
	case NAND:
		return "NAND"
	case OR:
		return "OR"
	case NOR:
		return "NOR"
	case XOR:
		return "XOR"
	case SWITCH:
		return "SWITCH"
	case CLOCK:
		return "CLOCK"
	case DTYPE:
		return "DTYPE"
	case RC:
		return "RC"
	default:
		return "UNKNOWN"
	}
}

// Level is a signal level, including the transient clock-edge variants.
type Level int

const (
	BLANK Level = iota
	LOW
	HIGH
	RISING
	FALLING
)

func (l Level) String() string {
	switch l {
	case LOW:
		return "LOW"
	case HIGH:
		return "HIGH"
	case RISING:
		return "RISING"
	case FALLING:
		return "FALLING"
	default:
		return "BLANK"
	}
}

// Steady coerces a transient level to its steady HIGH/LOW equivalent, the
// rule combinational evaluation uses (spec.md §4.4 step 3, §9 design note).
func (l Level) Steady() Level {
	switch l {
	case RISING:
		return HIGH
	case FALLING:
		return LOW
	default:
		return l
	}
}

// Err values for device construction and mutation, matching spec.md §4.3's
// DeviceError enumeration.
var (
	ErrAlreadyExists      = errors.New("device: already exists")
	ErrBadKind            = errors.New("device: unknown kind")
	ErrNoQualifier        = errors.New("device: qualifier required")
	ErrBadQualifier       = errors.New("device: qualifier out of range")
	ErrQualifierForbidden = errors.New("device: qualifier forbidden for this kind")
	ErrNotASwitch         = errors.New("device: not a switch")
)

// OutputRef names an upstream output: a device and, for multi-output
// devices (DTYPE), the specific output port. NoPort is the sentinel for
// single-output devices.
type OutputRef struct {
	Device names.ID
	Port   names.ID // NoPort for single-output devices
}

// NoPort is the distinguished "this device has one output" sentinel,
// distinct from any Name-table ID.
var NoPort = names.ID(-1)

// Device is one instantiated primitive.
type Device struct {
	ID   names.ID
	Kind Kind

	// Inputs maps input port ID to the connected upstream output, or nil if
	// unconnected. Keys are fixed at construction time by kind.
	Inputs map[names.ID]*OutputRef

	// Outputs maps output port ID (or NoPort) to its current level.
	Outputs map[names.ID]Level

	// Per-kind state.
	InputCount   int   // AND/NAND/OR/NOR
	SwitchLevel  Level // SWITCH
	HalfPeriod   int   // CLOCK: cycles per half-period
	ClockCounter int   // CLOCK: cycles remaining in current half-period
	DTypeQ       Level // DTYPE: stored Q
	RCDuration   int   // RC: number of HIGH cycles after reset
	RCElapsed    int   // RC: cycles since last reset
}

// Library holds every constructed device, indexed by ID.
type Library struct {
	names *names.Table
	kw    KeywordIDs
	devs  map[names.ID]*Device
	order []names.ID // construction order, for deterministic iteration

	rng *rand.Rand
}

// KeywordIDs is the subset of token.KeywordIDs the device library needs,
// passed in to avoid an import cycle with internal/token.
type KeywordIDs struct {
	Q, QBAR, CLK, DATA, SET, CLEAR names.ID
}

// New returns an empty device library.
func New(tab *names.Table, kw KeywordIDs) *Library {
	return &Library{
		names: tab,
		kw:    kw,
		devs:  make(map[names.ID]*Device),
		rng:   rand.New(rand.NewPCG(1, 1)),
	}
}

// SetClockSeed reseeds the PRNG used by ColdStartup to randomize clock
// phase offsets (spec.md §9's open question; default seed is 1).
func (l *Library) SetClockSeed(seed uint64) {
	l.rng = rand.New(rand.NewPCG(seed, seed))
}

// MakeDevice constructs a new device of the given kind, with qualifier
// (input count / initial level / half-period / RC duration) as required by
// spec.md §4.3's qualifier table. For kinds that forbid a qualifier (XOR,
// DTYPE), hasQualifier must be false, otherwise MakeDevice returns
// ErrQualifierForbidden; the qualifier value itself is then ignored.
func (l *Library) MakeDevice(id names.ID, kind Kind, qualifier int, hasQualifier bool) error {
	if _, exists := l.devs[id]; exists {
		return ErrAlreadyExists
	}

	d := &Device{ID: id, Kind: kind, Inputs: make(map[names.ID]*OutputRef), Outputs: make(map[names.ID]Level)}

	switch kind {
	case AND, NAND, OR, NOR:
		if !hasQualifier {
			return ErrNoQualifier
		}
		if qualifier < 1 || qualifier > 16 {
			return ErrBadQualifier
		}
		d.InputCount = qualifier
		for i := 1; i <= qualifier; i++ {
			d.Inputs[l.names.MustLookup(fmt.Sprintf("I%d", i))] = nil
		}
		d.Outputs[NoPort] = BLANK

	case XOR:
		if hasQualifier {
			return ErrQualifierForbidden
		}
		d.InputCount = 2
		d.Inputs[l.names.MustLookup("I1")] = nil
		d.Inputs[l.names.MustLookup("I2")] = nil
		d.Outputs[NoPort] = BLANK

	case SWITCH:
		if !hasQualifier {
			return ErrNoQualifier
		}
		if qualifier != 0 && qualifier != 1 {
			return ErrBadQualifier
		}
		d.SwitchLevel = levelOf(qualifier)
		d.Outputs[NoPort] = d.SwitchLevel

	case CLOCK:
		if !hasQualifier {
			return ErrNoQualifier
		}
		if qualifier < 1 {
			return ErrBadQualifier
		}
		d.HalfPeriod = qualifier
		d.ClockCounter = qualifier
		d.Outputs[NoPort] = BLANK

	case RC:
		if !hasQualifier {
			return ErrNoQualifier
		}
		if qualifier < 1 {
			return ErrBadQualifier
		}
		d.RCDuration = qualifier
		d.Outputs[NoPort] = BLANK

	case DTYPE:
		if hasQualifier {
			return ErrQualifierForbidden
		}
		d.Inputs[l.kw.DATA] = nil
		d.Inputs[l.kw.CLK] = nil
		d.Inputs[l.kw.SET] = nil
		d.Inputs[l.kw.CLEAR] = nil
		d.Outputs[l.kw.Q] = BLANK
		d.Outputs[l.kw.QBAR] = BLANK

	default:
		return ErrBadKind
	}

	l.devs[id] = d
	l.order = append(l.order, id)

	simlog.Logger().Debug().
		Str("id", l.nameOf(id)).
		Str("kind", kind.String()).
		Int("qualifier", qualifier).
		Msg("device constructed")

	return nil
}

func (l *Library) nameOf(id names.ID) string {
	if s, ok := l.names.GetString(id); ok {
		return s
	}
	return "?"
}

func levelOf(bit int) Level {
	if bit == 1 {
		return HIGH
	}
	return LOW
}

// Get returns the device with the given ID, if any.
func (l *Library) Get(id names.ID) (*Device, bool) {
	d, ok := l.devs[id]
	return d, ok
}

// FindByKind returns the IDs of every device of the given kind, in
// construction order.
func (l *Library) FindByKind(kind Kind) []names.ID {
	var out []names.ID
	for _, id := range l.order {
		if l.devs[id].Kind == kind {
			out = append(out, id)
		}
	}
	return out
}

// All returns every device ID in construction order.
func (l *Library) All() []names.ID {
	out := make([]names.ID, len(l.order))
	copy(out, l.order)
	return out
}

// SetSwitch sets the level of a switch device. It fails with ErrNotASwitch
// if id does not name a switch.
func (l *Library) SetSwitch(id names.ID, level Level) error {
	d, ok := l.devs[id]
	if !ok || d.Kind != SWITCH {
		return ErrNotASwitch
	}
	d.SwitchLevel = level
	d.Outputs[NoPort] = level
	return nil
}

// ColdStartup resets every stateful device to its power-on condition:
// clocks randomize their starting half-period offset (deterministic given
// the configured seed), D-types reset Q to LOW, RCs reset their elapsed
// counter to 0 and output HIGH.
func (l *Library) ColdStartup() {
	for _, id := range l.order {
		d := l.devs[id]
		switch d.Kind {
		case CLOCK:
			d.ClockCounter = 1 + l.rng.IntN(d.HalfPeriod)
			d.Outputs[NoPort] = LOW
		case DTYPE:
			d.DTypeQ = LOW
			d.Outputs[l.kw.Q] = LOW
			d.Outputs[l.kw.QBAR] = HIGH
		case RC:
			d.RCElapsed = 0
			d.Outputs[NoPort] = HIGH
		case SWITCH:
			d.Outputs[NoPort] = d.SwitchLevel
		default:
			d.Outputs[NoPort] = BLANK
		}
	}
	simlog.Logger().Info().Int("devices", len(l.order)).Msg("cold startup")
}
