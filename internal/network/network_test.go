package network

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/names"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	lib *device.Library
	net *Network
	tab *names.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tab := names.New()
	kw := device.KeywordIDs{
		Q:     tab.MustLookup("Q"),
		QBAR:  tab.MustLookup("QBAR"),
		CLK:   tab.MustLookup("CLK"),
		DATA:  tab.MustLookup("DATA"),
		SET:   tab.MustLookup("SET"),
		CLEAR: tab.MustLookup("CLEAR"),
	}
	lib := device.New(tab, kw)
	net := New(lib, kw, 0)
	return &fixture{lib: lib, net: net, tab: tab}
}

func (f *fixture) id(s string) names.ID { return f.tab.MustLookup(s) }

func TestANDTruth(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("A"), device.SWITCH, 1, true))
	require.NoError(t, f.lib.MakeDevice(f.id("B"), device.SWITCH, 1, true))
	require.NoError(t, f.lib.MakeDevice(f.id("G"), device.AND, 2, true))

	require.NoError(t, f.net.Connect(f.id("A"), device.NoPort, f.id("G"), f.id("I1")))
	require.NoError(t, f.net.Connect(f.id("B"), device.NoPort, f.id("G"), f.id("I2")))
	require.True(t, f.net.CheckAllInputsConnected())

	f.lib.ColdStartup()
	require.True(t, f.net.Step())
	require.Equal(t, device.HIGH, f.net.QueryOutput(f.id("G"), device.NoPort))

	require.NoError(t, f.lib.SetSwitch(f.id("B"), device.LOW))
	require.True(t, f.net.Step())
	require.Equal(t, device.LOW, f.net.QueryOutput(f.id("G"), device.NoPort))
}

func TestOscillationDetected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("N1"), device.NAND, 1, true))
	require.NoError(t, f.net.Connect(f.id("N1"), device.NoPort, f.id("N1"), f.id("I1")))

	f.lib.ColdStartup()
	sawFalse := false
	for i := 0; i < 5; i++ {
		if !f.net.Step() {
			sawFalse = true
		}
	}
	require.True(t, sawFalse, "oscillating NAND must cause Step to return false at least once")
}

func TestUnconnectedInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("G"), device.AND, 2, true))
	require.False(t, f.net.CheckAllInputsConnected())
}

func TestConnectValidation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("A"), device.SWITCH, 1, true))
	require.NoError(t, f.lib.MakeDevice(f.id("G"), device.AND, 2, true))

	require.ErrorIs(t, f.net.Connect(f.id("nope"), device.NoPort, f.id("G"), f.id("I1")), ErrDeviceAbsent)
	require.ErrorIs(t, f.net.Connect(f.id("A"), f.id("bogus-port"), f.id("G"), f.id("I1")), ErrOutputPortAbsent)
	require.ErrorIs(t, f.net.Connect(f.id("A"), device.NoPort, f.id("G"), f.id("bogus-port")), ErrInputPortAbsent)

	require.NoError(t, f.net.Connect(f.id("A"), device.NoPort, f.id("G"), f.id("I1")))
	require.ErrorIs(t, f.net.Connect(f.id("A"), device.NoPort, f.id("G"), f.id("I1")), ErrInputAlreadyConnected)
}

func TestConnectCrossedPortKinds(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("D1"), device.DTYPE, 0, false))
	require.NoError(t, f.lib.MakeDevice(f.id("D2"), device.DTYPE, 0, false))

	// The output side names D1's DATA input, not one of its outputs.
	require.ErrorIs(t, f.net.Connect(f.id("D1"), f.id("DATA"), f.id("D2"), f.id("DATA")), ErrInputToInput)

	// The input side names D2's Q output, not one of its inputs.
	require.ErrorIs(t, f.net.Connect(f.id("D1"), f.id("Q"), f.id("D2"), f.id("Q")), ErrOutputToOutput)
}

func TestClockedDTypeWithClear(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("CK"), device.CLOCK, 2, true))
	require.NoError(t, f.lib.MakeDevice(f.id("SW1"), device.SWITCH, 0, true))
	require.NoError(t, f.lib.MakeDevice(f.id("SW2"), device.SWITCH, 1, true))
	require.NoError(t, f.lib.MakeDevice(f.id("A1"), device.AND, 2, true))
	require.NoError(t, f.lib.MakeDevice(f.id("D1"), device.DTYPE, 0, false))

	require.NoError(t, f.net.Connect(f.id("SW1"), device.NoPort, f.id("A1"), f.id("I1")))
	require.NoError(t, f.net.Connect(f.id("SW2"), device.NoPort, f.id("A1"), f.id("I2")))
	require.NoError(t, f.net.Connect(f.id("A1"), device.NoPort, f.id("D1"), f.id("DATA")))
	require.NoError(t, f.net.Connect(f.id("CK"), device.NoPort, f.id("D1"), f.id("CLK")))
	require.NoError(t, f.net.Connect(f.id("SW1"), device.NoPort, f.id("D1"), f.id("SET")))
	require.NoError(t, f.net.Connect(f.id("SW2"), device.NoPort, f.id("D1"), f.id("CLEAR")))

	f.lib.SetClockSeed(1)
	f.lib.ColdStartup()

	for i := 0; i < 10; i++ {
		f.net.Step()
		require.Equal(t, device.LOW, f.net.QueryOutput(f.id("D1"), f.id("Q")), "step %d", i)
	}
}

func TestRCPulse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.lib.MakeDevice(f.id("R"), device.RC, 3, true))
	f.lib.ColdStartup()

	want := []device.Level{device.HIGH, device.HIGH, device.HIGH, device.LOW, device.LOW}
	for i, w := range want {
		f.net.Step()
		require.Equal(t, w, f.net.QueryOutput(f.id("R"), device.NoPort), "step %d", i)
	}
}
