package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/names"
)

func setup(t *testing.T) (*device.Library, *Monitors, *names.Table) {
	t.Helper()
	tab := names.New()
	kw := device.KeywordIDs{
		Q: tab.MustLookup("Q"), QBAR: tab.MustLookup("QBAR"),
		CLK: tab.MustLookup("CLK"), DATA: tab.MustLookup("DATA"),
		SET: tab.MustLookup("SET"), CLEAR: tab.MustLookup("CLEAR"),
	}
	lib := device.New(tab, kw)
	mon := New(lib, tab)
	return lib, mon, tab
}

func TestMakeMonitorAndRecord(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("G"), device.AND, 1, true))
	require.NoError(t, mon.MakeMonitor(tab.MustLookup("G"), device.NoPort))
	require.ErrorIs(t, mon.MakeMonitor(tab.MustLookup("G"), device.NoPort), ErrAlreadyMonitored)

	lib.ColdStartup()
	g, _ := lib.Get(tab.MustLookup("G"))
	g.Outputs[device.NoPort] = device.HIGH
	mon.RecordStep()
	g.Outputs[device.NoPort] = device.LOW
	mon.RecordStep()

	trace := mon.Trace(tab.MustLookup("G"), device.NoPort)
	require.Equal(t, []device.Level{device.HIGH, device.LOW}, trace)
}

func TestMonitorLengthInvariant(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("G"), device.AND, 1, true))
	require.NoError(t, mon.MakeMonitor(tab.MustLookup("G"), device.NoPort))

	const n = 7
	for i := 0; i < n; i++ {
		mon.RecordStep()
	}
	require.Len(t, mon.Trace(tab.MustLookup("G"), device.NoPort), n)
}

func TestResetClears(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("G"), device.AND, 1, true))
	require.NoError(t, mon.MakeMonitor(tab.MustLookup("G"), device.NoPort))
	mon.RecordStep()
	mon.RecordStep()
	mon.Reset()
	require.Empty(t, mon.Trace(tab.MustLookup("G"), device.NoPort))
}

func TestSignalNames(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("D1"), device.DTYPE, 0, false))
	require.NoError(t, mon.MakeMonitor(tab.MustLookup("D1"), tab.MustLookup("Q")))

	monitored, unmonitored := mon.SignalNames()
	require.Equal(t, []string{"D1.Q"}, monitored)
	require.Equal(t, []string{"D1.QBAR"}, unmonitored)
}

func TestMakeMonitorErrors(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("G"), device.AND, 1, true))

	require.ErrorIs(t, mon.MakeMonitor(tab.MustLookup("nope"), device.NoPort), ErrDeviceAbsent)
	require.ErrorIs(t, mon.MakeMonitor(tab.MustLookup("G"), tab.MustLookup("I1")), ErrNotAnOutput)
}

type recordingSink struct {
	samples int
}

func (r *recordingSink) Sample(Target, string, device.Level) { r.samples++ }

func TestSinkFanout(t *testing.T) {
	lib, mon, tab := setup(t)
	require.NoError(t, lib.MakeDevice(tab.MustLookup("G"), device.AND, 1, true))
	require.NoError(t, mon.MakeMonitor(tab.MustLookup("G"), device.NoPort))

	sink := &recordingSink{}
	mon.AddSink(sink)
	mon.RecordStep()
	mon.RecordStep()
	require.Equal(t, 2, sink.samples)
}
