package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/monitor"
	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/network"
	"github.com/pdxjjb/circuitsim/internal/report"
	"github.com/pdxjjb/circuitsim/internal/scanner"
	"github.com/pdxjjb/circuitsim/internal/token"
)

type harness struct {
	tab *names.Table
	kw  *token.KeywordIDs
	lib *device.Library
	net *network.Network
	mon *monitor.Monitors
	rep *report.Reporter
	out *bytes.Buffer
	p   *Parser
}

func newHarness(t *testing.T, src string) *harness {
	t.Helper()
	tab := names.New()
	kw := token.RegisterKeywords(tab)
	devKW := device.KeywordIDs{Q: kw.Q, QBAR: kw.QBAR, CLK: kw.CLK, DATA: kw.DATA, SET: kw.SET, CLEAR: kw.CLEAR}
	lib := device.New(tab, devKW)
	net := network.New(lib, devKW, 0)
	mon := monitor.New(lib, tab)

	sc := scanner.New(bytes.NewBufferString(src), tab)
	var out bytes.Buffer
	rep := report.New(&out, sc)

	p := New(sc, tab, kw, lib, net, mon, rep)
	return &harness{tab: tab, kw: kw, lib: lib, net: net, mon: mon, rep: rep, out: &out, p: p}
}

func newHarnessFile(t *testing.T, path string) *harness {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return newHarness(t, string(data))
}

func TestParseCleanCircuit(t *testing.T) {
	h := newHarnessFile(t, filepath.Join("testdata", "clean.txt"))
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 0, count, "stderr: %s", h.out.String())

	require.True(t, h.net.CheckAllInputsConnected())

	g, ok := h.lib.Get(h.tab.MustLookup("G"))
	require.True(t, ok)
	require.Equal(t, device.AND, g.Kind)

	monitored, _ := h.mon.SignalNames()
	require.Equal(t, []string{"G"}, monitored)
}

func TestParseMissingSemicolonRecovers(t *testing.T) {
	src := `DEVICES:
    SWITCH A(1);
    SWITCH B(1)
    AND G(2);

CONNECTIONS:
    A > G.I1;
    B > G.I2;
`
	h := newHarness(t, src)
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 1, count, "stderr: %s", h.out.String())
	require.Equal(t, report.ExpectedSymbol, h.rep.Entries()[0].Kind)

	// B was constructed before the missing ';' was noticed; G was not,
	// since recovery discards everything up to the next semicolon,
	// swallowing the rest of that instantiation along with it.
	_, ok := h.lib.Get(h.tab.MustLookup("B"))
	require.True(t, ok)
	_, ok = h.lib.Get(h.tab.MustLookup("G"))
	require.False(t, ok)
}

func TestParseSemanticErrorSuppressesFurtherSideEffects(t *testing.T) {
	src := `DEVICES:
    SWITCH A(1);
    SWITCH A(0);
    AND G(2);

CONNECTIONS:
    A > G.I1;
`
	h := newHarness(t, src)
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 1, count, "stderr: %s", h.out.String())
	require.Equal(t, report.DeviceAlreadyPresent, h.rep.Entries()[0].Kind)

	// G was never constructed: MakeDevice calls are suppressed after the
	// first error, per spec.md §4.6.
	_, ok := h.lib.Get(h.tab.MustLookup("G"))
	require.False(t, ok)
}

func TestParseBadDeviceTypeDeduped(t *testing.T) {
	src := `DEVICES:
    FOO A(1);
    BAR B(1);
    SWITCH C(1);

CONNECTIONS:
`
	h := newHarness(t, src)
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)

	// FOO and BAR each raise expected-device-instantiation; both count
	// toward the total, but only the first is ever rendered.
	require.Equal(t, 2, count, "stderr: %s", h.out.String())
	require.Equal(t, report.ExpectedDeviceInstantiation, h.rep.Entries()[0].Kind)
	require.Equal(t, report.ExpectedDeviceInstantiation, h.rep.Entries()[1].Kind)
	require.Equal(t, 1, strings.Count(h.out.String(), "expected-device-instantiation"))

	// SWITCH C is parsed but never constructed: the first error permanently
	// suppresses semantic side effects for the rest of the parse.
	_, ok := h.lib.Get(h.tab.MustLookup("C"))
	require.False(t, ok)
}

func TestParseTruncatedConnection(t *testing.T) {
	src := `DEVICES:
    SWITCH A(1);

CONNECTIONS:
    A >
`
	h := newHarness(t, src)
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 1, count, "stderr: %s", h.out.String())
	require.Equal(t, report.ExpectedNamePortInput, h.rep.Entries()[0].Kind)
}

func TestParseFatalScannerErrorAbortsSession(t *testing.T) {
	src := `DEVICES:
    SWITCH A(1);
    SWITCH ~(1);

CONNECTIONS:
`
	h := newHarness(t, src)
	_, fatal := h.p.Parse()
	require.Error(t, fatal)
	var fe *scanner.FatalError
	require.ErrorAs(t, fatal, &fe)
}

func TestParseMonitorSection(t *testing.T) {
	src := `DEVICES:
    DTYPE D1;

CONNECTIONS:

MONITOR D1.Q, D1.QBAR;
`
	h := newHarness(t, src)
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 0, count, "stderr: %s", h.out.String())

	monitored, unmonitored := h.mon.SignalNames()
	require.ElementsMatch(t, []string{"D1.Q", "D1.QBAR"}, monitored)
	require.Empty(t, unmonitored)
}

func TestParseUnconnectedInputsDetectedAfterParse(t *testing.T) {
	h := newHarnessFile(t, filepath.Join("testdata", "unconnected.txt"))
	count, fatal := h.p.Parse()
	require.NoError(t, fatal)
	require.Equal(t, 0, count, "stderr: %s", h.out.String())

	// Parsing a syntactically and semantically clean file does not itself
	// check input connectivity; that final check belongs to the caller
	// (internal/simulator), per spec.md §4.6.
	require.False(t, h.net.CheckAllInputsConnected())
}
