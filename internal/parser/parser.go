// Package parser implements the recursive-descent grammar of spec.md §4.6,
// with error recovery: each production has a declared stopping symbol, and
// after the first error all semantic side effects are suppressed while
// syntactic checking continues (spec.md §4.6's semantic suppression rule).
package parser

import (
	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/monitor"
	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/network"
	"github.com/pdxjjb/circuitsim/internal/report"
	"github.com/pdxjjb/circuitsim/internal/scanner"
	"github.com/pdxjjb/circuitsim/internal/token"
)

// Parser parses a scanned token stream into Names/Device/Network/Monitor
// mutations, reporting errors along the way.
type Parser struct {
	scanner  *scanner.Scanner
	names    *names.Table
	kw       *token.KeywordIDs
	lib      *device.Library
	net      *network.Network
	mon      *monitor.Monitors
	reporter *report.Reporter

	current  token.Symbol
	eof      bool
	fatalErr error

	// suppressed is set permanently after the first error of any kind, per
	// spec.md §4.6's semantic suppression rule.
	suppressed bool

	// deviceInstantiationErrorEmitted dedupes ExpectedDeviceInstantiation,
	// which spec.md §4.6 singles out as reported once then suppressed.
	deviceInstantiationErrorEmitted bool
}

// New returns a Parser wired to the given collaborators.
func New(sc *scanner.Scanner, tab *names.Table, kw *token.KeywordIDs, lib *device.Library, net *network.Network, mon *monitor.Monitors, rep *report.Reporter) *Parser {
	return &Parser{scanner: sc, names: tab, kw: kw, lib: lib, net: net, mon: mon, reporter: rep}
}

// Parse runs the file production to completion (or fatal scanner error) and
// returns the total error count. A zero count with a completed grammar
// means the circuit was fully built; spec.md §4.6's final check
// (CheckAllInputsConnected) is performed by the caller (internal/simulator)
// once parsing succeeds.
func (p *Parser) Parse() (errorCount int, fatal error) {
	p.advance()
	if p.fatalErr != nil {
		return p.reporter.Count(), p.fatalErr
	}
	p.file()
	return p.reporter.Count(), p.fatalErr
}

// ---- token stream plumbing ----

// advance reads the next token. A fatal scanner error is latched in
// p.fatalErr, so callers never need to check an error return themselves.
// p.eof tracks only a genuine EOF token; it is distinct from p.fatalErr so
// the grammar can tell "ran off the end of the file" (an UnexpectedEOF
// error) apart from "the scanner hit an illegal character" (session abort).
func (p *Parser) advance() {
	if p.fatalErr != nil {
		return
	}
	sym, err := p.scanner.NextToken()
	if err != nil {
		p.fatalErr = err
		return
	}
	p.current = sym
	p.eof = sym.Kind == token.EOF
}

// stuck reports whether the grammar cannot make further progress: either a
// fatal scanner error occurred, or the token stream is exhausted.
func (p *Parser) stuck() bool {
	return p.fatalErr != nil || p.eof
}

func (p *Parser) at(kind token.Kind) bool {
	return p.current.Kind == kind
}

func (p *Parser) atKeyword(id names.ID) bool {
	return p.current.Kind == token.KEYWORD && p.current.ID == id
}

// errorHere reports an error anchored to the current token and permanently
// suppresses semantic side effects from this point on, per spec.md §4.6.
func (p *Parser) errorHere(kind report.Kind, format string, args ...interface{}) {
	if p.fatalErr != nil {
		return
	}
	p.reporter.Report(kind, p.current, format, args...)
	p.suppressed = true
}

// recoverToSemicolon is the stopping-symbol recovery for a device
// instantiation or a connection (spec.md §4.6).
func (p *Parser) recoverToSemicolon() {
	for !p.stuck() && !p.at(token.SEMICOLON) {
		p.advance()
	}
	if p.at(token.SEMICOLON) {
		p.advance()
	}
}

// recoverToSectionBoundary is the stopping-symbol recovery for the outer
// sections: the next CONNECTIONS, MONITOR, or EOF.
func (p *Parser) recoverToSectionBoundary() {
	for !p.stuck() && !p.atKeyword(p.kw.CONNECTIONS) && !p.atKeyword(p.kw.MONITOR) {
		p.advance()
	}
}

// ---- grammar ----

func (p *Parser) file() {
	if !p.atKeyword(p.kw.DEVICES) {
		p.errorHere(report.ExpectedKeyword, "expected DEVICES")
		p.recoverToSectionBoundary()
	} else {
		p.advance()
		p.expectPunct(token.COLON, report.ExpectedSymbol, "expected ':'")
	}

	if !p.deviceSection() {
		return
	}

	if !p.atKeyword(p.kw.CONNECTIONS) {
		p.errorHere(report.ExpectedKeyword, "expected CONNECTIONS")
		p.recoverToSectionBoundary()
	}
	if p.atKeyword(p.kw.CONNECTIONS) {
		p.advance()
		p.expectPunct(token.COLON, report.ExpectedSymbol, "expected ':'")
	}

	if !p.connectionSection() {
		return
	}

	if p.atKeyword(p.kw.MONITOR) {
		p.monitorSection()
	}

	if !p.stuck() {
		p.errorHere(report.ExpectedEOF, "expected end of file")
	}
}

func (p *Parser) expectPunct(kind token.Kind, errKind report.Kind, msg string) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	p.errorHere(errKind, "%s", msg)
	return false
}

// deviceSection parses device instantiations up to the CONNECTIONS keyword.
// A token that cannot start an instantiation is an ExpectedDeviceInstantiation
// error, deduped per spec.md §4.6: every occurrence still counts toward the
// total, but only the first is displayed. Running off the end of the file
// before CONNECTIONS is seen aborts the whole parse (the caller must stop,
// hence the bool return), matching the device-section EOF check of
// original_source/final/parse.py's parse_network loop.
func (p *Parser) deviceSection() (ok bool) {
	for {
		if p.fatalErr != nil {
			return false
		}
		if p.eof {
			p.errorHere(report.UnexpectedEOF, "unexpected end of file")
			return false
		}
		if p.atKeyword(p.kw.CONNECTIONS) {
			return true
		}
		if !p.isDeviceTypeKeyword(p.current) {
			p.reportExpectedDeviceInstantiation()
			p.recoverToSemicolon()
			continue
		}
		p.deviceInstantiation()
	}
}

func (p *Parser) reportExpectedDeviceInstantiation() {
	if p.deviceInstantiationErrorEmitted {
		p.reporter.ReportQuiet(report.ExpectedDeviceInstantiation, p.current, "expected a device instantiation")
	} else {
		p.reporter.Report(report.ExpectedDeviceInstantiation, p.current,
			"expected a device instantiation (further instances of this error are not displayed)")
		p.deviceInstantiationErrorEmitted = true
	}
	p.suppressed = true
}

func (p *Parser) isDeviceTypeKeyword(sym token.Symbol) bool {
	if sym.Kind != token.KEYWORD {
		return false
	}
	switch sym.ID {
	case p.kw.CLOCK, p.kw.SWITCH, p.kw.AND, p.kw.NAND, p.kw.OR, p.kw.NOR, p.kw.DTYPE, p.kw.XOR, p.kw.RC:
		return true
	}
	return false
}

// deviceInstantiation parses one device_type device_name_init
// ("," device_name_init)* ";". The caller (deviceSection) guarantees
// p.current is a device type keyword.
func (p *Parser) deviceInstantiation() {
	kind, _ := p.deviceType()
	p.advance() // consume device type keyword

	p.deviceNameInit(kind)
	for {
		if p.fatalErr != nil {
			return
		}
		switch {
		case p.at(token.COMMA):
			p.advance()
			p.deviceNameInit(kind)
		case p.at(token.SEMICOLON):
			p.advance()
			return
		case p.eof:
			p.errorHere(report.UnexpectedEOF, "unexpected end of file")
			return
		default:
			p.errorHere(report.ExpectedSymbol, "expected ',' or ';'")
			p.recoverToSemicolon()
			return
		}
	}
}

func (p *Parser) deviceType() (device.Kind, bool) {
	if p.current.Kind != token.KEYWORD {
		return 0, false
	}
	switch p.current.ID {
	case p.kw.CLOCK:
		return device.CLOCK, true
	case p.kw.SWITCH:
		return device.SWITCH, true
	case p.kw.AND:
		return device.AND, true
	case p.kw.NAND:
		return device.NAND, true
	case p.kw.OR:
		return device.OR, true
	case p.kw.NOR:
		return device.NOR, true
	case p.kw.DTYPE:
		return device.DTYPE, true
	case p.kw.XOR:
		return device.XOR, true
	case p.kw.RC:
		return device.RC, true
	}
	return 0, false
}

func (p *Parser) deviceNameInit(kind device.Kind) {
	if !p.at(token.NAME) {
		p.errorHere(report.ExpectedSymbol, "expected a device name")
		return
	}
	id := p.current.ID
	at := p.current
	p.advance()

	hasQualifier := false
	qualifier := 0
	if p.at(token.BRACK_OPEN) {
		p.advance()
		if !p.at(token.NUMBER) {
			p.errorHere(report.ExpectedSymbol, "expected a number")
		} else {
			qualifier = p.current.Number
			hasQualifier = true
			p.advance()
		}
		p.expectPunct(token.BRACK_CLOSE, report.ExpectedSymbol, "expected ')'")
	}

	if p.suppressed {
		return
	}
	if err := p.lib.MakeDevice(id, kind, qualifier, hasQualifier); err != nil {
		p.reportDeviceError(at, err)
	}
}

func (p *Parser) reportDeviceError(at token.Symbol, err error) {
	if p.fatalErr != nil {
		return
	}
	switch err {
	case device.ErrAlreadyExists:
		p.reporter.Report(report.DeviceAlreadyPresent, at, "device already exists")
	case device.ErrNoQualifier:
		p.reporter.Report(report.NoQualifier, at, "qualifier required")
	case device.ErrBadQualifier:
		p.reporter.Report(report.BadQualifier, at, "qualifier out of range")
	case device.ErrQualifierForbidden:
		p.reporter.Report(report.QualifierForbidden, at, "qualifier forbidden for this device kind")
	case device.ErrBadKind:
		p.reporter.Report(report.BadDeviceKind, at, "unknown device kind")
	default:
		p.reporter.Report(report.BadDeviceKind, at, "%v", err)
	}
	p.suppressed = true
}

// connectionSection parses connections up to the MONITOR keyword or EOF. A
// token that cannot start a connection is an ExpectedConnection error.
// Unlike deviceSection, reaching EOF here is not itself an error: a file
// with no monitor section legitimately ends right after its connections.
func (p *Parser) connectionSection() (ok bool) {
	for {
		if p.fatalErr != nil {
			return false
		}
		if p.atKeyword(p.kw.MONITOR) || p.eof {
			return true
		}
		if !p.at(token.NAME) {
			p.errorHere(report.ExpectedConnection, "expected a connection")
			p.recoverToSemicolon()
			continue
		}
		p.connection()
	}
}

// connection parses one output_id ">" input_id ";". The caller
// (connectionSection) guarantees p.current is a NAME.
func (p *Parser) connection() {
	outDev, outPort, outOK := p.outputID()
	if !outOK {
		p.errorHere(report.ExpectedConnection, "malformed output identifier")
		p.recoverToSemicolon()
		return
	}

	if !p.expectPunct(token.GREATER, report.ExpectedSymbol, "expected '>'") {
		p.recoverToSemicolon()
		return
	}

	inDev, inPort, inOK := p.inputID()
	if !inOK {
		p.errorHere(report.ExpectedNamePortInput, "expected an input identifier")
		p.recoverToSemicolon()
		return
	}

	at := p.current
	if !p.expectPunct(token.SEMICOLON, report.ExpectedSymbol, "expected ';'") {
		p.recoverToSemicolon()
		return
	}

	if !p.suppressed {
		if err := p.net.Connect(outDev, outPort, inDev, inPort); err != nil {
			p.reportConnectError(at, err)
		}
	}
}

func (p *Parser) reportConnectError(at token.Symbol, err error) {
	if p.fatalErr != nil {
		return
	}
	var kind report.Kind
	switch err {
	case network.ErrDeviceAbsent:
		kind = report.DeviceAbsent
	case network.ErrOutputPortAbsent:
		kind = report.OutputPortAbsent
	case network.ErrInputPortAbsent:
		kind = report.InputPortAbsent
	case network.ErrInputAlreadyConnected:
		kind = report.InputAlreadyConnected
	case network.ErrInputToInput:
		kind = report.InputToInput
	case network.ErrOutputToOutput:
		kind = report.OutputToOutput
	default:
		kind = report.DeviceAbsent
	}
	p.reporter.Report(kind, at, "%v", err)
	p.suppressed = true
}

// outputID parses `NAME [ "." ("Q"|"QBAR") ]`.
func (p *Parser) outputID() (dev names.ID, port names.ID, ok bool) {
	if !p.at(token.NAME) {
		return 0, 0, false
	}
	dev = p.current.ID
	p.advance()

	port = device.NoPort
	if p.at(token.DOT) {
		p.advance()
		if p.current.Kind == token.KEYWORD && (p.current.ID == p.kw.Q || p.current.ID == p.kw.QBAR) {
			port = p.current.ID
			p.advance()
		} else {
			p.errorHere(report.ExpectedNamePortInput, "expected Q or QBAR")
			return dev, port, false
		}
	}
	return dev, port, true
}

// inputID parses `NAME "." (NAME | "CLK"|"DATA"|"SET"|"CLEAR")`.
func (p *Parser) inputID() (dev names.ID, port names.ID, ok bool) {
	if !p.at(token.NAME) {
		return 0, 0, false
	}
	dev = p.current.ID
	p.advance()

	if !p.expectPunct(token.DOT, report.ExpectedSymbol, "expected '.'") {
		return dev, 0, false
	}

	switch p.current.Kind {
	case token.NAME:
		port = p.current.ID
		p.advance()
		return dev, port, true
	case token.KEYWORD:
		switch p.current.ID {
		case p.kw.CLK, p.kw.DATA, p.kw.SET, p.kw.CLEAR:
			port = p.current.ID
			p.advance()
			return dev, port, true
		}
	}
	return dev, 0, false
}

// monitorSection parses `"MONITOR" output_id ("," output_id)* ";"`.
func (p *Parser) monitorSection() {
	p.advance() // consume MONITOR

	for {
		dev, port, ok := p.outputID()
		if !ok {
			p.errorHere(report.ExpectedSymbol, "expected a monitor target")
			p.recoverToSemicolon()
			return
		}
		if !p.suppressed {
			if err := p.mon.MakeMonitor(dev, port); err != nil {
				p.reportMonitorError(err)
			}
		}

		if p.fatalErr != nil {
			return
		}
		switch {
		case p.at(token.COMMA):
			p.advance()
		case p.at(token.SEMICOLON):
			p.advance()
			return
		case p.eof:
			p.errorHere(report.UnexpectedEOF, "unexpected end of file")
			return
		default:
			p.errorHere(report.ExpectedSymbol, "expected ',' or ';'")
			p.recoverToSemicolon()
			return
		}
	}
}

func (p *Parser) reportMonitorError(err error) {
	if p.fatalErr != nil {
		return
	}
	var kind report.Kind
	switch err {
	case monitor.ErrDeviceAbsent:
		kind = report.DeviceAbsent
	case monitor.ErrNotAnOutput:
		kind = report.NotAnOutput
	case monitor.ErrAlreadyMonitored:
		kind = report.MonitorPresent
	default:
		kind = report.NotAnOutput
	}
	p.reporter.Report(kind, p.current, "%v", err)
	p.suppressed = true
}
