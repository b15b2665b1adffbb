// Package serialmonitor implements an optional monitor.Sink that forwards
// every recorded sample to a serial device, for driving an external
// indicator (LEDs, a logic analyzer trigger) from a running simulation.
// Grounded on exer/cex/dev/arduino.go's go.bug.st/serial port-open pattern,
// simplified: a circuit monitor feed is one-directional and has no
// Arduino-reset handshake to wait out.
package serialmonitor

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/monitor"
	"github.com/pdxjjb/circuitsim/internal/simlog"
)

// port is the slice of go.bug.st/serial.Port that Sink actually needs,
// kept narrow so tests can supply a fake without modeling the whole
// driver (SetMode, SetReadTimeout, Read, ...).
type port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Sink writes one line per sample to a serial port, formatted
// "<name> <level>\n". It implements monitor.Sink.
type Sink struct {
	mu   sync.Mutex
	port port
}

// Open opens deviceName at baudRate (8 data bits, no parity, one stop bit —
// the configuration exer/cex/dev/arduino.go uses for its Nano link) and
// returns a Sink ready to register with monitor.Monitors.AddSink.
func Open(deviceName string, baudRate int) (*Sink, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(deviceName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialmonitor: open %s: %w", deviceName, err)
	}
	return &Sink{port: p}, nil
}

// Sample implements monitor.Sink. Write errors are logged, not returned:
// RecordStep's callers have no channel to surface a mid-run I/O failure
// through, and dropping one sample line must not abort the simulation.
func (s *Sink) Sample(target monitor.Target, name string, level device.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", name, level)
	if _, err := s.port.Write([]byte(line)); err != nil {
		simlog.Logger().Warn().Err(err).Str("signal", name).Msg("serial monitor write failed")
	}
}

// Close releases the serial port. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
