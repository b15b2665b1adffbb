package serialmonitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/monitor"
)

// fakePort stands in for a go.bug.st/serial.Port, recording every write
// instead of touching real hardware.
type fakePort struct {
	lines  [][]byte
	closed bool
	failOn int // Write call index (0-based) that returns writeErr, or -1
}

var errFakeWrite = errors.New("fakePort: write failed")

func (f *fakePort) Write(p []byte) (int, error) {
	if f.failOn == len(f.lines) {
		f.lines = append(f.lines, append([]byte(nil), p...))
		return 0, errFakeWrite
	}
	f.lines = append(f.lines, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestSampleWritesOneLinePerSample(t *testing.T) {
	fp := &fakePort{failOn: -1}
	s := &Sink{port: fp}

	s.Sample(monitor.Target{}, "G", device.HIGH)
	s.Sample(monitor.Target{}, "G", device.LOW)

	require.Len(t, fp.lines, 2)
	require.Equal(t, "G HIGH\n", string(fp.lines[0]))
	require.Equal(t, "G LOW\n", string(fp.lines[1]))
}

func TestSampleSurvivesWriteError(t *testing.T) {
	fp := &fakePort{failOn: 0}
	s := &Sink{port: fp}

	require.NotPanics(t, func() {
		s.Sample(monitor.Target{}, "A", device.HIGH)
	})
}

func TestSampleAfterCloseIsNoop(t *testing.T) {
	fp := &fakePort{failOn: -1}
	s := &Sink{port: fp}

	require.NoError(t, s.Close())
	require.True(t, fp.closed)

	s.Sample(monitor.Target{}, "A", device.HIGH)
	require.Empty(t, fp.lines, "Sample must not write after Close cleared the port")
}

func TestCloseIsIdempotent(t *testing.T) {
	fp := &fakePort{failOn: -1}
	s := &Sink{port: fp}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
