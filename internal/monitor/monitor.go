// Package monitor implements spec.md §4.5: sampled signal traces indexed by
// (device, output port), recorded once per simulated step.
package monitor

import (
	"errors"
	"fmt"

	"github.com/pdxjjb/circuitsim/internal/device"
	"github.com/pdxjjb/circuitsim/internal/names"
)

// Errors returned by MakeMonitor, matching spec.md §4.5's MonErr
// enumeration.
var (
	ErrNotAnOutput     = errors.New("monitor: not an output port")
	ErrAlreadyMonitored = errors.New("monitor: already monitored")
	ErrDeviceAbsent    = errors.New("monitor: device absent")
)

// Target identifies one monitored (device, output port) pair.
type Target struct {
	Device names.ID
	Port   names.ID
}

// Sink receives every sampled level for a Target as it is recorded. Used to
// fan samples out to an external collaborator (e.g. internal/driver's
// serial monitor) without internal/network or internal/simulator depending
// on it directly.
type Sink interface {
	Sample(target Target, name string, level device.Level)
}

// Monitors owns every monitored trace over a device.Library.
type Monitors struct {
	lib    *device.Library
	tab    *names.Table
	order  []Target
	traces map[Target][]device.Level
	sinks  []Sink
}

// New returns an empty Monitors over lib.
func New(lib *device.Library, tab *names.Table) *Monitors {
	return &Monitors{
		lib:    lib,
		tab:    tab,
		traces: make(map[Target][]device.Level),
	}
}

// AddSink registers a Sink to receive every future recorded sample.
func (m *Monitors) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// MakeMonitor begins recording the given device's output port. A freshly
// created monitor's sequence begins empty; historical samples are not
// back-filled.
func (m *Monitors) MakeMonitor(dev names.ID, port names.ID) error {
	d, ok := m.lib.Get(dev)
	if !ok {
		return ErrDeviceAbsent
	}
	if _, ok := d.Outputs[port]; !ok {
		return ErrNotAnOutput
	}
	t := Target{Device: dev, Port: port}
	if _, exists := m.traces[t]; exists {
		return ErrAlreadyMonitored
	}
	m.traces[t] = nil
	m.order = append(m.order, t)
	return nil
}

// RemoveMonitor stops recording the given target. A no-op if it was not
// monitored.
func (m *Monitors) RemoveMonitor(dev names.ID, port names.ID) {
	t := Target{Device: dev, Port: port}
	if _, ok := m.traces[t]; !ok {
		return
	}
	delete(m.traces, t)
	for i, o := range m.order {
		if o == t {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// RecordStep appends the current output level of every monitored target to
// its sequence. Called by the driver immediately after network.Step,
// atomically with it (spec.md §5: monitor sequences are never observed
// mid-step).
func (m *Monitors) RecordStep() {
	for _, t := range m.order {
		d, ok := m.lib.Get(t.Device)
		var level device.Level
		if ok {
			level = d.Outputs[t.Port]
		}
		m.traces[t] = append(m.traces[t], level)

		if len(m.sinks) > 0 {
			name := m.targetName(t)
			for _, s := range m.sinks {
				s.Sample(t, name, level)
			}
		}
	}
}

// Reset clears every recorded sequence, called on cold startup.
func (m *Monitors) Reset() {
	for t := range m.traces {
		m.traces[t] = nil
	}
}

// Trace returns the recorded sequence for a target, in step order.
func (m *Monitors) Trace(dev names.ID, port names.ID) []device.Level {
	return m.traces[Target{Device: dev, Port: port}]
}

// SnapshotEntry is one named trace, as returned by Snapshot.
type SnapshotEntry struct {
	Name   string
	Levels []device.Level
}

// Snapshot returns every monitored trace, named as spec.md §6 describes
// (DEVICE or DEVICE.PORT), in the order monitors were created.
func (m *Monitors) Snapshot() []SnapshotEntry {
	out := make([]SnapshotEntry, 0, len(m.order))
	for _, t := range m.order {
		out = append(out, SnapshotEntry{Name: m.targetName(t), Levels: m.traces[t]})
	}
	return out
}

// SignalNames returns the display name of every monitored and unmonitored
// output in the network, as spec.md §4.5 describes.
func (m *Monitors) SignalNames() (monitored, unmonitored []string) {
	monitoredSet := make(map[Target]bool, len(m.order))
	for _, t := range m.order {
		monitoredSet[t] = true
		monitored = append(monitored, m.targetName(t))
	}
	for _, dev := range m.lib.All() {
		d, _ := m.lib.Get(dev)
		for port := range d.Outputs {
			t := Target{Device: dev, Port: port}
			if monitoredSet[t] {
				continue
			}
			unmonitored = append(unmonitored, m.targetName(t))
		}
	}
	return monitored, unmonitored
}

func (m *Monitors) targetName(t Target) string {
	devName, _ := m.tab.GetString(t.Device)
	if t.Port == device.NoPort {
		return devName
	}
	portName, ok := m.tab.GetString(t.Port)
	if !ok {
		return devName
	}
	return fmt.Sprintf("%s.%s", devName, portName)
}
