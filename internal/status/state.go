// Package status tracks the sync core's runtime lifecycle: whether the
// realtime stream is up and whether the cache has been reconciled since.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jpcarvalho/lume/internal/bus"
)

// State represents a runtime state of the sync core.
type State string

const (
	Booting    State = "BOOTING"
	Offline    State = "OFFLINE"
	Connecting State = "CONNECTING"
	Syncing    State = "SYNCING"
	Ready      State = "READY"
	Degraded   State = "DEGRADED" // realtime lost, cache serving stale reads
	Error      State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:    {Connecting, Offline, Error},
	Offline:    {Connecting, Error},
	Connecting: {Syncing, Offline, Degraded, Error},
	Syncing:    {Ready, Degraded, Offline, Error},
	Ready:      {Syncing, Degraded, Offline, Error},
	Degraded:   {Connecting, Syncing, Ready, Offline, Error},
	Error:      {Booting},
}

// Machine tracks and enforces lifecycle state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:    bus.KindStatusChanged,
			Payload: StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
