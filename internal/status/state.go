package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/stagechat/internal/bus"
)

// State is a daemon lifecycle state.
type State string

const (
	Booting   State = "BOOTING"
	Migrating State = "MIGRATING"
	Serving   State = "SERVING"
	Draining  State = "DRAINING"
	Stopped   State = "STOPPED"
	Error     State = "ERROR"
)

// EventStateChanged is published on every successful transition.
const EventStateChanged = "daemon.state_changed"

var validTransitions = map[State][]State{
	Booting:   {Migrating, Error},
	Migrating: {Serving, Error},
	Serving:   {Draining, Error},
	Draining:  {Stopped, Error},
	Stopped:   {},
	Error:     {Draining, Stopped},
}

// Machine tracks and enforces daemon lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a machine in the Booting state. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition moves to a new state. Returns error if the move is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      EventStateChanged,
			Timestamp: m.since,
			Payload:   StateChange{From: from, To: to},
		})
	}
	return nil
}

// Fail moves to Error from any state that allows it, ignoring the result.
func (m *Machine) Fail() {
	_ = m.Transition(Error)
}

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	From State
	To   State
}
