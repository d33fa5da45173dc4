package events

import "github.com/gxo-labs/fondsolve/pkg/fond/v1/events"

// NoOpEventBus discards every event. It is the solver's default bus.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit does nothing.
func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
