package events

import (
	"sync"
	"sync/atomic"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
)

const defaultBufferSize = 256

// ChannelEventBus implements events.Bus with a buffered channel. Emit never
// blocks the search: when the buffer is full the event is dropped and counted.
type ChannelEventBus struct {
	channel chan events.Event
	log     fondlog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewChannelEventBus creates a bus with the given buffer size (a default is
// used for non-positive sizes). Panics if log is nil.
func NewChannelEventBus(bufferSize int, log fondlog.Logger) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}
	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit publishes event without blocking. Events emitted after Close are
// discarded.
func (c *ChannelEventBus) Emit(event events.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.channel <- event:
	default:
		c.dropped.Add(1)
		c.log.Warnf("Event channel buffer full, dropping event type '%s'", event.Type)
	}
}

// GetChannel returns the channel consumers read events from.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Dropped returns the number of events discarded because the buffer was full.
func (c *ChannelEventBus) Dropped() uint64 {
	return c.dropped.Load()
}

// Close closes the channel, signalling consumers that no more events follow.
// Calling Close more than once is safe.
func (c *ChannelEventBus) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
