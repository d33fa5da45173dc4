package events

import (
	"context"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsEventListener consumes a ChannelEventBus and turns search progress
// events into Prometheus counters.
type MetricsEventListener struct {
	bus         *ChannelEventBus
	log         fondlog.Logger
	events      *prometheus.CounterVec
	escalations prometheus.Counter
}

// NewMetricsEventListener creates a listener that counts every event by type
// in eventsCounter (label "type") and bound escalations in escalations.
func NewMetricsEventListener(bus *ChannelEventBus, eventsCounter *prometheus.CounterVec, escalations prometheus.Counter, log fondlog.Logger) *MetricsEventListener {
	if bus == nil || eventsCounter == nil || escalations == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, counters and Logger")
	}
	return &MetricsEventListener{
		bus:         bus,
		log:         log.With("component", "MetricsEventListener"),
		events:      eventsCounter,
		escalations: escalations,
	}
}

// Start consumes events until the bus is closed or ctx is done. It blocks;
// run it in its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

func (l *MetricsEventListener) handleEvent(event events.Event) {
	l.events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == events.BoundEscalated {
		l.escalations.Inc()
	}
}
