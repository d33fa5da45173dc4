package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	intEvents "github.com/gxo-labs/fondsolve/internal/events"
	"github.com/gxo-labs/fondsolve/internal/logger"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelEventBus_DropsWhenFull(t *testing.T) {
	bus := intEvents.NewChannelEventBus(1, logger.NewDiscardLogger())
	bus.Emit(events.Event{Type: events.SolveStart})
	bus.Emit(events.Event{Type: events.SolveEnd})

	assert.Equal(t, uint64(1), bus.Dropped())
	ev := <-bus.GetChannel()
	assert.Equal(t, events.SolveStart, ev.Type)

	bus.Close()
	bus.Close()
	bus.Emit(events.Event{Type: events.SolveStart})
	_, ok := <-bus.GetChannel()
	assert.False(t, ok)
}

func TestMetricsEventListener_CountsEvents(t *testing.T) {
	bus := intEvents.NewChannelEventBus(16, logger.NewDiscardLogger())
	byType := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_events_total"}, []string{"type"})
	escalations := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_escalations_total"})
	listener := intEvents.NewMetricsEventListener(bus, byType, escalations, logger.NewDiscardLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		listener.Start(context.Background())
	}()

	bus.Emit(events.Event{Type: events.IterationStart})
	bus.Emit(events.Event{Type: events.BoundEscalated})
	bus.Emit(events.Event{Type: events.BoundEscalated})
	bus.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "listener did not stop after Close")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(escalations))
	assert.Equal(t, 2.0, testutil.ToFloat64(byType.WithLabelValues(string(events.BoundEscalated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(byType.WithLabelValues(string(events.IterationStart))))
}

func TestNoOpEventBus(t *testing.T) {
	bus := intEvents.NewNoOpEventBus()
	assert.NotPanics(t, func() { bus.Emit(events.Event{Type: events.SolveStart}) })
}
