package solver

import (
	"time"

	"github.com/gxo-labs/fondsolve/internal/search"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// eventObserver forwards search progress to the event bus and the debug log.
type eventObserver struct {
	bus     events.Bus
	log     fondlog.Logger
	runID   string
	problem string
}

var _ search.Observer = (*eventObserver)(nil)

func (o *eventObserver) emit(t events.EventType, payload map[string]interface{}) {
	o.bus.Emit(events.Event{Type: t, Timestamp: time.Now(), RunID: o.runID, ProblemName: o.problem, Payload: payload})
}

func (o *eventObserver) IterationStarted(iteration, bound int) {
	o.log.Debugf("Iteration %d started with policy bound %d.", iteration, bound)
	o.emit(events.IterationStart, map[string]interface{}{"iteration": iteration, "bound": bound})
}

func (o *eventObserver) IterationFinished(iteration, bound int, flag search.Flag) {
	o.log.Debugf("Iteration %d (bound %d) finished: %s.", iteration, bound, flag)
	o.emit(events.IterationEnd, map[string]interface{}{"iteration": iteration, "bound": bound, "flag": flag.String()})
}

func (o *eventObserver) BoundEscalated(from, to int) {
	o.log.Debugf("Policy bound escalated from %d to %d.", from, to)
	o.emit(events.BoundEscalated, map[string]interface{}{"from": from, "to": to})
}

func (o *eventObserver) DeadEndCached(s planning.State) {
	o.emit(events.DeadEndCached, map[string]interface{}{"state": s.String()})
}
