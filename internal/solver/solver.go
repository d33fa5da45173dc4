package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/metrics"
	fondtracing "github.com/gxo-labs/fondsolve/pkg/fond/v1/tracing"

	intEvents "github.com/gxo-labs/fondsolve/internal/events"
	"github.com/gxo-labs/fondsolve/internal/heuristic"
	intMetrics "github.com/gxo-labs/fondsolve/internal/metrics"
	"github.com/gxo-labs/fondsolve/internal/search"
	intTracing "github.com/gxo-labs/fondsolve/internal/tracing"
)

const (
	tracerName         = "fondsolve-solver"
	defaultGracePeriod = 2 * time.Second
	// resultError labels runs that ended in an error rather than a verdict.
	resultError = "ERROR"
)

// Solver drives one search per Solve call: it owns the wall-clock budget,
// turns search flags into results and reports metrics, spans and events.
type Solver struct {
	eventBus        events.Bus
	metricsProvider metrics.RegistryProvider
	tracerProvider  fondtracing.TracerProvider
	log             fondlog.Logger

	timeout     time.Duration
	gracePeriod time.Duration
	searchOpts  search.Options

	runsCounter  *prometheus.CounterVec
	runDuration  prometheus.Histogram
	nodesCreated prometheus.Counter
	expansions   prometheus.Counter
	iterations   prometheus.Counter
	policySize   prometheus.Histogram
}

var _ fond.SolverV1 = (*Solver)(nil)

// NewSolver creates a Solver. Collaborators not supplied through opts get
// defaults: a NoOp event bus, a fresh Prometheus registry and a NoOp tracer.
func NewSolver(log fondlog.Logger, opts ...fond.SolverOption) (*Solver, error) {
	if log == nil {
		return nil, fonderrors.NewConfigError("logger cannot be nil", nil)
	}

	s := &Solver{
		log:         log,
		gracePeriod: defaultGracePeriod,
		searchOpts:  search.DefaultOptions(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fonderrors.NewConfigError(fmt.Sprintf("failed to apply solver option: %v", err), err)
		}
	}

	if s.eventBus == nil {
		s.log.Debugf("No event bus provided, using default NoOp bus.")
		s.eventBus = intEvents.NewNoOpEventBus()
	}
	if s.metricsProvider == nil {
		s.log.Debugf("No metrics provider provided, using default Prometheus provider.")
		s.metricsProvider = intMetrics.NewPrometheusRegistryProvider()
	}
	if s.tracerProvider == nil {
		s.log.Debugf("No tracer provider provided, using default NoOp provider.")
		tp, err := intTracing.NewNoOpProvider()
		if err != nil {
			return nil, fonderrors.NewConfigError("failed to create default NoOp tracer provider", err)
		}
		s.tracerProvider = tp
	}

	s.initMetrics()
	return s, nil
}

func (s *Solver) initMetrics() {
	reg := s.metricsProvider.Registry()
	if reg == nil {
		s.log.Errorf("Metrics provider returned a nil registry, cannot initialize metrics.")
		return
	}

	s.runsCounter = register(s, reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fond_solve_runs_total", Help: "Total number of solve runs by result."},
		[]string{"result"},
	))
	s.runDuration = register(s, reg, prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "fond_solve_duration_seconds", Help: "Duration of solve runs in seconds.", Buckets: prometheus.DefBuckets},
	))
	s.nodesCreated = register(s, reg, prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fond_search_nodes_created_total", Help: "Total number of search nodes created."},
	))
	s.expansions = register(s, reg, prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fond_search_expansions_total", Help: "Total number of node expansions."},
	))
	s.iterations = register(s, reg, prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fond_search_iterations_total", Help: "Total number of policy-bound iterations."},
	))
	s.policySize = register(s, reg, prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "fond_policy_size", Help: "Number of decisions in proven policies.", Buckets: prometheus.ExponentialBuckets(1, 2, 16)},
	))
	s.log.Debugf("Prometheus metrics initialized and registered.")
}

// register adds c to reg. When an equal collector is already registered, for
// example by another Solver sharing the registry, that one is returned.
func register[T prometheus.Collector](s *Solver, reg *prometheus.Registry, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	s.log.Warnf("Failed to register metric collector: %v", err)
	return c
}

// Solve runs one search. The search runs on its own goroutine; Solve returns
// when it finishes or, after the deadline, once it has unwound or the grace
// period has passed.
func (s *Solver) Solve(ctx context.Context, req fond.SolveRequest) (report *fond.SolveReport, finalErr error) {
	if req.Problem == nil {
		return nil, fonderrors.NewValidationError("solve request has no problem", nil)
	}
	name := req.Name
	if name == "" {
		name = "unnamed"
	}
	// Every run gets its own id, carried by logs, events and the span.
	runID := uuid.NewString()
	log := s.log.With("run_id", runID, "problem", name)

	tracer := s.tracerProvider.GetTracer(tracerName)
	ctx, span := tracer.Start(ctx, "fond.solve")
	defer span.End()

	startTime := time.Now()
	report = &fond.SolveReport{
		RunID:       runID,
		ProblemName: name,
		Algorithm:   s.searchOpts.Algorithm(),
		StartTime:   startTime,
	}

	// Finalize the report on every return path, then publish it to metrics,
	// the span, the event bus and the log.
	defer func() {
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(startTime)
		if finalErr != nil {
			report.Error = finalErr.Error()
		}
		s.observe(report)

		span.SetAttributes(
			attribute.String("fond.run_id", runID),
			attribute.String("fond.problem.name", name),
			attribute.String("fond.algorithm", report.Algorithm),
			attribute.String("fond.result", string(report.Result)),
			attribute.Int("fond.policy.size", report.PolicySize),
			attribute.Int("fond.iterations", report.Iterations),
			attribute.Int("fond.final_bound", report.FinalBound),
			attribute.Int("fond.nodes_created", report.NodesCreated),
			attribute.Int64("fond.duration_ms", report.Duration.Milliseconds()),
		)
		if finalErr != nil {
			intTracing.RecordErrorWithContext(span, finalErr)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		s.eventBus.Emit(events.Event{
			Type: events.SolveEnd, Timestamp: report.EndTime, RunID: runID, ProblemName: name,
			Payload: map[string]interface{}{
				"result": string(report.Result), "duration_ms": report.Duration.Milliseconds(),
				"policy_size": report.PolicySize, "iterations": report.Iterations, "error_message": report.Error,
			},
		})
		log.Infof("Solve finished: %s (policy size %d, %d iteration(s), %d node(s), %v).",
			resultLabel(report.Result), report.PolicySize, report.Iterations, report.NodesCreated, report.Duration)
	}()

	// Build the searcher. Invalid options surface here as a config error.
	h := req.Heuristic
	if h == nil {
		h = heuristic.Zero()
	}
	obs := &eventObserver{bus: s.eventBus, log: log, runID: runID, problem: name}
	searcher, err := search.NewSearcher(req.Problem, h, s.searchOpts, obs)
	if err != nil {
		return report, err
	}

	log.Infof("Starting %s search.", report.Algorithm)
	s.eventBus.Emit(events.Event{
		Type: events.SolveStart, Timestamp: startTime, RunID: runID, ProblemName: name,
		Payload: map[string]interface{}{"algorithm": report.Algorithm, "timeout_ms": s.timeout.Milliseconds()},
	})

	// The timeout only cancels the search context; the search notices it at
	// its next recursion entry.
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Run and classify. An abandoned worker leaves no outcome to read.
	res, finished := s.runSearch(runCtx, searcher, log)
	if !finished {
		report.Result = fond.ResultTimeout
		return report, nil
	}
	if res.out != nil {
		fillReport(report, res.out)
	}
	report.Result, finalErr = classify(res.out, res.err)
	if report.Result == fond.ResultOutOfMemory {
		log.Warnf("Search budget exhausted: %v", res.err)
		report.Error = res.err.Error()
	}
	if finalErr != nil {
		log.Errorf("Search aborted: %v", finalErr)
		return report, finalErr
	}
	// Only proven runs carry a policy.
	if report.Result == fond.ResultProven {
		report.Policy = res.out.Policy
		report.PolicySize = res.out.Policy.Len()
	}
	return report, nil
}

type searchResult struct {
	out *search.Outcome
	err error
}

// runSearch runs searcher on a worker goroutine. finished is false when the
// worker did not return within the grace period after ctx was done; the
// worker is then abandoned and its graph is never read.
func (s *Solver) runSearch(ctx context.Context, searcher *search.Searcher, log fondlog.Logger) (res searchResult, finished bool) {
	// Buffered so an abandoned worker can still send and exit.
	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchResult{err: fonderrors.NewContractViolationError(
					"collaborator", "", fmt.Sprintf("panic during search: %v", r), nil)}
			}
		}()
		out, err := searcher.Run(ctx)
		done <- searchResult{out: out, err: err}
	}()

	select {
	case res = <-done:
		return res, true
	case <-ctx.Done():
		log.Debugf("Solve context done (%v), waiting up to %v for the search to unwind.", ctx.Err(), s.gracePeriod)
	}

	// Cancelled: give the worker the grace period to observe it.
	timer := time.NewTimer(s.gracePeriod)
	defer timer.Stop()
	select {
	case res = <-done:
		return res, true
	case <-timer.C:
		log.Warnf("Search did not unwind within %v, abandoning it.", s.gracePeriod)
		return searchResult{}, false
	}
}

// classify maps a search outcome onto a run result. Exhausted budgets are a
// result, not an error.
func classify(out *search.Outcome, err error) (fond.Result, error) {
	if err != nil {
		if fonderrors.IsResourceExhausted(err) {
			return fond.ResultOutOfMemory, nil
		}
		return "", err
	}
	switch out.Flag {
	case search.FlagGoal:
		return fond.ResultProven, nil
	case search.FlagDeadEnd, search.FlagNoPolicy:
		return fond.ResultDisproven, nil
	case search.FlagTimeout:
		return fond.ResultTimeout, nil
	}
	return fond.ResultUndecided, nil
}

func fillReport(report *fond.SolveReport, out *search.Outcome) {
	report.Iterations = out.Iterations
	report.FinalBound = out.FinalBound
	report.NodesCreated = out.Stats.NodesCreated
	report.Expansions = out.Stats.Expansions
	report.DeadEnds = out.Stats.DeadEnds
}

func (s *Solver) observe(report *fond.SolveReport) {
	if s.runsCounter != nil {
		s.runsCounter.WithLabelValues(resultLabel(report.Result)).Inc()
	}
	if s.runDuration != nil {
		s.runDuration.Observe(report.Duration.Seconds())
	}
	if s.nodesCreated != nil {
		s.nodesCreated.Add(float64(report.NodesCreated))
	}
	if s.expansions != nil {
		s.expansions.Add(float64(report.Expansions))
	}
	if s.iterations != nil {
		s.iterations.Add(float64(report.Iterations))
	}
	if s.policySize != nil && report.Result == fond.ResultProven {
		s.policySize.Observe(float64(report.PolicySize))
	}
}

func resultLabel(r fond.Result) string {
	if r == "" {
		return resultError
	}
	return string(r)
}

func (s *Solver) MetricsRegistryProvider() metrics.RegistryProvider { return s.metricsProvider }
func (s *Solver) TracerProvider() fondtracing.TracerProvider          { return s.tracerProvider }

func (s *Solver) SetEventBus(bus events.Bus) error {
	if bus == nil {
		return fonderrors.NewConfigError("event bus cannot be nil", nil)
	}
	s.eventBus = bus
	return nil
}

func (s *Solver) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	if provider == nil {
		return fonderrors.NewConfigError("metrics registry provider cannot be nil", nil)
	}
	s.metricsProvider = provider
	if s.runsCounter != nil {
		s.initMetrics()
	}
	return nil
}

func (s *Solver) SetTracerProvider(provider fondtracing.TracerProvider) error {
	if provider == nil {
		return fonderrors.NewConfigError("tracer provider cannot be nil", nil)
	}
	s.tracerProvider = provider
	return nil
}

func (s *Solver) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fonderrors.NewConfigError("timeout cannot be negative", nil)
	}
	s.timeout = timeout
	return nil
}

func (s *Solver) SetGracePeriod(grace time.Duration) error {
	if grace <= 0 {
		return fonderrors.NewConfigError("grace period must be positive", nil)
	}
	s.gracePeriod = grace
	return nil
}

func (s *Solver) SetSearchOptions(opts fond.SearchOptions) error {
	converted := search.FromAPI(opts)
	if err := converted.Validate(); err != nil {
		return fonderrors.NewConfigError("invalid search options", err)
	}
	s.searchOpts = converted
	return nil
}
