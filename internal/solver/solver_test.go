package solver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/fondsolve/internal/config"
	intEvents "github.com/gxo-labs/fondsolve/internal/events"
	"github.com/gxo-labs/fondsolve/internal/explicit"
	"github.com/gxo-labs/fondsolve/internal/logger"
	intMetrics "github.com/gxo-labs/fondsolve/internal/metrics"
	"github.com/gxo-labs/fondsolve/internal/solver"
	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

func loadExplicit(t *testing.T, doc string) *explicit.Problem {
	t.Helper()
	pd, err := config.LoadProblem([]byte(doc), "test.yaml")
	require.NoError(t, err)
	p, err := explicit.FromDoc(pd)
	require.NoError(t, err)
	return p
}

const triangleDoc = `
schemaVersion: v1.0.0
name: triangle
initial: A
goals: [G]
operators:
  - name: move
    transitions:
      - {from: A, outcomes: [B]}
  - name: flip
    transitions:
      - {from: B, outcomes: [A, G]}
`

const trapDoc = `
schemaVersion: v1.0.0
name: trap
initial: A
goals: [G]
operators:
  - name: move
    transitions:
      - {from: A, outcomes: [B]}
      - {from: B, outcomes: [A]}
`

const chainDoc = `
schemaVersion: v1.0.0
name: chain
initial: S0
goals: [G]
operators:
  - name: a
    transitions:
      - {from: S0, outcomes: [S1]}
  - name: b
    transitions:
      - {from: S1, outcomes: [G]}
`

// hookOp is a single-outcome operator S0 -> G whose Apply runs hook first.
type hookOp struct{ hook func() }

func (o hookOp) Name() string  { return "hook" }
func (o hookOp) Cost() float64 { return 1 }
func (o hookOp) Apply(planning.State) []planning.State {
	o.hook()
	return []planning.State{explicit.State("G")}
}

type hookProblem struct{ op hookOp }

func (p hookProblem) InitialState() planning.State { return explicit.State("S0") }
func (p hookProblem) ApplicableOperators(s planning.State) []planning.Operator {
	if s.Key() == "S0" {
		return []planning.Operator{p.op}
	}
	return nil
}
func (p hookProblem) IsGoal(s planning.State) bool { return s.Key() == "G" }
func (p hookProblem) OriginalOperator(name string) (planning.Operator, bool) {
	return p.op, name == "hook"
}

func newSolver(t *testing.T, opts ...fond.SolverOption) *solver.Solver {
	t.Helper()
	s, err := solver.NewSolver(logger.NewDiscardLogger(), opts...)
	require.NoError(t, err)
	return s
}

func runsTotal(t *testing.T, s *solver.Solver, result string) float64 {
	t.Helper()
	families, err := s.MetricsRegistryProvider().Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "fond_solve_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSolve_Proven(t *testing.T) {
	s := newSolver(t)
	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "triangle", Problem: loadExplicit(t, triangleDoc)})
	require.NoError(t, err)

	assert.Equal(t, fond.ResultProven, report.Result)
	require.NotNil(t, report.Policy)
	assert.Equal(t, 2, report.PolicySize)
	assert.Equal(t, "idfs-pruning", report.Algorithm)
	assert.Equal(t, "triangle", report.ProblemName)
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.Error)
	assert.Positive(t, report.NodesCreated)
	assert.False(t, report.EndTime.Before(report.StartTime))

	entry, ok := report.Policy.Lookup(explicit.State("A"))
	require.True(t, ok)
	assert.Equal(t, "move", entry.Operator.Name())

	assert.Equal(t, 1.0, runsTotal(t, s, "PROVEN"))
}

func TestSolve_Disproven(t *testing.T) {
	s := newSolver(t)
	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "trap", Problem: loadExplicit(t, trapDoc)})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultDisproven, report.Result)
	assert.Nil(t, report.Policy)
	assert.Zero(t, report.PolicySize)
}

func TestSolve_PlainDFS(t *testing.T) {
	opts := fond.DefaultSearchOptions()
	opts.PolicyBound = false
	opts.PruneNonPromising = false
	s := newSolver(t, fond.WithSearchOptions(opts))

	report, err := s.Solve(context.Background(), fond.SolveRequest{Problem: loadExplicit(t, chainDoc)})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultProven, report.Result)
	assert.Equal(t, "dfs", report.Algorithm)
	assert.Equal(t, "unnamed", report.ProblemName)
	assert.Equal(t, 1, report.Iterations)
}

func TestSolve_Undecided(t *testing.T) {
	opts := fond.DefaultSearchOptions()
	opts.MaxIterations = 1
	s := newSolver(t, fond.WithSearchOptions(opts))

	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "chain", Problem: loadExplicit(t, chainDoc)})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultUndecided, report.Result)
	assert.Equal(t, 1, report.Iterations)
}

func TestSolve_OutOfMemory(t *testing.T) {
	opts := fond.DefaultSearchOptions()
	opts.MaxNodes = 1
	s := newSolver(t, fond.WithSearchOptions(opts))

	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "chain", Problem: loadExplicit(t, chainDoc)})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultOutOfMemory, report.Result)
	assert.Contains(t, report.Error, "nodes")
	assert.Equal(t, 1.0, runsTotal(t, s, "OUT_OF_MEMORY"))
}

func TestSolve_Timeout(t *testing.T) {
	s := newSolver(t, fond.WithTimeout(10*time.Millisecond))
	slow := hookProblem{op: hookOp{hook: func() { time.Sleep(100 * time.Millisecond) }}}

	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "slow", Problem: slow})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultTimeout, report.Result)
	assert.Positive(t, report.NodesCreated)
}

func TestSolve_AbandonsStuckSearch(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := hookProblem{op: hookOp{hook: func() { <-release }}}

	s := newSolver(t, fond.WithTimeout(10*time.Millisecond), fond.WithGracePeriod(20*time.Millisecond))
	start := time.Now()
	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "stuck", Problem: stuck})
	require.NoError(t, err)
	assert.Equal(t, fond.ResultTimeout, report.Result)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSolve_CollaboratorPanicIsContractViolation(t *testing.T) {
	s := newSolver(t)
	broken := hookProblem{op: hookOp{hook: func() { panic("boom") }}}

	report, err := s.Solve(context.Background(), fond.SolveRequest{Name: "broken", Problem: broken})
	require.Error(t, err)
	assert.True(t, fonderrors.IsContractViolation(err))
	require.NotNil(t, report)
	assert.Contains(t, report.Error, "boom")
	assert.Equal(t, 1.0, runsTotal(t, s, "ERROR"))
}

func TestSolve_NilProblem(t *testing.T) {
	s := newSolver(t)
	_, err := s.Solve(context.Background(), fond.SolveRequest{})
	var verr *fonderrors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSolve_EmitsEvents(t *testing.T) {
	bus := intEvents.NewChannelEventBus(64, logger.NewDiscardLogger())
	s := newSolver(t, fond.WithEventBus(bus))

	_, err := s.Solve(context.Background(), fond.SolveRequest{Name: "chain", Problem: loadExplicit(t, chainDoc)})
	require.NoError(t, err)
	bus.Close()

	var types []events.EventType
	for ev := range bus.GetChannel() {
		assert.Equal(t, "chain", ev.ProblemName)
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, events.SolveStart, types[0])
	assert.Equal(t, events.SolveEnd, types[len(types)-1])
	assert.Contains(t, types, events.IterationStart)
	assert.Contains(t, types, events.BoundEscalated)
}

func TestSolver_SharedRegistry(t *testing.T) {
	provider := intMetrics.NewPrometheusRegistryProvider()
	first := newSolver(t, fond.WithMetricsRegistryProvider(provider))
	second := newSolver(t, fond.WithMetricsRegistryProvider(provider))

	for _, s := range []*solver.Solver{first, second} {
		_, err := s.Solve(context.Background(), fond.SolveRequest{Name: "chain", Problem: loadExplicit(t, chainDoc)})
		require.NoError(t, err)
	}
	assert.Equal(t, 2.0, runsTotal(t, first, "PROVEN"))
	count, err := testutil.GatherAndCount(provider.Registry(), "fond_search_iterations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewSolver_Options(t *testing.T) {
	_, err := solver.NewSolver(nil)
	assert.Error(t, err)

	_, err = solver.NewSolver(logger.NewDiscardLogger(), fond.WithTimeout(-time.Second))
	assert.Error(t, err)

	_, err = solver.NewSolver(logger.NewDiscardLogger(), fond.WithGracePeriod(0))
	assert.Error(t, err)

	_, err = solver.NewSolver(logger.NewDiscardLogger(), fond.WithEventBus(nil))
	assert.Error(t, err)

	bad := fond.DefaultSearchOptions()
	bad.Aggregation = "median"
	_, err = solver.NewSolver(logger.NewDiscardLogger(), fond.WithSearchOptions(bad))
	var cerr *fonderrors.ConfigError
	assert.True(t, errors.As(err, &cerr))
}
