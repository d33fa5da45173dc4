package v1

import (
	"context"
	"time"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/events"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/metrics"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/tracing"
)

// SolverV1 defines the public interface of the strong-cyclic policy solver.
type SolverV1 interface {
	// Solve searches for a strong-cyclic policy for req.Problem. Unsolvable
	// problems, timeouts and exhausted budgets are reported through
	// SolveReport.Result; an error is returned only for invalid input or a
	// collaborator contract violation.
	Solve(ctx context.Context, req SolveRequest) (*SolveReport, error)

	// MetricsRegistryProvider returns the underlying metrics provider.
	MetricsRegistryProvider() metrics.RegistryProvider
	// TracerProvider returns the underlying tracing provider.
	TracerProvider() tracing.TracerProvider

	// Setter methods for configuring the solver programmatically.
	SetEventBus(bus events.Bus) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetTracerProvider(provider tracing.TracerProvider) error
	SetTimeout(timeout time.Duration) error
	SetGracePeriod(grace time.Duration) error
	SetSearchOptions(opts SearchOptions) error
}

// SolverOption is a function type used to configure the solver at creation.
type SolverOption func(SolverV1) error

// Result is the verdict of one solve run.
type Result string

const (
	// ResultProven means a strong-cyclic policy was found.
	ResultProven Result = "PROVEN"
	// ResultDisproven means no strong-cyclic policy exists (within MaxBound).
	ResultDisproven Result = "DISPROVEN"
	// ResultTimeout means the wall-clock budget ran out or the run was cancelled.
	ResultTimeout Result = "TIMEOUT"
	// ResultOutOfMemory means the node or memory budget was exhausted.
	ResultOutOfMemory Result = "OUT_OF_MEMORY"
	// ResultUndecided means the iteration limit was reached without a verdict.
	ResultUndecided Result = "UNDECIDED"
)

// SearchOptions selects and tunes the search variant. Zero values of the
// string fields are invalid; start from DefaultSearchOptions.
type SearchOptions struct {
	ActionSelection   string `yaml:"actionSelection" json:"action_selection"`
	Aggregation       string `yaml:"aggregation" json:"aggregation"`
	TieBreak          string `yaml:"tieBreak" json:"tie_break"`
	PolicyBound       bool   `yaml:"policyBound" json:"policy_bound"`
	PruneNonPromising bool   `yaml:"pruneNonPromising" json:"prune_non_promising"`
	Learning          bool   `yaml:"learning" json:"learning"`
	MaxNodes          int    `yaml:"maxNodes" json:"max_nodes"`
	MemoryLimitBytes  uint64 `yaml:"memoryLimitBytes" json:"memory_limit_bytes"`
	MaxBound          int    `yaml:"maxBound" json:"max_bound"`
	MaxIterations     int    `yaml:"maxIterations" json:"max_iterations"`
}

// DefaultSearchOptions returns iterative deepening with non-promising pruning,
// min-h connector selection over the worst-case outcome and fewer-outcomes tie
// breaking.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		ActionSelection:   "min-h",
		Aggregation:       "max",
		TieBreak:          "fewer-outcomes",
		PolicyBound:       true,
		PruneNonPromising: true,
	}
}

// SolveRequest names the problem to solve and the heuristic guiding the search.
type SolveRequest struct {
	// Name identifies the problem in logs, metrics and reports.
	Name      string
	Problem   planning.Problem
	Heuristic planning.Heuristic
}

// SolveReport summarizes a finished solve run.
type SolveReport struct {
	RunID        string         `json:"run_id"`
	ProblemName  string         `json:"problem_name"`
	Result       Result         `json:"result"`
	Algorithm    string         `json:"algorithm"`
	Policy       *policy.Policy `json:"-"`
	PolicySize   int            `json:"policy_size"`
	Iterations   int            `json:"iterations"`
	FinalBound   int            `json:"final_bound"`
	NodesCreated int            `json:"nodes_created"`
	Expansions   int            `json:"expansions"`
	DeadEnds     int            `json:"dead_ends"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Duration     time.Duration  `json:"duration"`
	Error        string         `json:"error,omitempty"`
}

// WithEventBus is a solver option to provide a custom event bus.
func WithEventBus(bus events.Bus) SolverOption {
	return func(s SolverV1) error {
		if bus == nil {
			return fonderrors.NewConfigError("event bus cannot be nil", nil)
		}
		return s.SetEventBus(bus)
	}
}

// WithMetricsRegistryProvider is a solver option to provide a custom metrics provider.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) SolverOption {
	return func(s SolverV1) error {
		if provider == nil {
			return fonderrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return s.SetMetricsRegistryProvider(provider)
	}
}

// WithTracerProvider is a solver option to provide a custom tracing provider.
func WithTracerProvider(provider tracing.TracerProvider) SolverOption {
	return func(s SolverV1) error {
		if provider == nil {
			return fonderrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		return s.SetTracerProvider(provider)
	}
}

// WithTimeout is a solver option to bound each solve run in wall-clock time.
// Zero disables the timeout.
func WithTimeout(timeout time.Duration) SolverOption {
	return func(s SolverV1) error {
		if timeout < 0 {
			return fonderrors.NewConfigError("timeout cannot be negative", nil)
		}
		return s.SetTimeout(timeout)
	}
}

// WithGracePeriod sets how long the solver waits for a cancelled search to
// unwind before abandoning it.
func WithGracePeriod(grace time.Duration) SolverOption {
	return func(s SolverV1) error {
		if grace <= 0 {
			return fonderrors.NewConfigError("grace period must be positive", nil)
		}
		return s.SetGracePeriod(grace)
	}
}

// WithSearchOptions is a solver option to select the search variant.
func WithSearchOptions(opts SearchOptions) SolverOption {
	return func(s SolverV1) error {
		return s.SetSearchOptions(opts)
	}
}
