package search

import (
	"context"
	"math"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
)

// Observer receives progress notifications from a Searcher. Calls happen on
// the search goroutine and must return quickly.
type Observer interface {
	IterationStarted(iteration, bound int)
	IterationFinished(iteration, bound int, flag Flag)
	BoundEscalated(from, to int)
	DeadEndCached(s planning.State)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) IterationStarted(int, int)        {}
func (NopObserver) IterationFinished(int, int, Flag) {}
func (NopObserver) BoundEscalated(int, int)          {}
func (NopObserver) DeadEndCached(planning.State)     {}

// Outcome is the result of a Searcher run.
type Outcome struct {
	// Flag is FlagGoal when a policy was found. FlagDeadEnd and FlagNoPolicy
	// mean the problem is unsolvable (within MaxBound), FlagNonPromising that
	// the iteration limit was hit first, FlagTimeout that ctx was done.
	Flag       Flag
	Policy     *policy.Policy
	Iterations int
	FinalBound int
	Stats      Stats
}

// Searcher runs one strong-cyclic search over a problem. It owns its graph;
// a Searcher must not be run concurrently or more than once.
type Searcher struct {
	problem planning.Problem
	opts    Options
	obs     Observer
	graph   *Graph
}

// NewSearcher validates opts and creates a Searcher. A nil observer is
// replaced by NopObserver.
func NewSearcher(problem planning.Problem, h planning.Heuristic, opts Options, obs Observer) (*Searcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Searcher{
		problem: problem,
		opts:    opts,
		obs:     obs,
		graph: NewGraph(problem, h, Limits{
			MaxNodes:         opts.MaxNodes,
			MemoryLimitBytes: opts.MemoryLimitBytes,
		}),
	}, nil
}

// Graph exposes the search graph, mainly for inspection after Run.
func (s *Searcher) Graph() *Graph { return s.graph }

// Run searches for a strong-cyclic policy from the problem's initial state.
// Unsolvability and timeouts are reported through Outcome.Flag; errors are
// reserved for collaborator contract violations and exhausted budgets.
func (s *Searcher) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{}
	r := &run{
		ctx:       ctx,
		g:         s.graph,
		cmp:       newComparator(s.graph, s.opts),
		obs:       s.obs,
		stats:     &out.Stats,
		bound:     unbounded,
		violation: noViolation,
	}
	defer s.fillStats(out)

	root, err := s.graph.LookupOrInsert(s.problem.InitialState(), 0)
	if err != nil {
		return out, err
	}
	if root.IsDeadEnd() {
		out.Flag = FlagDeadEnd
		return out, nil
	}

	var flag Flag
	if s.opts.PolicyBound {
		flag, err = s.iterate(r, root, out)
	} else {
		out.Iterations = 1
		flag, err = r.search(root, 0)
		if flag == FlagVisited || flag == FlagNonPromising {
			flag = FlagNoPolicy
		}
	}
	if err != nil {
		return out, err
	}
	out.Flag = flag
	if flag == FlagGoal {
		p, err := extractPolicy(s.graph, s.problem, root)
		if err != nil {
			return out, err
		}
		out.Policy = p
	}
	return out, nil
}

// iterate is iterative deepening on the number of decisions along a path.
// Each failed iteration escalates the bound to the smallest violation it saw.
func (s *Searcher) iterate(r *run, root *Node, out *Outcome) (Flag, error) {
	if s.opts.PruneNonPromising {
		r.prune = newPruneCache()
	}
	if s.opts.Learning {
		r.learn = &learner{g: s.graph, agg: s.opts.Aggregation}
	}

	bound := initialBound(root.Heuristic)
	if s.opts.MaxBound > 0 && bound > s.opts.MaxBound {
		bound = s.opts.MaxBound
	}
	for iteration := 1; ; iteration++ {
		if s.opts.MaxIterations > 0 && iteration > s.opts.MaxIterations {
			return FlagNonPromising, nil
		}
		// Each iteration starts from a clean slate: node statuses, the prune
		// cache and the trail belong to one bound. Dead ends and learned
		// estimates survive, since they do not depend on the bound.
		s.graph.resetIteration()
		if r.prune != nil {
			r.prune.reset()
		}
		r.trail = r.trail[:0]
		r.path = r.path[:0]
		r.bound = bound
		r.violation = noViolation
		out.Iterations = iteration
		out.FinalBound = bound

		s.obs.IterationStarted(iteration, bound)
		flag, err := r.search(root, 0)
		if err != nil {
			return flag, err
		}
		s.obs.IterationFinished(iteration, bound, flag)

		switch flag {
		case FlagGoal, FlagDeadEnd, FlagTimeout:
			return flag, nil
		}
		// Nothing hit the bound, so a larger bound cannot help.
		if r.violation == noViolation {
			return FlagNoPolicy, nil
		}
		next := r.violation
		if s.opts.MaxBound > 0 && next > s.opts.MaxBound {
			return FlagNoPolicy, nil
		}
		s.obs.BoundEscalated(bound, next)
		bound = next
	}
}

func initialBound(h float64) int {
	if h <= 0 || math.IsInf(h, 0) || math.IsNaN(h) {
		return 0
	}
	if h >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(h))
}

func (s *Searcher) fillStats(out *Outcome) {
	out.Stats.NodesCreated = s.graph.NumNodes()
	out.Stats.Connectors = s.graph.NumConnectors()
	out.Stats.Expansions = s.graph.Expansions()
	out.Stats.Iterations = out.Iterations
	out.Stats.FinalBound = out.FinalBound
}
