// Package planning defines the collaborator contracts the search core is
// written against: states, nondeterministic operators, problems and heuristic
// oracles. None of these are implemented by the core itself.
package planning

// State is an immutable planning state. Key must be stable and unique: two
// State values describing the same state return the same Key, and the search
// memoizes nodes by it.
type State interface {
	Key() string
	String() string
}

// Operator is a nondeterministic action. Apply returns every possible outcome
// of applying the operator in s; a deterministic operator returns exactly one
// state. Apply must never return an empty slice for a state in which the
// operator is applicable.
type Operator interface {
	Name() string
	Cost() float64
	Apply(s State) []State
}

// Problem is a fully observable nondeterministic planning task.
type Problem interface {
	// InitialState returns the single initial state.
	InitialState() State
	// ApplicableOperators lists the operators applicable in s, in a stable order.
	ApplicableOperators(s State) []Operator
	// IsGoal reports whether s satisfies the goal.
	IsGoal(s State) bool
	// OriginalOperator resolves an operator name to the operator of the
	// original (unpreprocessed) task. Policies only ever record originals.
	OriginalOperator(name string) (Operator, bool)
}

// Heuristic estimates the cost to reach the goal from a state. It returns a
// non-negative value, or math.Inf(1) when the goal is provably unreachable.
type Heuristic interface {
	Estimate(s State) float64
}

// HeuristicFunc adapts a plain function to the Heuristic interface.
type HeuristicFunc func(s State) float64

// Estimate calls f(s).
func (f HeuristicFunc) Estimate(s State) float64 { return f(s) }
