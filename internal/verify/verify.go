// Package verify checks that a policy is a strong-cyclic solution of a
// problem, independently of the search that produced it.
package verify

import (
	"fmt"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
)

// Property names reported in PolicyViolationError.
const (
	PropertyOperator  = "operator"
	PropertyClosure   = "closure"
	PropertySoundness = "soundness"
)

// Summary describes the part of the state space a verified policy covers.
type Summary struct {
	// Reachable counts states reachable from the initial state under the
	// policy, goals included.
	Reachable int
	// Goals counts the reachable goal states.
	Goals int
}

type edgeSet map[string][]string

// Policy verifies pol against problem:
//   - every recorded operator is an original operator applicable in its state;
//   - closure: every non-goal state reachable from the initial state under
//     pol has a decision;
//   - soundness: a goal stays reachable from every such state.
//
// The first violation found is returned as a *PolicyViolationError.
func Policy(problem planning.Problem, pol *policy.Policy) (*Summary, error) {
	if problem == nil || pol == nil {
		return nil, fonderrors.NewValidationError("problem and policy are required", nil)
	}

	for _, e := range pol.Entries() {
		if err := checkOperator(problem, e); err != nil {
			return nil, err
		}
	}

	successors, reached, goals, err := explore(problem, pol)
	if err != nil {
		return nil, err
	}

	// Reverse reachability from the goals over the policy graph.
	predecessors := make(edgeSet)
	for from, tos := range successors {
		for _, to := range tos {
			predecessors[to] = append(predecessors[to], from)
		}
	}
	canReach := make(map[string]bool, len(reached))
	queue := make([]string, 0, len(goals))
	for _, g := range goals {
		canReach[g] = true
		queue = append(queue, g)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range predecessors[cur] {
			if !canReach[prev] {
				canReach[prev] = true
				queue = append(queue, prev)
			}
		}
	}
	for _, key := range reached {
		if !canReach[key] {
			return nil, fonderrors.NewPolicyViolationError(PropertySoundness, key, "no goal is reachable from this state under the policy")
		}
	}
	return &Summary{Reachable: len(reached), Goals: len(goals)}, nil
}

func checkOperator(problem planning.Problem, e policy.Entry) error {
	key := e.State.Key()
	if e.Operator == nil {
		return fonderrors.NewPolicyViolationError(PropertyOperator, key, "decision has no operator")
	}
	name := e.Operator.Name()
	if _, ok := problem.OriginalOperator(name); !ok {
		return fonderrors.NewPolicyViolationError(PropertyOperator, key, fmt.Sprintf("operator '%s' is not an original operator", name))
	}
	for _, op := range problem.ApplicableOperators(e.State) {
		if op.Name() == name {
			return nil
		}
	}
	return fonderrors.NewPolicyViolationError(PropertyOperator, key, fmt.Sprintf("operator '%s' is not applicable", name))
}

// explore walks the policy graph breadth first from the initial state. It
// returns the outcome edges of every decided state, all reached state keys in
// visit order and the reached goals.
func explore(problem planning.Problem, pol *policy.Policy) (edgeSet, []string, []string, error) {
	successors := make(edgeSet)
	var reached, goals []string
	seen := make(map[string]bool)

	initial := problem.InitialState()
	queue := []planning.State{initial}
	seen[initial.Key()] = true
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		key := s.Key()
		reached = append(reached, key)
		if problem.IsGoal(s) {
			goals = append(goals, key)
			continue
		}
		entry, ok := pol.Lookup(s)
		if !ok {
			return nil, nil, nil, fonderrors.NewPolicyViolationError(PropertyClosure, key, "reachable non-goal state has no decision")
		}
		outcomes := entry.Operator.Apply(s)
		if len(outcomes) == 0 {
			return nil, nil, nil, fonderrors.NewPolicyViolationError(PropertyOperator, key,
				fmt.Sprintf("operator '%s' has no outcomes here", entry.Operator.Name()))
		}
		for _, next := range outcomes {
			nk := next.Key()
			successors[key] = append(successors[key], nk)
			if !seen[nk] {
				seen[nk] = true
				queue = append(queue, next)
			}
		}
	}
	return successors, reached, goals, nil
}
