package search_test

import (
	"math"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// fixState is a state identified by name only. Two fixState values with the
// same name are distinct objects describing the same state.
type fixState struct{ name string }

func (s *fixState) Key() string    { return s.name }
func (s *fixState) String() string { return s.name }

type fixOp struct {
	name     string
	cost     float64
	outcomes map[string][]string // from -> outcomes
}

func (o *fixOp) Name() string  { return o.name }
func (o *fixOp) Cost() float64 { return o.cost }
func (o *fixOp) Apply(s planning.State) []planning.State {
	var out []planning.State
	for _, name := range o.outcomes[s.Key()] {
		out = append(out, &fixState{name: name})
	}
	return out
}

// fixProblem is a hand-built explicit problem. Operators are returned in the
// order they were added.
type fixProblem struct {
	initial string
	goals   map[string]bool
	ops     []*fixOp
	h       map[string]float64
}

func newFixProblem(initial string, goals ...string) *fixProblem {
	p := &fixProblem{initial: initial, goals: map[string]bool{}, h: map[string]float64{}}
	for _, g := range goals {
		p.goals[g] = true
	}
	return p
}

// op adds a transition from -> outcomes for the operator with the given name.
func (p *fixProblem) op(name, from string, outcomes ...string) *fixProblem {
	for _, o := range p.ops {
		if o.name == name {
			o.outcomes[from] = outcomes
			return p
		}
	}
	p.ops = append(p.ops, &fixOp{name: name, cost: 1, outcomes: map[string][]string{from: outcomes}})
	return p
}

func (p *fixProblem) withH(state string, h float64) *fixProblem {
	p.h[state] = h
	return p
}

func (p *fixProblem) InitialState() planning.State { return &fixState{name: p.initial} }

func (p *fixProblem) ApplicableOperators(s planning.State) []planning.Operator {
	var ops []planning.Operator
	for _, o := range p.ops {
		if _, ok := o.outcomes[s.Key()]; ok {
			ops = append(ops, o)
		}
	}
	return ops
}

func (p *fixProblem) IsGoal(s planning.State) bool { return p.goals[s.Key()] }

func (p *fixProblem) OriginalOperator(name string) (planning.Operator, bool) {
	for _, o := range p.ops {
		if o.name == name {
			return o, true
		}
	}
	return nil, false
}

// Estimate serves the table heuristic of the fixture; unknown states are 0.
func (p *fixProblem) Estimate(s planning.State) float64 {
	return p.h[s.Key()]
}

var inf = math.Inf(1)

// groundedOp is a search-side copy of a fixOp: same name and outcomes, but a
// distinct object, as a problem that grounds operators per state would hand
// out.
type groundedOp struct{ fixOp }

// groundedProblem returns fresh groundedOp copies from ApplicableOperators
// while OriginalOperator keeps answering with the fixProblem's own operators.
type groundedProblem struct{ *fixProblem }

func (p groundedProblem) ApplicableOperators(s planning.State) []planning.Operator {
	var ops []planning.Operator
	for _, op := range p.fixProblem.ApplicableOperators(s) {
		ops = append(ops, &groundedOp{fixOp: *op.(*fixOp)})
	}
	return ops
}
