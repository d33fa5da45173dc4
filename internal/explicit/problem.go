// Package explicit builds planning problems from explicit-state problem
// documents: every state is a name and every operator lists its outcomes per
// source state.
package explicit

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gxo-labs/fondsolve/internal/config"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// State is a named explicit state.
type State string

func (s State) Key() string    { return string(s) }
func (s State) String() string { return string(s) }

// Operator is a nondeterministic operator with a finite effect table.
type Operator struct {
	name    string
	cost    float64
	effects map[string][]planning.State
}

func (o *Operator) Name() string  { return o.name }
func (o *Operator) Cost() float64 { return o.cost }

// Apply returns the outcomes of o in s, or nil when o is not applicable there.
func (o *Operator) Apply(s planning.State) []planning.State {
	return slices.Clone(o.effects[s.Key()])
}

// Problem is a planning.Problem over explicitly enumerated states.
type Problem struct {
	name      string
	initial   State
	goals     map[string]bool
	states    []planning.State
	operators []*Operator
	byName    map[string]*Operator
	// applicable holds, per state key, the operators with a transition from
	// that state, in document order.
	applicable map[string][]planning.Operator
	estimates  map[string]float64
	defaultH   float64
}

var _ planning.Problem = (*Problem)(nil)

// FromDoc builds a Problem from a problem document. The document is validated
// again, so FromDoc may be used with documents not produced by the loader.
func FromDoc(doc *config.ProblemDoc) (*Problem, error) {
	if doc == nil {
		return nil, fonderrors.NewConfigError("problem document cannot be nil", nil)
	}
	if errs := config.ValidateProblemStructure(doc); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return nil, fonderrors.NewValidationError(
			fmt.Sprintf("problem '%s' is invalid:\n- %s", doc.Name, strings.Join(msgs, "\n- ")), errs[0])
	}

	p := &Problem{
		name:       doc.Name,
		initial:    State(doc.Initial),
		goals:      make(map[string]bool, len(doc.Goals)),
		byName:     make(map[string]*Operator, len(doc.Operators)),
		applicable: make(map[string][]planning.Operator),
		estimates:  make(map[string]float64, len(doc.States)),
	}
	if doc.DefaultH != nil {
		p.defaultH = doc.DefaultH.Float()
	}

	seen := make(map[string]bool)
	remember := func(name string) State {
		if !seen[name] {
			seen[name] = true
			p.states = append(p.states, State(name))
		}
		return State(name)
	}

	for _, st := range doc.States {
		remember(st.Name)
		if st.H != nil {
			p.estimates[st.Name] = st.H.Float()
		}
	}
	remember(doc.Initial)
	for _, g := range doc.Goals {
		remember(g)
		p.goals[g] = true
	}
	for _, od := range doc.Operators {
		op := &Operator{
			name:    od.Name,
			cost:    od.CostOrDefault(),
			effects: make(map[string][]planning.State, len(od.Transitions)),
		}
		for _, tr := range od.Transitions {
			from := remember(tr.From)
			outs := make([]planning.State, 0, len(tr.Outcomes))
			for _, o := range tr.Outcomes {
				outs = append(outs, remember(o))
			}
			op.effects[from.Key()] = outs
			p.applicable[from.Key()] = append(p.applicable[from.Key()], op)
		}
		p.operators = append(p.operators, op)
		p.byName[op.name] = op
	}
	return p, nil
}

// Name returns the problem name.
func (p *Problem) Name() string { return p.name }

func (p *Problem) InitialState() planning.State { return p.initial }

func (p *Problem) ApplicableOperators(s planning.State) []planning.Operator {
	return slices.Clone(p.applicable[s.Key()])
}

func (p *Problem) IsGoal(s planning.State) bool { return p.goals[s.Key()] }

// OriginalOperator resolves name among the document's operators. Explicit
// problems are not preprocessed, so every operator is its own original.
func (p *Problem) OriginalOperator(name string) (planning.Operator, bool) {
	op, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return op, true
}

// States returns every state mentioned by the document, in first-mention
// order.
func (p *Problem) States() []planning.State {
	return slices.Clone(p.states)
}

// Goals returns the goal states in first-mention order.
func (p *Problem) Goals() []planning.State {
	var out []planning.State
	for _, s := range p.states {
		if p.goals[s.Key()] {
			out = append(out, s)
		}
	}
	return out
}

// Operators returns the operators in document order.
func (p *Problem) Operators() []*Operator {
	return slices.Clone(p.operators)
}

// Estimates returns the heuristic values declared in the document and the
// value for states without one.
func (p *Problem) Estimates() (map[string]float64, float64) {
	return maps.Clone(p.estimates), p.defaultH
}
