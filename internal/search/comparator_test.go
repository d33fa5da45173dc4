package search

import (
	"testing"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableState string

func (s tableState) Key() string    { return string(s) }
func (s tableState) String() string { return string(s) }

type tableOp struct {
	name     string
	outcomes []string
}

func (o tableOp) Name() string  { return o.name }
func (o tableOp) Cost() float64 { return 1 }
func (o tableOp) Apply(planning.State) []planning.State {
	out := make([]planning.State, len(o.outcomes))
	for i, name := range o.outcomes {
		out[i] = tableState(name)
	}
	return out
}

// starProblem has a single decision state S with three operators:
// wide -> {A, B, C}, narrow -> {D}, cheap -> {E, F}.
type starProblem struct{}

var starOps = []planning.Operator{
	tableOp{name: "wide", outcomes: []string{"A", "B", "C"}},
	tableOp{name: "narrow", outcomes: []string{"D"}},
	tableOp{name: "cheap", outcomes: []string{"E", "F"}},
}

var starH = map[string]float64{"A": 1, "B": 1, "C": 1, "D": 5, "E": 0, "F": 2}

func (starProblem) InitialState() planning.State { return tableState("S") }
func (starProblem) ApplicableOperators(s planning.State) []planning.Operator {
	if s.Key() == "S" {
		return starOps
	}
	return nil
}
func (starProblem) IsGoal(planning.State) bool { return false }
func (starProblem) OriginalOperator(name string) (planning.Operator, bool) {
	for _, op := range starOps {
		if op.Name() == name {
			return op, true
		}
	}
	return nil, false
}

func starGraph(t *testing.T) (*Graph, *Node, []*Connector) {
	t.Helper()
	h := planning.HeuristicFunc(func(s planning.State) float64 { return starH[s.Key()] })
	g := NewGraph(starProblem{}, h, Limits{})
	root, err := g.LookupOrInsert(tableState("S"), 0)
	require.NoError(t, err)
	conns, err := g.Expand(root)
	require.NoError(t, err)
	require.Len(t, conns, 3)
	return g, root, conns
}

func opNames(conns []*Connector) []string {
	names := make([]string, len(conns))
	for i, c := range conns {
		names[i] = c.Operator.Name()
	}
	return names
}

func TestComparator_Order(t *testing.T) {
	testCases := []struct {
		name      string
		selection ActionSelection
		agg       Aggregation
		tieBreak  TieBreak
		want      []string
	}{
		{"min-h max", SelectMinH, AggregateMax, TieBreakNone, []string{"wide", "cheap", "narrow"}},
		{"min-h min", SelectMinH, AggregateMin, TieBreakNone, []string{"cheap", "wide", "narrow"}},
		{"min-h sum", SelectMinH, AggregateSum, TieBreakNone, []string{"cheap", "wide", "narrow"}},
		{"min-h mean ties by id", SelectMinH, AggregateMean, TieBreakNone, []string{"wide", "cheap", "narrow"}},
		{"min-h mean fewer outcomes", SelectMinH, AggregateMean, TieBreakFewerOutcomes, []string{"cheap", "wide", "narrow"}},
		{"min-h mean sum-h", SelectMinH, AggregateMean, TieBreakSumH, []string{"cheap", "wide", "narrow"}},
		{"weighted fewer outcomes", SelectMinHWeighted, AggregateMax, TieBreakFewerOutcomes, []string{"narrow", "cheap", "wide"}},
		{"weighted more outcomes", SelectMinHWeighted, AggregateMax, TieBreakMoreOutcomes, []string{"wide", "cheap", "narrow"}},
		{"none keeps expansion order", SelectNone, AggregateMax, TieBreakNone, []string{"wide", "narrow", "cheap"}},
		{"none with more outcomes", SelectNone, AggregateMax, TieBreakMoreOutcomes, []string{"wide", "cheap", "narrow"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, _, conns := starGraph(t)
			cmp := newComparator(g, Options{ActionSelection: tc.selection, Aggregation: tc.agg, TieBreak: tc.tieBreak})
			assert.Equal(t, tc.want, opNames(cmp.order(conns, nil)))
		})
	}
}

func TestComparator_UnvisitedExcludesClosedChildren(t *testing.T) {
	g, _, conns := starGraph(t)
	cmp := newComparator(g, Options{ActionSelection: SelectMinHUnvisited, Aggregation: AggregateMax, TieBreak: TieBreakNone})

	assert.Equal(t, []string{"wide", "cheap", "narrow"}, opNames(cmp.order(conns, nil)))

	closed := func(n *Node) bool {
		k := n.State.Key()
		return k == "D" || k == "F"
	}
	// narrow: 1 + 0 (D excluded), cheap: 1 + 0 (only E), wide: 1 + 1.
	assert.Equal(t, []string{"narrow", "cheap", "wide"}, opNames(cmp.order(conns, closed)))
}

func TestComparator_Deterministic(t *testing.T) {
	g, _, conns := starGraph(t)
	cmp := newComparator(g, DefaultOptions())
	first := opNames(cmp.order(conns, nil))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, opNames(cmp.order(conns, nil)))
	}
	assert.Equal(t, []string{"wide", "narrow", "cheap"}, opNames(conns), "input must not be reordered")
}

func TestAggregate(t *testing.T) {
	values := []float64{3, 1, 2}
	assert.Equal(t, 1.0, Aggregate(AggregateMin, values))
	assert.Equal(t, 3.0, Aggregate(AggregateMax, values))
	assert.Equal(t, 2.0, Aggregate(AggregateMean, values))
	assert.Equal(t, 6.0, Aggregate(AggregateSum, values))
	assert.Equal(t, 0.0, Aggregate(AggregateMax, nil))
}
