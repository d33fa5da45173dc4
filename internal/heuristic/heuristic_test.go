package heuristic_test

import (
	"math"
	"testing"

	"github.com/gxo-labs/fondsolve/internal/config"
	"github.com/gxo-labs/fondsolve/internal/explicit"
	"github.com/gxo-labs/fondsolve/internal/heuristic"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle(t *testing.T) *explicit.Problem {
	t.Helper()
	doc, err := config.LoadProblem([]byte(`
schemaVersion: v1.0.0
name: triangle
initial: A
goals: [G]
defaultH: 3
states:
  - {name: A}
  - {name: B, h: 1}
  - {name: G, h: 0}
  - {name: Pit}
operators:
  - name: move
    transitions:
      - {from: A, outcomes: [B]}
  - name: flip
    cost: 2
    transitions:
      - {from: B, outcomes: [A, G]}
      - {from: A, outcomes: [Pit]}
`), "triangle.yaml")
	require.NoError(t, err)
	p, err := explicit.FromDoc(doc)
	require.NoError(t, err)
	return p
}

func TestGoalDistance(t *testing.T) {
	h := heuristic.NewGoalDistance(triangle(t))

	assert.Equal(t, 0.0, h.Estimate(explicit.State("G")))
	assert.Equal(t, 2.0, h.Estimate(explicit.State("B")))
	assert.Equal(t, 3.0, h.Estimate(explicit.State("A")))
	assert.True(t, math.IsInf(h.Estimate(explicit.State("Pit")), 1))
	assert.Equal(t, 0.0, h.Estimate(explicit.State("elsewhere")))
	assert.Equal(t, 4, h.Len())
}

func TestTable(t *testing.T) {
	values, fallback := triangle(t).Estimates()
	h := heuristic.NewTable(values, fallback)

	assert.Equal(t, 1.0, h.Estimate(explicit.State("B")))
	assert.Equal(t, 3.0, h.Estimate(explicit.State("A")))
	assert.Equal(t, 0.0, heuristic.NewTable(nil, 0).Estimate(explicit.State("A")))
}

func TestMax(t *testing.T) {
	constant := func(v float64) planning.Heuristic {
		return planning.HeuristicFunc(func(planning.State) float64 { return v })
	}
	s := explicit.State("x")

	assert.Equal(t, 5.0, heuristic.Max(constant(1), constant(5), constant(2)).Estimate(s))
	assert.True(t, math.IsInf(heuristic.Max(constant(1), constant(math.Inf(1))).Estimate(s), 1))
	assert.True(t, math.IsNaN(heuristic.Max(constant(math.NaN()), constant(7)).Estimate(s)))
	assert.True(t, math.IsNaN(heuristic.Max(constant(7), constant(math.NaN())).Estimate(s)))
}

func TestNew(t *testing.T) {
	p := triangle(t)
	b := explicit.State("B")

	testCases := []struct {
		name string
		want float64
	}{
		{name: "", want: 0},
		{name: "zero", want: 0},
		{name: "table", want: 1},
		{name: "goal-distance", want: 2},
		{name: "MAX", want: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := heuristic.New(tc.name, p)
			require.NoError(t, err)
			assert.Equal(t, tc.want, h.Estimate(b))
		})
	}

	_, err := heuristic.New("lm-cut", p)
	assert.Error(t, err)
}
