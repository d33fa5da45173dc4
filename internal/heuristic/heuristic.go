// Package heuristic provides simple heuristic oracles for explicit-state
// problems.
package heuristic

import (
	"fmt"
	"math"
	"strings"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// Names accepted by New.
const (
	NameZero         = "zero"
	NameTable        = "table"
	NameGoalDistance = "goal-distance"
	NameMax          = "max"
)

// Zero returns the blind heuristic. It never reports a dead end.
func Zero() planning.Heuristic {
	return planning.HeuristicFunc(func(planning.State) float64 { return 0 })
}

// Table looks estimates up by state key.
type Table struct {
	values   map[string]float64
	fallback float64
}

// NewTable creates a Table returning fallback for unknown states. The map is
// owned by the Table afterwards.
func NewTable(values map[string]float64, fallback float64) *Table {
	if values == nil {
		values = make(map[string]float64)
	}
	return &Table{values: values, fallback: fallback}
}

// Estimate implements planning.Heuristic.
func (t *Table) Estimate(s planning.State) float64 {
	if v, ok := t.values[s.Key()]; ok {
		return v
	}
	return t.fallback
}

// Len returns the number of states with an explicit value.
func (t *Table) Len() int { return len(t.values) }

// maxOf returns the pointwise maximum of its components.
type maxOf []planning.Heuristic

func (m maxOf) Estimate(s planning.State) float64 {
	best := 0.0
	for _, h := range m {
		if v := h.Estimate(s); v > best || math.IsNaN(v) {
			best = v
		}
	}
	return best
}

// Max combines heuristics by taking the largest estimate. A NaN from any
// component is passed through so the search can report it.
func Max(hs ...planning.Heuristic) planning.Heuristic {
	if len(hs) == 1 {
		return hs[0]
	}
	return maxOf(hs)
}

// Source is what the named heuristics need from a problem.
type Source interface {
	Enumerable
	// Estimates returns the declared heuristic values and the fallback.
	Estimates() (map[string]float64, float64)
}

// New builds the heuristic called name for p.
func New(name string, p Source) (planning.Heuristic, error) {
	switch strings.ToLower(name) {
	case "", NameZero:
		return Zero(), nil
	case NameTable:
		values, fallback := p.Estimates()
		return NewTable(values, fallback), nil
	case NameGoalDistance:
		return NewGoalDistance(p), nil
	case NameMax:
		values, fallback := p.Estimates()
		return Max(NewTable(values, fallback), NewGoalDistance(p)), nil
	}
	return nil, fonderrors.NewConfigError(
		fmt.Sprintf("unknown heuristic '%s' (want one of %s, %s, %s, %s)", name, NameZero, NameTable, NameGoalDistance, NameMax), nil)
}
