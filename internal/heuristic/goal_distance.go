package heuristic

import (
	"container/heap"
	"math"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// Enumerable is a problem whose state space can be listed up front.
type Enumerable interface {
	planning.Problem
	States() []planning.State
}

type reverseEdge struct {
	from string
	cost float64
}

// NewGoalDistance computes, for every enumerated state, the cheapest cost to a
// goal in the all-outcomes determinization of p: each outcome of an operator
// is treated as a deterministic action of the operator's cost. States that
// cannot reach a goal even optimistically get +Inf, which the search treats as
// a dead end. States not enumerated by p fall back to 0.
func NewGoalDistance(p Enumerable) *Table {
	states := p.States()
	reverse := make(map[string][]reverseEdge)
	for _, s := range states {
		if p.IsGoal(s) {
			continue
		}
		for _, op := range p.ApplicableOperators(s) {
			for _, out := range op.Apply(s) {
				reverse[out.Key()] = append(reverse[out.Key()], reverseEdge{from: s.Key(), cost: op.Cost()})
			}
		}
	}

	dist := make(map[string]float64, len(states))
	pq := &distanceQueue{}
	for _, s := range states {
		if p.IsGoal(s) {
			dist[s.Key()] = 0
			heap.Push(pq, queued{key: s.Key(), dist: 0})
		}
	}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queued)
		if cur.dist > dist[cur.key] {
			continue
		}
		for _, e := range reverse[cur.key] {
			nd := cur.dist + e.cost
			if old, ok := dist[e.from]; !ok || nd < old {
				dist[e.from] = nd
				heap.Push(pq, queued{key: e.from, dist: nd})
			}
		}
	}

	for _, s := range states {
		if _, ok := dist[s.Key()]; !ok {
			dist[s.Key()] = math.Inf(1)
		}
	}
	return NewTable(dist, 0)
}

type queued struct {
	key  string
	dist float64
}

// distanceQueue is a min-heap on dist.
type distanceQueue []queued

func (q distanceQueue) Len() int            { return len(q) }
func (q distanceQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q distanceQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *distanceQueue) Push(x interface{}) { *q = append(*q, x.(queued)) }
func (q *distanceQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
