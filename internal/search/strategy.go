package search

import "math"

// noViolation is the bound violation of a subtree that never hit the bound.
const noViolation = math.MaxInt

var deadEndHeuristic = math.Inf(1)

// pruneEntry records the shallowest depth at which a node failed as
// non-promising, and how far beyond that depth its subtree violated the bound.
// A later hit at depth d reports a violation of d+offset, the same overshoot
// the full subtree search would have produced from there.
type pruneEntry struct {
	depth  int
	offset int
}

// pruneCache remembers non-promising nodes for one outer iteration. A node
// that failed when entered at depth d fails again at any depth >= d under the
// same bound, since it has at most the same remaining budget.
type pruneCache struct {
	entries map[NodeID]pruneEntry
}

func newPruneCache() *pruneCache {
	return &pruneCache{entries: make(map[NodeID]pruneEntry)}
}

// reset clears the cache. Entries are only valid under the bound they were
// recorded with.
func (p *pruneCache) reset() {
	clear(p.entries)
}

// check returns the recorded violation offset if a node entered at depth
// should be short-circuited.
func (p *pruneCache) check(id NodeID, depth int) (int, bool) {
	e, ok := p.entries[id]
	if !ok || depth < e.depth {
		return 0, false
	}
	return e.offset, true
}

// record keeps the shallowest failure per node. A deeper failure of the same
// node is implied by the shallower one and is not stored.
func (p *pruneCache) record(id NodeID, depth, offset int) {
	if e, ok := p.entries[id]; ok && e.depth <= depth {
		return
	}
	p.entries[id] = pruneEntry{depth: depth, offset: offset}
}

func (p *pruneCache) len() int { return len(p.entries) }

// learner raises node estimates after failed attempts. Updated values only
// feed the comparator; verdicts never depend on them.
type learner struct {
	g   *Graph
	agg Aggregation
}

// update sets h(n) to the cheapest connector estimate when that is a tighter
// finite lower bound. It reports whether the estimate changed.
func (l *learner) update(n *Node) bool {
	if n.IsGoal || n.IsDeadEnd() || !n.expanded || len(n.Outgoing) == 0 {
		return false
	}
	best := math.Inf(1)
	for _, id := range n.Outgoing {
		best = math.Min(best, l.g.EstimatedCost(l.g.Connector(id), l.agg))
	}
	if math.IsInf(best, 0) || best <= n.Heuristic {
		return false
	}
	n.Heuristic = best
	return true
}
