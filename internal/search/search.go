package search

import (
	"context"
)

// unbounded disables the policy bound of a run.
const unbounded = -1

type trailEntry struct {
	node NodeID
	prev NodeStatus
}

// run holds the mutable state of one search over a graph: the recursion
// path, the trail of proven-status changes and the per-iteration bound
// bookkeeping. The proven set behaves as if it were passed by value through
// the recursion; the trail makes that cheap by undoing a failed branch's
// changes instead of copying.
type run struct {
	ctx   context.Context
	g     *Graph
	cmp   *comparator
	obs   Observer
	stats *Stats

	path  []NodeID
	trail []trailEntry

	bound     int
	violation int
	prune     *pruneCache
	learn     *learner
}

// search is one recursive call on n, entered after depth decisions.
//
// The checks run in a fixed order: cancellation, then verdicts already known
// (goal, proven, dead end), then the cycle test, then the bound and the prune
// cache. Only a node that passes all of them is opened and expanded.
func (r *run) search(n *Node, depth int) (Flag, error) {
	r.stats.Calls++
	if r.ctx.Err() != nil {
		return FlagTimeout, nil
	}
	// Reaching a goal or a proven node proves the whole open path above it.
	if n.IsGoal || n.status == StatusProven {
		r.credit()
		return FlagGoal, nil
	}
	if n.status == StatusDisproven || n.IsDeadEnd() {
		return FlagDeadEnd, nil
	}
	// A loop back into the path is neither a proof nor a refutation. The
	// caller retries it once a sibling has proven something.
	if n.onPath {
		return FlagVisited, nil
	}
	// Expanding n would need one more decision than the bound allows. The
	// smallest such overshoot becomes the next iteration's bound.
	if r.bound != unbounded && depth >= r.bound {
		r.stats.BoundViolations++
		r.report(depth + 1)
		return FlagNonPromising, nil
	}
	// A cached failure reports the same overshoot it saw when recorded,
	// shifted to the current depth, so escalation stays exact.
	if r.prune != nil {
		if offset, ok := r.prune.check(n.ID, depth); ok {
			r.stats.PrunedByCache++
			r.report(depth + offset)
			return FlagNonPromising, nil
		}
	}

	r.stats.NodeVisits++
	r.path = append(r.path, n.ID)
	n.onPath = true
	n.status = StatusOpen

	// Measure the violation of n's subtree on its own, then fold it back
	// into the caller's running minimum.
	outer := r.violation
	r.violation = noViolation
	flag, err := r.expandAndTry(n, depth)
	sub := r.violation
	r.violation = min(outer, sub)

	// Close n. A node that was not proven while open goes back to unvisited
	// so a later path can try it again.
	r.path = r.path[:len(r.path)-1]
	n.onPath = false
	if n.status == StatusOpen {
		n.status = StatusUnvisited
	}
	if err != nil {
		return flag, err
	}

	switch flag {
	case FlagNonPromising, FlagVisited:
		// Store the overshoot relative to n's depth. sub is an absolute
		// depth, and the same subtree entered deeper overshoots by the same
		// amount past that deeper entry.
		if flag == FlagNonPromising && r.prune != nil && sub != noViolation {
			r.prune.record(n.ID, depth, sub-depth)
		}
		if r.learn != nil && r.learn.update(n) {
			r.stats.HeuristicUpdates++
		}
	}
	return flag, nil
}

// expandAndTry expands n and tries its connectors best first. The first
// connector whose children are all proven becomes n's decision.
func (r *run) expandAndTry(n *Node, depth int) (Flag, error) {
	conns, err := r.g.Expand(n)
	if err != nil {
		return FlagDeadEnd, err
	}
	if len(conns) == 0 {
		r.cacheDeadEnd(n)
		return FlagDeadEnd, nil
	}

	sawNonPromising, sawVisited := false, false
	for _, c := range r.cmp.order(conns, r.excluded) {
		flag, err := r.tryConnector(c, depth)
		if err != nil {
			return flag, err
		}
		switch flag {
		case FlagGoal:
			n.Marked = c.ID
			if n.status != StatusProven {
				r.setProven(n)
			}
			return FlagGoal, nil
		case FlagTimeout:
			return FlagTimeout, nil
		case FlagNonPromising:
			sawNonPromising = true
		case FlagVisited:
			sawVisited = true
		}
	}
	switch {
	case sawNonPromising:
		return FlagNonPromising, nil
	case sawVisited:
		return FlagVisited, nil
	}
	r.cacheDeadEnd(n)
	return FlagDeadEnd, nil
}

// tryConnector searches the children of c until every one is proven or a
// full pass proves nothing new. Siblings that loop into each other are
// resolved by the repeated passes: a later sibling's proof can credit an
// ancestor that an earlier sibling only saw as open. Each productive pass
// retires at least one child, so len(children)+1 passes always suffice.
func (r *run) tryConnector(c *Connector, depth int) (Flag, error) {
	// Every proven mark made while trying c is rolled back if c fails, so a
	// failed connector leaves no proofs that depended on it.
	cp := r.checkpoint()
	pending := c.Children
	for pass := 0; pass <= len(c.Children); pass++ {
		r.stats.FixedPointPasses++
		progress, sawNonPromising := false, false
		var next []NodeID
		for _, id := range pending {
			flag, err := r.search(r.g.Node(id), depth+1)
			if err != nil {
				return flag, err
			}
			switch flag {
			case FlagGoal:
				progress = true
			case FlagDeadEnd:
				// One dead outcome sinks the whole connector.
				r.rollback(cp)
				return FlagDeadEnd, nil
			case FlagTimeout:
				return FlagTimeout, nil
			case FlagNonPromising:
				sawNonPromising = true
				next = append(next, id)
			default:
				next = append(next, id)
			}
		}
		if len(next) == 0 {
			return FlagGoal, nil
		}
		if !progress {
			r.rollback(cp)
			if sawNonPromising {
				return FlagNonPromising, nil
			}
			return FlagVisited, nil
		}
		pending = next
	}
	r.rollback(cp)
	return FlagVisited, nil
}

// credit marks every open node on the current path as proven, walking from
// the deepest node toward the root. Proven nodes on the path always form a
// segment next to the root, so the walk stops at the first one.
//
// Credit is optimistic. An ancestor is marked while some of its connectors'
// siblings are still unexplored; if one of those later fails, rollback
// removes the mark again through the trail.
func (r *run) credit() {
	for i := len(r.path) - 1; i >= 0; i-- {
		n := r.g.Node(r.path[i])
		if n.status == StatusProven {
			return
		}
		r.setProven(n)
	}
}

// setProven marks n and records its previous status on the trail.
func (r *run) setProven(n *Node) {
	r.trail = append(r.trail, trailEntry{node: n.ID, prev: n.status})
	n.status = StatusProven
}

// checkpoint returns a trail position to roll back to.
func (r *run) checkpoint() int { return len(r.trail) }

// rollback undoes every proven mark made since cp, newest first. Dead-end
// verdicts are never undone. A node restored to open that has since left the
// path is reset to unvisited.
func (r *run) rollback(cp int) {
	for i := len(r.trail) - 1; i >= cp; i-- {
		e := r.trail[i]
		n := r.g.Node(e.node)
		if n.status == StatusDisproven {
			continue
		}
		n.status = e.prev
		if n.status == StatusOpen && !n.onPath {
			n.status = StatusUnvisited
		}
	}
	r.trail = r.trail[:cp]
}

// cacheDeadEnd records a permanent refutation of n. Its heuristic becomes
// +Inf so every connector reaching it is discarded.
func (r *run) cacheDeadEnd(n *Node) {
	if n.status == StatusDisproven {
		return
	}
	n.status = StatusDisproven
	n.Heuristic = deadEndHeuristic
	r.stats.DeadEnds++
	r.obs.DeadEndCached(n.State)
}

// report lowers the current subtree's violation to v.
func (r *run) report(v int) {
	if v < r.violation {
		r.violation = v
	}
}

// excluded is the closed-set predicate handed to the comparator.
func (r *run) excluded(n *Node) bool {
	return n.status == StatusProven || n.onPath
}
