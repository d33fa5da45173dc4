package search

import (
	"fmt"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
)

// extractPolicy walks the marked subgraph from a proven root and records one
// entry per decided state, in breadth-first order. Operators are translated
// back to the problem's original operators by name.
func extractPolicy(g *Graph, problem planning.Problem, root *Node) (*policy.Policy, error) {
	var order []*Node
	seen := map[NodeID]bool{root.ID: true}
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.IsGoal {
			continue
		}
		if n.status != StatusProven || n.Marked == NoConnector {
			return nil, fonderrors.NewContractViolationError("search", n.State.Key(),
				fmt.Sprintf("node reachable through marked connectors is %s with no decision", n.status), nil)
		}
		order = append(order, n)
		for _, id := range g.Connector(n.Marked).Children {
			if !seen[id] {
				seen[id] = true
				queue = append(queue, g.Node(id))
			}
		}
	}

	// The search may hand out grounded copies of operators; the policy must
	// carry the problem's own objects so callers can compare by identity.
	p := policy.New()
	for _, n := range order {
		c := g.Connector(n.Marked)
		op, ok := problem.OriginalOperator(c.Operator.Name())
		if !ok || op == nil {
			return nil, fonderrors.NewContractViolationError("problem", c.Operator.Name(), "operator has no original counterpart", nil)
		}
		p.AddEntry(n.State, op, policy.NoDistance)
	}

	// Distances need the whole decided set, so they are filled in afterwards.
	// States that cannot reach a goal through the marked graph keep NoDistance.
	for id, d := range policyDistances(g, order, seen) {
		p.SetDistance(g.Node(id).State, d)
	}
	return p, nil
}

// policyDistances returns, for every decided node, the fewest decisions
// needed to reach a goal when outcomes are favourable.
func policyDistances(g *Graph, decided []*Node, reached map[NodeID]bool) map[NodeID]int {
	parents := make(map[NodeID][]NodeID)
	for _, n := range decided {
		for _, id := range g.Connector(n.Marked).Children {
			parents[id] = append(parents[id], n.ID)
		}
	}
	dist := make(map[NodeID]int)
	var queue []NodeID
	for id := range reached {
		if g.Node(id).IsGoal {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, p := range parents[id] {
			if _, done := dist[p]; done {
				continue
			}
			dist[p] = distanceOf(dist, id, g) + 1
			queue = append(queue, p)
		}
	}
	return dist
}

func distanceOf(dist map[NodeID]int, id NodeID, g *Graph) int {
	if g.Node(id).IsGoal {
		return 0
	}
	return dist[id]
}
