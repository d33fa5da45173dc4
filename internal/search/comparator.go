package search

import (
	"cmp"
	"slices"
)

// comparator ranks the outgoing connectors of a node. It is re-parameterized
// on every call with the run's current closed set, because min-h-unvisited
// estimates depend on which children are already proven or open.
type comparator struct {
	g         *Graph
	selection ActionSelection
	agg       Aggregation
	tieBreak  TieBreak
}

// excludeFunc reports whether a child is left out of an estimate.
type excludeFunc func(*Node) bool

type connectorKey struct {
	c         *Connector
	primary   float64
	secondary float64
}

func newComparator(g *Graph, opts Options) *comparator {
	return &comparator{
		g:         g,
		selection: opts.ActionSelection,
		agg:       opts.Aggregation,
		tieBreak:  opts.TieBreak,
	}
}

// order returns conns sorted best first. The input slice is not modified.
// Keys are computed once per call so the ordering is a strict weak order over
// fixed values; the connector id resolves all remaining ties.
func (cp *comparator) order(conns []*Connector, excluded excludeFunc) []*Connector {
	keys := make([]connectorKey, len(conns))
	for i, c := range conns {
		keys[i] = connectorKey{
			c:         c,
			primary:   cp.primaryKey(c, excluded),
			secondary: cp.secondaryKey(c),
		}
	}
	slices.SortStableFunc(keys, func(a, b connectorKey) int {
		if r := cmp.Compare(a.primary, b.primary); r != 0 {
			return r
		}
		if r := cmp.Compare(a.secondary, b.secondary); r != 0 {
			return r
		}
		return cmp.Compare(a.c.ID, b.c.ID)
	})
	out := make([]*Connector, len(keys))
	for i, k := range keys {
		out[i] = k.c
	}
	return out
}

func (cp *comparator) primaryKey(c *Connector, excluded excludeFunc) float64 {
	switch cp.selection {
	case SelectMinH:
		return cp.g.EstimatedCost(c, cp.agg)
	case SelectMinHWeighted:
		return cp.g.EstimatedCost(c, cp.agg) * float64(len(c.Children))
	case SelectMinHUnvisited:
		values := make([]float64, 0, len(c.Children))
		for _, id := range c.Children {
			child := cp.g.Node(id)
			if excluded != nil && excluded(child) {
				continue
			}
			values = append(values, child.Heuristic)
		}
		return c.BaseCost + Aggregate(cp.agg, values)
	default:
		return 0
	}
}

func (cp *comparator) secondaryKey(c *Connector) float64 {
	switch cp.tieBreak {
	case TieBreakFewerOutcomes:
		return float64(len(c.Children))
	case TieBreakMoreOutcomes:
		return -float64(len(c.Children))
	case TieBreakSumH:
		sum := 0.0
		for _, id := range c.Children {
			sum += cp.g.Node(id).Heuristic
		}
		return sum
	default:
		return 0
	}
}
