package search

import (
	"fmt"
	"math"
	"runtime/metrics"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// NodeID indexes a node in the graph arena, in creation order.
type NodeID int

// ConnectorID indexes a connector in the graph arena, in creation order.
type ConnectorID int

// NoConnector is the Marked value of a node without a decision.
const NoConnector ConnectorID = -1

// NodeStatus is the transient per-iteration state of a node.
type NodeStatus uint8

const (
	StatusUnvisited NodeStatus = iota
	StatusOpen                 // on the current recursion path, not proven yet
	StatusProven               // reaches the goal under the current marks
	StatusDisproven            // dead end; survives iteration resets
)

func (s NodeStatus) String() string {
	switch s {
	case StatusUnvisited:
		return "Unvisited"
	case StatusOpen:
		return "Open"
	case StatusProven:
		return "Proven"
	case StatusDisproven:
		return "Disproven"
	}
	return fmt.Sprintf("NodeStatus(%d)", uint8(s))
}

// memorySampleEvery controls how often the heap size is sampled against the
// memory limit, in node insertions.
const memorySampleEvery = 1024

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// Node is an OR-node of the search graph. There is exactly one Node per
// distinct state key for the lifetime of a Graph.
type Node struct {
	ID        NodeID
	State     planning.State
	Heuristic float64
	Depth     int
	IsGoal    bool
	Incoming  []ConnectorID
	Outgoing  []ConnectorID
	Marked    ConnectorID

	expanded bool
	onPath   bool
	status   NodeStatus
}

// IsDeadEnd reports whether the node is known to be unsolvable.
func (n *Node) IsDeadEnd() bool { return math.IsInf(n.Heuristic, 1) }

// Expanded reports whether the node's connectors have been generated.
func (n *Node) Expanded() bool { return n.expanded }

// Status returns the node's current search status.
func (n *Node) Status() NodeStatus { return n.status }

// Connector is an AND-hyperedge: one operator applied to Parent, with one child
// per distinct outcome.
type Connector struct {
	ID       ConnectorID
	Parent   NodeID
	Children []NodeID
	Operator planning.Operator
	BaseCost float64
}

// Limits bounds the growth of a Graph. Zero values mean unlimited.
type Limits struct {
	MaxNodes         int
	MemoryLimitBytes uint64
}

// Graph is the memoized AND/OR graph of one search run. It is an arena: nodes
// and connectors reference each other by id only. A Graph is not safe for
// concurrent use.
type Graph struct {
	problem    planning.Problem
	heuristic  planning.Heuristic
	limits     Limits
	nodes      []*Node
	connectors []*Connector
	index      map[string]NodeID
	expansions int

	memSample []metrics.Sample
}

// NewGraph creates an empty graph over problem, estimating new nodes with h.
func NewGraph(problem planning.Problem, h planning.Heuristic, limits Limits) *Graph {
	g := &Graph{
		problem:   problem,
		heuristic: h,
		limits:    limits,
		index:     make(map[string]NodeID),
	}
	if limits.MemoryLimitBytes > 0 {
		g.memSample = []metrics.Sample{{Name: heapObjectsMetric}}
	}
	return g
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Connector returns the connector with the given id.
func (g *Graph) Connector(id ConnectorID) *Connector { return g.connectors[id] }

// NumNodes returns the number of nodes created so far.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumConnectors returns the number of connectors kept so far.
func (g *Graph) NumConnectors() int { return len(g.connectors) }

// Expansions returns the number of node expansions performed.
func (g *Graph) Expansions() int { return g.expansions }

// Lookup returns the node for s, if one exists.
func (g *Graph) Lookup(s planning.State) (*Node, bool) {
	id, ok := g.index[s.Key()]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// LookupOrInsert returns the canonical node for s, creating it at the given
// depth if this is the first time the state is seen. Equal states (same Key)
// always map to the identical *Node.
func (g *Graph) LookupOrInsert(s planning.State, depth int) (*Node, error) {
	if s == nil {
		return nil, fonderrors.NewContractViolationError("problem", "", "nil state", nil)
	}
	key := s.Key()
	if id, ok := g.index[key]; ok {
		return g.nodes[id], nil
	}
	if err := g.checkBudget(); err != nil {
		return nil, err
	}

	n := &Node{
		ID:     NodeID(len(g.nodes)),
		State:  s,
		Depth:  depth,
		Marked: NoConnector,
		IsGoal: g.problem.IsGoal(s),
	}
	if !n.IsGoal {
		h := g.heuristic.Estimate(s)
		if math.IsNaN(h) || h < 0 {
			return nil, fonderrors.NewContractViolationError("heuristic", key, fmt.Sprintf("estimate %v is not a non-negative number", h), nil)
		}
		n.Heuristic = h
		if n.IsDeadEnd() {
			n.status = StatusDisproven
		}
	}
	g.nodes = append(g.nodes, n)
	g.index[key] = n.ID
	return n, nil
}

func (g *Graph) checkBudget() error {
	count := len(g.nodes)
	if g.limits.MaxNodes > 0 && count >= g.limits.MaxNodes {
		return fonderrors.NewResourceExhaustedError("nodes", uint64(g.limits.MaxNodes), uint64(count+1))
	}
	if g.memSample != nil && count%memorySampleEvery == 0 {
		metrics.Read(g.memSample)
		if g.memSample[0].Value.Kind() == metrics.KindUint64 {
			used := g.memSample[0].Value.Uint64()
			if used > g.limits.MemoryLimitBytes {
				return fonderrors.NewResourceExhaustedError("memory", g.limits.MemoryLimitBytes, used)
			}
		}
	}
	return nil
}

// Expand generates the connectors of n, one per applicable operator, and wires
// them into the graph. Connectors with a dead-end outcome are discarded, since
// no strong-cyclic policy can use them. Expanding an already expanded node
// returns its existing connectors.
func (g *Graph) Expand(n *Node) ([]*Connector, error) {
	if n.expanded {
		return g.outgoing(n), nil
	}
	ops := g.problem.ApplicableOperators(n.State)
	for _, op := range ops {
		if op == nil {
			return nil, fonderrors.NewContractViolationError("problem", n.State.Key(), "nil applicable operator", nil)
		}
		cost := op.Cost()
		if math.IsNaN(cost) || cost < 0 {
			return nil, fonderrors.NewContractViolationError("operator", op.Name(), fmt.Sprintf("cost %v is not a non-negative number", cost), nil)
		}
		outcomes := op.Apply(n.State)
		if len(outcomes) == 0 {
			return nil, fonderrors.NewContractViolationError("operator", op.Name(), fmt.Sprintf("empty outcome set in state '%s'", n.State.Key()), nil)
		}

		children := make([]NodeID, 0, len(outcomes))
		seen := make(map[NodeID]struct{}, len(outcomes))
		hopeless := false
		for _, s := range outcomes {
			child, err := g.LookupOrInsert(s, n.Depth+1)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}
			children = append(children, child.ID)
			if child.IsDeadEnd() {
				hopeless = true
			}
		}
		if hopeless {
			continue
		}

		c := &Connector{
			ID:       ConnectorID(len(g.connectors)),
			Parent:   n.ID,
			Children: children,
			Operator: op,
			BaseCost: cost,
		}
		g.connectors = append(g.connectors, c)
		n.Outgoing = append(n.Outgoing, c.ID)
		for _, id := range children {
			child := g.nodes[id]
			child.Incoming = append(child.Incoming, c.ID)
		}
	}
	n.expanded = true
	g.expansions++
	return g.outgoing(n), nil
}

func (g *Graph) outgoing(n *Node) []*Connector {
	out := make([]*Connector, len(n.Outgoing))
	for i, id := range n.Outgoing {
		out[i] = g.connectors[id]
	}
	return out
}

// EstimatedCost is the base cost of c plus the aggregate of its children's
// heuristic values.
func (g *Graph) EstimatedCost(c *Connector, agg Aggregation) float64 {
	values := make([]float64, len(c.Children))
	for i, id := range c.Children {
		values[i] = g.nodes[id].Heuristic
	}
	return c.BaseCost + Aggregate(agg, values)
}

// resetIteration clears the transient search state before a new iteration.
// Dead-end verdicts are absolute and survive.
func (g *Graph) resetIteration() {
	for _, n := range g.nodes {
		n.onPath = false
		n.Marked = NoConnector
		if n.status != StatusDisproven {
			n.status = StatusUnvisited
		}
	}
}

// Aggregate folds child heuristic values with the given function. It returns
// 0 for an empty slice.
func Aggregate(agg Aggregation, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch agg {
	case AggregateMin:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	case AggregateMean, AggregateSum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		if agg == AggregateMean {
			return sum / float64(len(values))
		}
		return sum
	default:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	}
}
