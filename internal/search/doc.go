// Package search implements depth-first strong-cyclic search over a memoized
// AND/OR graph.
//
// Every distinct state is an OR node; every applicable operator contributes
// one AND connector covering all of its outcomes. A node is proven when one of
// its connectors has every child proven, where reaching a goal or an already
// proven node credits the whole open path above it. That credit is what lets
// loops with an escape toward the goal succeed while loops without one fail.
//
// The plain search is wrapped by iterative deepening on the number of
// decisions along a path. Two optional refinements hook into it: a per
// iteration cache of non-promising nodes and online heuristic learning for
// connector ordering.
package search
