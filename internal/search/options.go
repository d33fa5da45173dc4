package search

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

// Flag is the outcome of one recursive search call. It is a control value and
// is never stored on a node.
type Flag uint8

const (
	FlagGoal Flag = iota
	FlagDeadEnd
	FlagVisited
	FlagNonPromising
	FlagTimeout
	FlagNoPolicy
)

func (f Flag) String() string {
	switch f {
	case FlagGoal:
		return "GOAL"
	case FlagDeadEnd:
		return "DEAD_END"
	case FlagVisited:
		return "VISITED"
	case FlagNonPromising:
		return "NON_PROMISING"
	case FlagTimeout:
		return "TIMEOUT"
	case FlagNoPolicy:
		return "NO_POLICY"
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// ActionSelection names the rule ranking a node's connectors.
type ActionSelection string

const (
	// SelectNone keeps expansion order.
	SelectNone ActionSelection = "none"
	// SelectMinH prefers the lowest estimated cost.
	SelectMinH ActionSelection = "min-h"
	// SelectMinHWeighted multiplies the estimated cost by the outcome count.
	SelectMinHWeighted ActionSelection = "min-h-weighted"
	// SelectMinHUnvisited ignores children already proven or open on the
	// current path when estimating.
	SelectMinHUnvisited ActionSelection = "min-h-unvisited"
)

// Aggregation folds the heuristic values of a connector's children.
type Aggregation string

const (
	AggregateMin  Aggregation = "min"
	AggregateMax  Aggregation = "max"
	AggregateMean Aggregation = "mean"
	AggregateSum  Aggregation = "sum"
)

// TieBreak orders connectors with equal primary keys.
type TieBreak string

const (
	TieBreakNone          TieBreak = "none"
	TieBreakFewerOutcomes TieBreak = "fewer-outcomes"
	TieBreakMoreOutcomes  TieBreak = "more-outcomes"
	TieBreakSumH          TieBreak = "sum-h"
)

// Options configures a Searcher.
type Options struct {
	ActionSelection ActionSelection `validate:"required,oneof=none min-h min-h-weighted min-h-unvisited"`
	Aggregation     Aggregation     `validate:"required,oneof=min max mean sum"`
	TieBreak        TieBreak        `validate:"required,oneof=none fewer-outcomes more-outcomes sum-h"`

	// PolicyBound enables iterative deepening on policy size.
	PolicyBound bool
	// PruneNonPromising remembers nodes that failed under the current bound.
	// Only meaningful with PolicyBound.
	PruneNonPromising bool
	// Learning raises node heuristics after failed attempts. Only meaningful
	// with PolicyBound.
	Learning bool

	MaxNodes         int    `validate:"gte=0"`
	MemoryLimitBytes uint64 `validate:"gte=0"`
	// MaxBound is the largest policy bound tried; 0 means no limit.
	MaxBound int `validate:"gte=0"`
	// MaxIterations caps the outer iterations; 0 means no limit.
	MaxIterations int `validate:"gte=0"`
}

// DefaultOptions returns the configuration used when nothing is specified:
// iterative deepening with non-promising pruning, min-h selection over the
// worst-case outcome.
func DefaultOptions() Options {
	return Options{
		ActionSelection:   SelectMinH,
		Aggregation:       AggregateMax,
		TieBreak:          TieBreakFewerOutcomes,
		PolicyBound:       true,
		PruneNonPromising: true,
	}
}

// FromAPI converts the public option set. The result still needs Validate.
func FromAPI(o fond.SearchOptions) Options {
	return Options{
		ActionSelection:   ActionSelection(strings.ToLower(o.ActionSelection)),
		Aggregation:       Aggregation(strings.ToLower(o.Aggregation)),
		TieBreak:          TieBreak(strings.ToLower(o.TieBreak)),
		PolicyBound:       o.PolicyBound,
		PruneNonPromising: o.PruneNonPromising,
		Learning:          o.Learning,
		MaxNodes:          o.MaxNodes,
		MemoryLimitBytes:  o.MemoryLimitBytes,
		MaxBound:          o.MaxBound,
		MaxIterations:     o.MaxIterations,
	}
}

var optionsValidate = validator.New()

// Validate checks option values and cross-field consistency.
func (o Options) Validate() error {
	if err := optionsValidate.Struct(o); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: invalid value '%v' (%s)", fe.Field(), fe.Value(), fe.Tag()))
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return fonderrors.NewValidationError("invalid search options: "+strings.Join(msgs, "; "), err)
	}
	if !o.PolicyBound && (o.PruneNonPromising || o.Learning) {
		return fonderrors.NewValidationError("non-promising pruning and learning require policy-bound search", nil)
	}
	return nil
}

// Algorithm returns a short name for the configured search variant.
func (o Options) Algorithm() string {
	if !o.PolicyBound {
		return "dfs"
	}
	name := "idfs"
	if o.PruneNonPromising {
		name += "-pruning"
	}
	if o.Learning {
		name += "-learning"
	}
	return name
}

// Stats are run-scoped diagnostic counters.
type Stats struct {
	NodesCreated     int
	Connectors       int
	Expansions       int
	Calls            int
	NodeVisits       int
	DeadEnds         int
	PrunedByCache    int
	HeuristicUpdates int
	Iterations       int
	FinalBound       int
	FixedPointPasses int
	BoundViolations  int
}
