// Package export converts policies into serializable documents and writes
// them as JSON, YAML or Graphviz dot.
package export

import (
	"fmt"
	"time"

	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
)

// Document is the serialized form of a solved policy.
type Document struct {
	Problem   string     `json:"problem" yaml:"problem"`
	RunID     string     `json:"run_id,omitempty" yaml:"runId,omitempty"`
	Algorithm string     `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"createdAt"`
	Entries   []EntryDoc `json:"entries" yaml:"entries"`
	// Edges lists, per decided state, the outcomes of its operator. It is
	// filled by NewDocument and used to draw the policy graph.
	Edges map[string][]string `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// EntryDoc is one decision. Distance is policy.NoDistance when unknown.
type EntryDoc struct {
	State    string `json:"state" yaml:"state"`
	Operator string `json:"operator" yaml:"operator"`
	Distance int    `json:"distance" yaml:"distance"`
}

// NewDocument builds a Document from a proven solve report.
func NewDocument(report *fond.SolveReport) (*Document, error) {
	if report == nil || report.Policy == nil {
		return nil, fonderrors.NewValidationError("report carries no policy", nil)
	}
	doc := FromPolicy(report.ProblemName, report.Policy)
	doc.RunID = report.RunID
	doc.Algorithm = report.Algorithm
	doc.CreatedAt = report.EndTime.UTC()
	return doc, nil
}

// FromPolicy converts pol, keeping its entry order.
func FromPolicy(problem string, pol *policy.Policy) *Document {
	entries := pol.Entries()
	doc := &Document{
		Problem:   problem,
		CreatedAt: time.Now().UTC(),
		Entries:   make([]EntryDoc, 0, len(entries)),
		Edges:     make(map[string][]string, len(entries)),
	}
	for _, e := range entries {
		key := e.State.Key()
		doc.Entries = append(doc.Entries, EntryDoc{State: key, Operator: e.Operator.Name(), Distance: e.Distance})
		for _, out := range e.Operator.Apply(e.State) {
			doc.Edges[key] = append(doc.Edges[key], out.Key())
		}
	}
	return doc
}

// ToPolicy rebuilds a policy over problem. stateOf turns a stored state key
// back into a state; operators are resolved through OriginalOperator.
func (d *Document) ToPolicy(problem planning.Problem, stateOf func(key string) planning.State) (*policy.Policy, error) {
	pol := policy.New()
	for _, e := range d.Entries {
		op, ok := problem.OriginalOperator(e.Operator)
		if !ok {
			return nil, fonderrors.NewValidationError(
				fmt.Sprintf("policy '%s' uses operator '%s' unknown to the problem", d.Problem, e.Operator), nil)
		}
		pol.AddEntry(stateOf(e.State), op, e.Distance)
	}
	return pol, nil
}
