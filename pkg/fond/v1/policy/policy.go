// Package policy holds the output artifact of a successful solve: a mapping
// from states to the operator chosen in each of them.
package policy

import (
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
)

// NoDistance marks an entry whose distance to the goal is unknown.
const NoDistance = -1

// Entry is one decision of a policy.
type Entry struct {
	State    planning.State
	Operator planning.Operator
	// Distance is the optimistic number of decisions from State to a goal
	// when following the policy, or NoDistance.
	Distance int
}

// Policy is an insertion-ordered map from states to operators. It is built by
// the search once per successful run and read-only afterwards; it is not safe
// for concurrent mutation.
type Policy struct {
	entries []Entry
	index   map[string]int // state key -> position in entries
}

// New creates an empty policy.
func New() *Policy {
	return &Policy{index: make(map[string]int)}
}

// AddEntry records op as the decision for s. Re-adding a state replaces its
// operator and distance but keeps its original position.
func (p *Policy) AddEntry(s planning.State, op planning.Operator, distance int) {
	key := s.Key()
	if i, ok := p.index[key]; ok {
		p.entries[i] = Entry{State: s, Operator: op, Distance: distance}
		return
	}
	p.index[key] = len(p.entries)
	p.entries = append(p.entries, Entry{State: s, Operator: op, Distance: distance})
}

// RemoveEntry deletes the decision for s, if present. Order of the remaining
// entries is preserved.
func (p *Policy) RemoveEntry(s planning.State) bool {
	key := s.Key()
	i, ok := p.index[key]
	if !ok {
		return false
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	delete(p.index, key)
	for j := i; j < len(p.entries); j++ {
		p.index[p.entries[j].State.Key()] = j
	}
	return true
}

// Lookup returns the entry for s.
func (p *Policy) Lookup(s planning.State) (Entry, bool) {
	return p.LookupKey(s.Key())
}

// LookupKey returns the entry for the state with the given key.
func (p *Policy) LookupKey(key string) (Entry, bool) {
	i, ok := p.index[key]
	if !ok {
		return Entry{}, false
	}
	return p.entries[i], true
}

// Contains reports whether s has a decision.
func (p *Policy) Contains(s planning.State) bool {
	_, ok := p.index[s.Key()]
	return ok
}

// Len returns the number of decisions.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entries returns a copy of the entries in insertion order.
func (p *Policy) Entries() []Entry {
	if p == nil {
		return nil
	}
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// SetDistance updates the distance of an existing entry.
func (p *Policy) SetDistance(s planning.State, distance int) bool {
	i, ok := p.index[s.Key()]
	if !ok {
		return false
	}
	p.entries[i].Distance = distance
	return true
}
