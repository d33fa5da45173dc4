package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/fondsolve/pkg/fond/v1/planning"
	"github.com/gxo-labs/fondsolve/pkg/fond/v1/policy"
)

type state string

func (s state) Key() string    { return string(s) }
func (s state) String() string { return string(s) }

type op string

func (o op) Name() string                          { return string(o) }
func (o op) Cost() float64                         { return 1 }
func (o op) Apply(planning.State) []planning.State { return nil }

// step mutates the policy; want is the expected state order afterwards.
type step struct {
	do   func(t *testing.T, p *policy.Policy)
	want []string
}

func add(s, o string, d int) func(*testing.T, *policy.Policy) {
	return func(_ *testing.T, p *policy.Policy) { p.AddEntry(state(s), op(o), d) }
}

func remove(s string, found bool) func(*testing.T, *policy.Policy) {
	return func(t *testing.T, p *policy.Policy) {
		assert.Equal(t, found, p.RemoveEntry(state(s)), "RemoveEntry(%s)", s)
	}
}

func keys(p *policy.Policy) []string {
	var out []string
	for _, e := range p.Entries() {
		out = append(out, e.State.Key())
	}
	return out
}

// assertConsistent checks that every lookup path agrees with Entries.
func assertConsistent(t *testing.T, p *policy.Policy, want []string) {
	t.Helper()
	assert.Equal(t, want, keys(p))
	require.Equal(t, len(want), p.Len())
	for i, e := range p.Entries() {
		got, ok := p.LookupKey(want[i])
		require.True(t, ok, "LookupKey(%s)", want[i])
		assert.Equal(t, e, got)
		assert.True(t, p.Contains(state(want[i])))
		byState, ok := p.Lookup(state(want[i]))
		require.True(t, ok)
		assert.Equal(t, e, byState)
	}
}

func TestPolicy_Mutations(t *testing.T) {
	testCases := []struct {
		name  string
		steps []step
	}{
		{
			name: "insertion order",
			steps: []step{
				{do: add("A", "a", 3), want: []string{"A"}},
				{do: add("B", "b", 2), want: []string{"A", "B"}},
				{do: add("C", "c", 1), want: []string{"A", "B", "C"}},
			},
		},
		{
			name: "replace keeps position",
			steps: []step{
				{do: add("A", "a", 3), want: []string{"A"}},
				{do: add("B", "b", 2), want: []string{"A", "B"}},
				{do: add("A", "z", 7), want: []string{"A", "B"}},
			},
		},
		{
			name: "remove from the middle",
			steps: []step{
				{do: add("A", "a", 3), want: []string{"A"}},
				{do: add("B", "b", 2), want: []string{"A", "B"}},
				{do: add("C", "c", 1), want: []string{"A", "B", "C"}},
				{do: add("D", "d", 0), want: []string{"A", "B", "C", "D"}},
				{do: remove("B", true), want: []string{"A", "C", "D"}},
				{do: add("B", "b", 2), want: []string{"A", "C", "D", "B"}},
				{do: remove("A", true), want: []string{"C", "D", "B"}},
			},
		},
		{
			name: "remove missing and last",
			steps: []step{
				{do: add("A", "a", 1), want: []string{"A"}},
				{do: remove("X", false), want: []string{"A"}},
				{do: remove("A", true), want: nil},
				{do: remove("A", false), want: nil},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := policy.New()
			for _, s := range tc.steps {
				s.do(t, p)
				assertConsistent(t, p, s.want)
			}
		})
	}
}

func TestPolicy_ReplaceUpdatesOperatorAndDistance(t *testing.T) {
	p := policy.New()
	p.AddEntry(state("A"), op("a"), 3)
	p.AddEntry(state("A"), op("z"), 7)

	e, ok := p.LookupKey("A")
	require.True(t, ok)
	assert.Equal(t, "z", e.Operator.Name())
	assert.Equal(t, 7, e.Distance)
}

func TestPolicy_RemovedStateIsGone(t *testing.T) {
	p := policy.New()
	p.AddEntry(state("A"), op("a"), 1)
	p.AddEntry(state("B"), op("b"), 0)
	require.True(t, p.RemoveEntry(state("A")))

	_, ok := p.LookupKey("A")
	assert.False(t, ok)
	assert.False(t, p.Contains(state("A")))
	assert.False(t, p.SetDistance(state("A"), 4))
}

func TestPolicy_SetDistance(t *testing.T) {
	p := policy.New()
	p.AddEntry(state("A"), op("a"), policy.NoDistance)
	assert.True(t, p.SetDistance(state("A"), 5))
	e, _ := p.Lookup(state("A"))
	assert.Equal(t, 5, e.Distance)
	assert.False(t, p.SetDistance(state("B"), 1))
}

func TestPolicy_EntriesIsACopy(t *testing.T) {
	p := policy.New()
	p.AddEntry(state("A"), op("a"), 1)

	entries := p.Entries()
	entries[0] = policy.Entry{State: state("X"), Operator: op("x")}

	e, ok := p.LookupKey("A")
	require.True(t, ok)
	assert.Equal(t, "a", e.Operator.Name())
	assert.Equal(t, []string{"A"}, keys(p))
}

func TestPolicy_Nil(t *testing.T) {
	var p *policy.Policy
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Entries())
}
