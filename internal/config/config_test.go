package config_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gxo-labs/fondsolve/internal/config"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleProblem = `
schemaVersion: v1.0.0
name: triangle
description: a move that may slip back
initial: A
goals: [G]
defaultH: 2
states:
  - name: A
  - name: B
    h: 1
  - name: G
    h: 0
  - name: Pit
    h: .inf
  - name: Trap
    h: inf
operators:
  - name: move
    transitions:
      - from: A
        outcomes: [B]
  - name: flip
    cost: 2
    transitions:
      - from: B
        outcomes: [A, G]
  - name: jump
    transitions:
      - from: A
        outcomes: [Pit, Trap]
`

func TestLoadProblem_Valid(t *testing.T) {
	doc, err := config.LoadProblem([]byte(triangleProblem), "triangle.yaml")
	require.NoError(t, err)

	assert.Equal(t, "triangle", doc.Name)
	assert.Equal(t, "triangle.yaml", doc.FilePath)
	assert.Equal(t, "A", doc.Initial)
	assert.Equal(t, []string{"G"}, doc.Goals)
	require.NotNil(t, doc.DefaultH)
	assert.Equal(t, 2.0, doc.DefaultH.Float())

	require.Len(t, doc.States, 5)
	assert.Nil(t, doc.States[0].H)
	assert.Equal(t, 1.0, doc.States[1].H.Float())
	assert.True(t, math.IsInf(doc.States[3].H.Float(), 1))
	assert.True(t, math.IsInf(doc.States[4].H.Float(), 1))

	require.Len(t, doc.Operators, 3)
	assert.Equal(t, 1.0, doc.Operators[0].CostOrDefault())
	assert.Equal(t, 2.0, doc.Operators[1].CostOrDefault())
	assert.Equal(t, []string{"A", "G"}, doc.Operators[1].Transitions[0].Outcomes)
}

func TestLoadProblem_ImplicitStates(t *testing.T) {
	doc, err := config.LoadProblem([]byte(`
schemaVersion: "1.2.0"
name: implicit
initial: S0
goals: [S1]
operators:
  - name: go
    transitions:
      - {from: S0, outcomes: [S1]}
`), "implicit.yaml")
	require.NoError(t, err)
	assert.Empty(t, doc.States)
	assert.Nil(t, doc.DefaultH)
}

func TestLoadProblem_Rejected(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "empty",
			yaml:    "  \n",
			wantMsg: "cannot be empty",
		},
		{
			name:    "missing goals",
			yaml:    "schemaVersion: v1.0.0\nname: p\ninitial: A\noperators: []\n",
			wantMsg: "goals",
		},
		{
			name:    "unknown field",
			yaml:    "schemaVersion: v1.0.0\nname: p\ninitial: A\ngoals: [A]\noperators: []\nextra: 1\n",
			wantMsg: "extra",
		},
		{
			name:    "empty outcome set",
			yaml:    "schemaVersion: v1.0.0\nname: p\ninitial: A\ngoals: [B]\noperators:\n  - name: o\n    transitions:\n      - {from: A, outcomes: []}\n",
			wantMsg: "outcomes",
		},
		{
			name:    "negative heuristic",
			yaml:    "schemaVersion: v1.0.0\nname: p\ninitial: A\ngoals: [A]\nstates:\n  - {name: A, h: -1}\noperators: []\n",
			wantMsg: "h",
		},
		{
			name:    "incompatible major version",
			yaml:    "schemaVersion: v2.0.0\nname: p\ninitial: A\ngoals: [A]\noperators: []\n",
			wantMsg: "not compatible",
		},
		{
			name:    "malformed version",
			yaml:    "schemaVersion: latest\nname: p\ninitial: A\ngoals: [A]\noperators: []\n",
			wantMsg: "invalid 'schemaVersion'",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadProblem([]byte(tc.yaml), "p.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoadProblem_LogicalErrorsAreCombined(t *testing.T) {
	_, err := config.LoadProblem([]byte(`
schemaVersion: v1.0.0
name: "bad name"
initial: A
goals: [G, G]
states:
  - name: A
  - name: G
operators:
  - name: o
    transitions:
      - {from: A, outcomes: [Nowhere]}
      - {from: A, outcomes: [G]}
  - name: o
    transitions:
      - {from: G, outcomes: [A]}
`), "bad.yaml")
	require.Error(t, err)

	var verr *fonderrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "5 validation error(s)")
	assert.Contains(t, verr.Message, "problem name 'bad name' is invalid")
	assert.Contains(t, verr.Message, "duplicate goal 'G'")
	assert.Contains(t, verr.Message, "state 'Nowhere' is not declared")
	assert.Contains(t, verr.Message, "duplicate transition from state 'A'")
	assert.Contains(t, verr.Message, "duplicate operator name")
}

func TestLoadProblemFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triangle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(triangleProblem), 0o600))

	doc, err := config.LoadProblemFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.FilePath)

	_, err = config.LoadProblemFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var cerr *fonderrors.ConfigError
	assert.True(t, errors.As(err, &cerr))

	_, err = config.LoadProblemFromFile("")
	assert.Error(t, err)
}

func TestLoadSolverConfig_OverridesDefaults(t *testing.T) {
	cfg, err := config.LoadSolverConfig([]byte(`
schemaVersion: v1.0.0
timeout: 30s
gracePeriod: 500ms
search:
  actionSelection: min-h-unvisited
  learning: true
  maxBound: 40
logging:
  level: debug
store:
  path: /var/lib/fondsolve
batch:
  parallelism: 3
`), "fondsolve.yaml")
	require.NoError(t, err)

	assert.Equal(t, "min-h-unvisited", cfg.Search.ActionSelection)
	assert.Equal(t, "max", cfg.Search.Aggregation)
	assert.Equal(t, "fewer-outcomes", cfg.Search.TieBreak)
	assert.True(t, cfg.Search.PolicyBound)
	assert.True(t, cfg.Search.PruneNonPromising)
	assert.True(t, cfg.Search.Learning)
	assert.Equal(t, 40, cfg.Search.MaxBound)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.GracePeriodDuration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/fondsolve", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Batch.Parallelism)
}

func TestLoadSolverConfig_Rejected(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{name: "unknown selection", yaml: "schemaVersion: v1\nsearch:\n  actionSelection: greedy\n", wantMsg: "actionSelection"},
		{name: "bad timeout", yaml: "schemaVersion: v1.0.0\ntimeout: soon\n", wantMsg: "'timeout'"},
		{name: "zero grace period", yaml: "schemaVersion: v1.0.0\ngracePeriod: 0s\n", wantMsg: "'gracePeriod' must be positive"},
		{name: "pruning without bound", yaml: "schemaVersion: v1.0.0\nsearch:\n  policyBound: false\n", wantMsg: "require policy-bound search"},
		{name: "missing version", yaml: "search:\n  learning: true\n", wantMsg: "schemaVersion"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadSolverConfig([]byte(tc.yaml), "c.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestDefaultSolverConfig_IsValid(t *testing.T) {
	assert.Empty(t, config.ValidateSolverConfig(config.DefaultSolverConfig()))
	assert.Zero(t, config.DefaultSolverConfig().TimeoutDuration())
}
