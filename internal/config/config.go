package config

import (
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
)

// SolverConfig is the top-level structure of a fondsolve configuration file.
type SolverConfig struct {
	SchemaVersion string             `yaml:"schemaVersion"`
	Search        fond.SearchOptions `yaml:"search,omitempty"`
	// Timeout bounds each solve run, as a Go duration string. Empty or "0s"
	// disables it.
	Timeout string `yaml:"timeout,omitempty"`
	// GracePeriod is how long a cancelled search may take to unwind.
	GracePeriod string        `yaml:"gracePeriod,omitempty"`
	Logging     LoggingConfig `yaml:"logging,omitempty"`
	Store       StoreConfig   `yaml:"store,omitempty"`
	Batch       BatchConfig   `yaml:"batch,omitempty"`

	// FilePath is the source of the configuration, for error messages only.
	FilePath string `yaml:"-"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text, json or auto
}

// StoreConfig locates the persistent policy store. An empty Path keeps
// policies in memory for the lifetime of the process.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// BatchConfig tunes the batch command.
type BatchConfig struct {
	// Parallelism caps concurrently solved problems; 0 uses the CPU count.
	Parallelism int `yaml:"parallelism,omitempty"`
}

// DefaultSolverConfig returns the configuration used when no file is given.
// LoadSolverConfig decodes on top of these values, so a file only needs to
// name what it changes.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		SchemaVersion: "v1.0.0",
		Search:        fond.DefaultSearchOptions(),
		Logging:       LoggingConfig{Level: "info", Format: "auto"},
	}
}

// TimeoutDuration returns the parsed timeout. Invalid values are rejected at
// load time, so it returns 0 for them here.
func (c *SolverConfig) TimeoutDuration() time.Duration {
	return parseDurationOrZero(c.Timeout)
}

// GracePeriodDuration returns the parsed grace period, or 0 when unset.
func (c *SolverConfig) GracePeriodDuration() time.Duration {
	return parseDurationOrZero(c.GracePeriod)
}

func parseDurationOrZero(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// ProblemDoc is an explicit-state FOND problem: a finite set of named states
// and operators whose nondeterministic effects are listed per source state.
type ProblemDoc struct {
	SchemaVersion string   `yaml:"schemaVersion"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Initial       string   `yaml:"initial"`
	Goals         []string `yaml:"goals"`
	// DefaultH is the heuristic value of states without an explicit h.
	DefaultH  *Estimate     `yaml:"defaultH,omitempty"`
	States    []StateDoc    `yaml:"states,omitempty"`
	Operators []OperatorDoc `yaml:"operators"`

	FilePath string `yaml:"-"`
}

// StateDoc declares a state and, optionally, its heuristic estimate.
type StateDoc struct {
	Name string    `yaml:"name"`
	H    *Estimate `yaml:"h,omitempty"`
}

// OperatorDoc is a nondeterministic operator. It is applicable exactly in the
// states named by its transitions.
type OperatorDoc struct {
	Name        string          `yaml:"name"`
	Cost        *float64        `yaml:"cost,omitempty"`
	Transitions []TransitionDoc `yaml:"transitions"`
}

// CostOrDefault returns the operator cost, 1 when unset.
func (o OperatorDoc) CostOrDefault() float64 {
	if o.Cost == nil {
		return 1
	}
	return *o.Cost
}

// TransitionDoc lists the possible outcomes of an operator in one state.
type TransitionDoc struct {
	From     string   `yaml:"from"`
	Outcomes []string `yaml:"outcomes"`
}

// Estimate is a heuristic value. Besides numbers it accepts "inf" (and the
// YAML spelling ".inf") for states known to be unable to reach a goal.
type Estimate float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Estimate) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "inf", "+inf", ".inf", "+.inf", "infinity":
		*e = Estimate(math.Inf(1))
		return nil
	}
	var f float64
	if err := node.Decode(&f); err != nil {
		return err
	}
	*e = Estimate(f)
	return nil
}

// MarshalYAML implements yaml.Marshaler so that infinite values round-trip.
func (e Estimate) MarshalYAML() (interface{}, error) {
	if math.IsInf(float64(e), 1) {
		return "inf", nil
	}
	return float64(e), nil
}

// Float returns the estimate as a float64.
func (e Estimate) Float() float64 { return float64(e) }
