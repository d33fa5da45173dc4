package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/gxo-labs/fondsolve/internal/search"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

// problemNameRegex restricts problem names to something usable as a store key
// and a file name.
var problemNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidateSolverConfig performs logical checks the schema cannot express.
func ValidateSolverConfig(cfg *SolverConfig) []error {
	var errs []error

	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err != nil {
			errs = append(errs, fonderrors.NewValidationError(fmt.Sprintf("invalid format for 'timeout': %v", err), nil))
		} else if d < 0 {
			errs = append(errs, fonderrors.NewValidationError("'timeout' cannot be negative", nil))
		}
	}
	if cfg.GracePeriod != "" {
		if d, err := time.ParseDuration(cfg.GracePeriod); err != nil {
			errs = append(errs, fonderrors.NewValidationError(fmt.Sprintf("invalid format for 'gracePeriod': %v", err), nil))
		} else if d <= 0 {
			errs = append(errs, fonderrors.NewValidationError("'gracePeriod' must be positive", nil))
		}
	}
	if err := search.FromAPI(cfg.Search).Validate(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ValidateProblemStructure checks names, references and operator tables. When
// the document declares a states list, every state mentioned anywhere else
// must appear in it.
func ValidateProblemStructure(doc *ProblemDoc) []error {
	var errs []error
	addf := func(format string, args ...interface{}) {
		errs = append(errs, fonderrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	if !problemNameRegex.MatchString(doc.Name) {
		addf("problem name '%s' is invalid; use letters, digits, '_', '.' and '-'", doc.Name)
	}
	if doc.DefaultH != nil && badEstimate(*doc.DefaultH) {
		addf("'defaultH' must be non-negative or inf, got %v", float64(*doc.DefaultH))
	}

	declared := make(map[string]bool, len(doc.States))
	for i, st := range doc.States {
		if !cleanName(st.Name) {
			addf("states[%d]: name '%s' must be non-empty without surrounding whitespace", i, st.Name)
			continue
		}
		if declared[st.Name] {
			addf("states[%d]: duplicate state '%s'", i, st.Name)
		}
		declared[st.Name] = true
		if st.H != nil && badEstimate(*st.H) {
			addf("state '%s': 'h' must be non-negative or inf, got %v", st.Name, float64(*st.H))
		}
	}
	checkRef := func(where, name string) {
		if !cleanName(name) {
			addf("%s: state name '%s' must be non-empty without surrounding whitespace", where, name)
			return
		}
		if len(declared) > 0 && !declared[name] {
			addf("%s: state '%s' is not declared in 'states'", where, name)
		}
	}

	checkRef("initial", doc.Initial)
	seenGoal := make(map[string]bool, len(doc.Goals))
	for i, g := range doc.Goals {
		checkRef(fmt.Sprintf("goals[%d]", i), g)
		if seenGoal[g] {
			addf("goals[%d]: duplicate goal '%s'", i, g)
		}
		seenGoal[g] = true
	}

	opNames := make(map[string]bool, len(doc.Operators))
	for i, op := range doc.Operators {
		opDisplay := fmt.Sprintf("operators[%d]", i)
		if op.Name != "" {
			opDisplay = fmt.Sprintf("operator '%s'", op.Name)
		}
		if !cleanName(op.Name) {
			addf("%s: name must be non-empty without surrounding whitespace", opDisplay)
		} else if opNames[op.Name] {
			addf("%s: duplicate operator name", opDisplay)
		}
		opNames[op.Name] = true

		if c := op.CostOrDefault(); c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			addf("%s: 'cost' must be a finite non-negative number", opDisplay)
		}
		if len(op.Transitions) == 0 {
			addf("%s: at least one transition is required", opDisplay)
		}
		sources := make(map[string]bool, len(op.Transitions))
		for j, tr := range op.Transitions {
			where := fmt.Sprintf("%s transitions[%d]", opDisplay, j)
			checkRef(where+" from", tr.From)
			if sources[tr.From] {
				addf("%s: duplicate transition from state '%s'", where, tr.From)
			}
			sources[tr.From] = true
			if len(tr.Outcomes) == 0 {
				addf("%s: outcome set cannot be empty", where)
			}
			for k, out := range tr.Outcomes {
				checkRef(fmt.Sprintf("%s outcomes[%d]", where, k), out)
			}
		}
	}
	return errs
}

func cleanName(name string) bool {
	return name != "" && strings.TrimSpace(name) == name
}

func badEstimate(e Estimate) bool {
	f := float64(e)
	return math.IsNaN(f) || f < 0
}
