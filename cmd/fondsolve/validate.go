package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gxo-labs/fondsolve/internal/config"
	"github.com/gxo-labs/fondsolve/internal/explicit"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

const (
	kindProblem = "problem"
	kindConfig  = "config"
)

func newValidateCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check problem or solver configuration files without solving",
		Args:  argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != kindProblem && kind != kindConfig {
				return usageError(fmt.Errorf("--kind must be '%s' or '%s', got '%s'", kindProblem, kindConfig, kind))
			}
			return a.runValidate(args, kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindProblem, "What the files contain: problem or config")
	return cmd
}

func (a *app) runValidate(paths []string, kind string) error {
	failed := 0
	for _, path := range paths {
		a.log.Debugf("Validating %s file: %s", kind, path)
		var err error
		if kind == kindConfig {
			_, err = config.LoadSolverConfigFromFile(path)
		} else {
			err = validateProblemFile(path)
		}
		if err != nil {
			failed++
			a.logValidationError(path, err)
			fmt.Fprintf(a.stdout, "%s: INVALID\n", path)
			continue
		}
		fmt.Fprintf(a.stdout, "%s: OK\n", path)
	}
	if failed > 0 {
		return &exitError{code: ExitFailure, err: fmt.Errorf("%d of %d file(s) failed validation", failed, len(paths))}
	}
	return nil
}

func validateProblemFile(path string) error {
	doc, err := config.LoadProblemFromFile(path)
	if err != nil {
		return err
	}
	_, err = explicit.FromDoc(doc)
	return err
}

func (a *app) logValidationError(path string, err error) {
	var validationErr *fonderrors.ValidationError
	var configErr *fonderrors.ConfigError
	switch {
	case errors.As(err, &validationErr):
		a.log.Errorf("Validation of '%s' failed:\n%s", path, validationErr.Error())
	case errors.As(err, &configErr):
		a.log.Errorf("Configuration error in '%s':\n%s", path, configErr.Error())
	default:
		a.log.Errorf("Failed to load '%s': %v", path, err)
	}
}
