package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

// SupportedSchemaVersionConstraint is the schema major version this build
// reads, for both configuration and problem files.
const SupportedSchemaVersionConstraint = "v1"

// LoadSolverConfig validates configuration YAML against the embedded schema,
// decodes it strictly on top of DefaultSolverConfig, checks the schema
// version and runs logical validation.
func LoadSolverConfig(configYAML []byte, filePathHint string) (*SolverConfig, error) {
	if len(bytes.TrimSpace(configYAML)) == 0 {
		return nil, fonderrors.NewConfigError("solver config content cannot be empty", nil)
	}
	if err := ValidateSolverConfigSchema(configYAML); err != nil {
		return nil, fonderrors.NewConfigError(fmt.Sprintf("solver config '%s' failed schema validation", filePathHint), err)
	}

	cfg := DefaultSolverConfig()
	if err := yamlUnmarshalStrict(configYAML, cfg); err != nil {
		return nil, fonderrors.NewConfigError(fmt.Sprintf("failed to parse solver config YAML '%s'", filePathHint), err)
	}
	cfg.FilePath = filePathHint

	if err := checkSchemaVersion("solver config", filePathHint, cfg.SchemaVersion); err != nil {
		return nil, err
	}
	if err := combineErrors("solver config", filePathHint, ValidateSolverConfig(cfg)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSolverConfigFromFile reads and loads a solver configuration from disk.
func LoadSolverConfigFromFile(filePath string) (*SolverConfig, error) {
	data, absPath, err := readFile("solver config", filePath)
	if err != nil {
		return nil, err
	}
	return LoadSolverConfig(data, absPath)
}

// LoadProblem validates problem YAML against the embedded schema, decodes it
// strictly, checks the schema version and runs logical validation.
func LoadProblem(problemYAML []byte, filePathHint string) (*ProblemDoc, error) {
	if len(bytes.TrimSpace(problemYAML)) == 0 {
		return nil, fonderrors.NewConfigError("problem content cannot be empty", nil)
	}
	if err := ValidateProblemSchema(problemYAML); err != nil {
		return nil, fonderrors.NewConfigError(fmt.Sprintf("problem '%s' failed schema validation", filePathHint), err)
	}

	var doc ProblemDoc
	if err := yamlUnmarshalStrict(problemYAML, &doc); err != nil {
		return nil, fonderrors.NewConfigError(fmt.Sprintf("failed to parse problem YAML '%s'", filePathHint), err)
	}
	doc.FilePath = filePathHint

	if err := checkSchemaVersion("problem", filePathHint, doc.SchemaVersion); err != nil {
		return nil, err
	}
	if err := combineErrors("problem", filePathHint, ValidateProblemStructure(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadProblemFromFile reads and loads a problem file from disk.
func LoadProblemFromFile(filePath string) (*ProblemDoc, error) {
	data, absPath, err := readFile("problem", filePath)
	if err != nil {
		return nil, err
	}
	return LoadProblem(data, absPath)
}

func readFile(kind, filePath string) ([]byte, string, error) {
	if filePath == "" {
		return nil, "", fonderrors.NewConfigError(kind+" file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, "", fonderrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, "", fonderrors.NewConfigError(fmt.Sprintf("failed to read %s file '%s'", kind, absPath), err)
	}
	return data, absPath, nil
}

// checkSchemaVersion requires a valid semantic version whose major matches
// SupportedSchemaVersionConstraint. A missing "v" prefix is tolerated.
func checkSchemaVersion(kind, filePathHint, version string) error {
	if version == "" {
		return fonderrors.NewValidationError(fmt.Sprintf("%s '%s' is missing required 'schemaVersion' field", kind, filePathHint), nil)
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fonderrors.NewValidationError(fmt.Sprintf("%s '%s' has invalid 'schemaVersion' format: '%s'", kind, filePathHint, version), nil)
	}
	if semver.Major(v) != SupportedSchemaVersionConstraint {
		return fonderrors.NewValidationError(
			fmt.Sprintf("%s '%s' schemaVersion '%s' is not compatible with requirement '%s'",
				kind, filePathHint, version, SupportedSchemaVersionConstraint),
			nil,
		)
	}
	return nil
}

// combineErrors folds logical validation errors into one ValidationError
// listing all of them.
func combineErrors(kind, filePathHint string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fonderrors.NewValidationError(
		fmt.Sprintf("%s '%s' has %d validation error(s):\n- %s", kind, filePathHint, len(msgs), strings.Join(msgs, "\n- ")),
		errs[0],
	)
}

// yamlUnmarshalStrict rejects fields unknown to the target struct.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
