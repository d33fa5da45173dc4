package config

import (
	_ "embed" // Required for //go:embed directives
	"fmt"
	"math"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

//go:embed solver_config_schema_v1.json
var solverConfigSchemaBytes []byte

//go:embed problem_schema_v1.json
var problemSchemaBytes []byte

// embeddedSchema compiles an embedded JSON schema on first use.
type embeddedSchema struct {
	name   string
	source []byte

	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

var (
	solverConfigSchema = &embeddedSchema{name: "solver_config_schema_v1.json", source: solverConfigSchemaBytes}
	problemSchema      = &embeddedSchema{name: "problem_schema_v1.json", source: problemSchemaBytes}
)

func (s *embeddedSchema) load() (*gojsonschema.Schema, error) {
	s.once.Do(func() {
		if len(s.source) == 0 {
			s.err = fonderrors.NewConfigError(fmt.Sprintf("embedded schema '%s' is empty", s.name), nil)
			return
		}
		s.schema, s.err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(s.source))
		if s.err != nil {
			s.err = fonderrors.NewConfigError(fmt.Sprintf("failed to compile embedded schema '%s'", s.name), s.err)
		}
	})
	return s.schema, s.err
}

// validate checks a YAML document against the schema. kind names the
// document in error messages.
func (s *embeddedSchema) validate(documentYAML []byte, kind string) error {
	schema, err := s.load()
	if err != nil {
		return err
	}

	var data interface{}
	if err := yaml.Unmarshal(documentYAML, &data); err != nil {
		return fonderrors.NewConfigError(fmt.Sprintf("failed to parse %s YAML for schema validation", kind), err)
	}
	// The validator works on JSON values, which cannot hold infinities.
	data = jsonSafe(data)

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fonderrors.NewConfigError("schema validation process failed", err)
	}
	if result.Valid() {
		return nil
	}
	msg := fmt.Sprintf("%s failed JSON schema validation:", kind)
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" || field == "" {
			field = desc.Context().String()
		}
		msg += fmt.Sprintf("\n  - Field '%s': %s", field, desc.Description())
	}
	return fonderrors.NewValidationError(msg, nil)
}

// ValidateSolverConfigSchema validates solver configuration YAML against the
// embedded v1 schema.
func ValidateSolverConfigSchema(documentYAML []byte) error {
	return solverConfigSchema.validate(documentYAML, "solver config")
}

// ValidateProblemSchema validates problem YAML against the embedded v1 schema.
func ValidateProblemSchema(documentYAML []byte) error {
	return problemSchema.validate(documentYAML, "problem")
}

// jsonSafe rewrites non-finite floats into the string spellings the schemas
// accept ("inf", "-inf", "nan").
func jsonSafe(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		switch {
		case math.IsInf(t, 1):
			return "inf"
		case math.IsInf(t, -1):
			return "-inf"
		case math.IsNaN(t):
			return "nan"
		}
		return t
	case map[string]interface{}:
		for k, item := range t {
			t[k] = jsonSafe(item)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = jsonSafe(item)
		}
		return out
	case []interface{}:
		for i, item := range t {
			t[i] = jsonSafe(item)
		}
		return t
	}
	return v
}
