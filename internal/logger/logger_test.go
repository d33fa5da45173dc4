package logger_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/gxo-labs/fondsolve/internal/logger"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("warn", "json", &buf)

	log.Infof("hidden %d", 1)
	assert.Empty(t, buf.String())
	assert.False(t, log.IsEnabled(slog.LevelInfo))
	assert.True(t, log.IsEnabled(slog.LevelWarn))

	log.Warnf("shown %d", 2)
	rec := decodeLine(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "shown 2", rec["msg"])
}

func TestLogger_ErrorfStructuredContractViolation(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("debug", "json", &buf)

	err := fonderrors.NewContractViolationError("operator", "pick-up", "empty outcome set", nil)
	log.Errorf("search failed: %v", err)

	rec := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "ContractViolationError", rec["error_type"])
	assert.Equal(t, "operator", rec["component"])
	assert.Equal(t, "pick-up", rec["subject"])
	assert.Equal(t, "empty outcome set", rec["error"])
}

func TestLogger_ErrorfResourceExhausted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("debug", "json", &buf)

	log.Errorf("budget: %v", fmt.Errorf("wrapped: %w", fonderrors.NewResourceExhaustedError("nodes", 10, 11)))

	rec := decodeLine(t, &buf)
	assert.Equal(t, "ResourceExhaustedError", rec["error_type"])
	assert.Equal(t, "nodes", rec["resource"])
	assert.EqualValues(t, 10, rec["limit"])
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf).With("run_id", "abc")
	log.Infof("hello")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "abc", rec["run_id"])
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "text", logger.ResolveFormat("text", &bytes.Buffer{}))
	assert.Equal(t, "json", logger.ResolveFormat("auto", &bytes.Buffer{}))
}
