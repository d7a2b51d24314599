package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"rtdb-bridge/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
	var _ Logger = NewNopLogger()
}

func TestLogrusLogger_JSONFieldsFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("debug", "json", &buf)

	ctx := context.WithValue(context.Background(), contextkeys.PathKey, "users/42")
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "once")
	log.WithContext(ctx).WithComponent("reference").Info("read complete")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "read complete", line["message"])
	assert.Equal(t, "users/42", line["path"])
	assert.Equal(t, "once", line["operation"])
	assert.Equal(t, "reference", line["component"])
}

func TestLogrusLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", "json", &buf)
	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.WithFields(map[string]interface{}{"key": "value"}).Warn("shown")
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewNopLogger()
	assert.Equal(t, l, OrNop(l))
	assert.NotPanics(t, func() {
		OrNop(nil).WithComponent("x").WithFields(nil).Errorf("boom %d", 1)
	})
}

func TestLogrusLogger_ZapFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", "json", &buf)
	log.Error("write failed", zap.String("path", "users/42"), zap.Int("status", 500))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "write failed", line["message"])
	assert.Equal(t, "users/42", line["path"])
	assert.Equal(t, float64(500), line["status"])
}
