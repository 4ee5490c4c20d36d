package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	log, err := NewLogger(Config{})
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("hello") // must not panic
}

func TestZapLogger_FieldsAndNames(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core).Named("engine").With(String("component", "cache"))

	log.Info("warmed",
		Int("fields", 3),
		Float64("quality", 0.92),
		Bool("hit", true),
		Duration("took", 150*time.Millisecond),
		Err(errors.New("boom")),
	)

	entries := observed.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "warmed", e.Message)
	assert.Equal(t, "engine", e.LoggerName)

	ctx := e.ContextMap()
	assert.Equal(t, "cache", ctx["component"])
	assert.EqualValues(t, 3, ctx["fields"])
	assert.Equal(t, 0.92, ctx["quality"])
	assert.Equal(t, true, ctx["hit"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger_DoesNothing(t *testing.T) {
	log := NewNopLogger()
	// Exercise the whole surface; nothing to assert beyond "no panic".
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error("d")
	log.With(String("k", "v")).Named("x").Info("e")
	assert.NotNil(t, log)
}
