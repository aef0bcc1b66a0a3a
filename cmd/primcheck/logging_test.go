package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTextHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

// TestSlogManager_Success_FanOut tests that records reach all handlers.
func TestSlogManager_Success_FanOut(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer

	m := NewSlogManager()
	m.AddHandler("a", newTextHandler(&a, slog.LevelInfo))
	m.AddHandler("b", newTextHandler(&b, slog.LevelInfo))

	slog.New(m).Info("Scenario passed", "scenario", "file/123")

	assert.Contains(t, a.String(), "scenario=file/123")
	assert.Contains(t, b.String(), "scenario=file/123")
}

// TestSlogManager_Success_Levels tests that each handler filters its levels.
func TestSlogManager_Success_Levels(t *testing.T) {
	t.Parallel()

	var info, debug bytes.Buffer

	m := NewSlogManager()
	m.AddHandler("info", newTextHandler(&info, slog.LevelInfo))

	assert.False(t, m.Enabled(t.Context(), slog.LevelDebug))

	m.AddHandler("debug", newTextHandler(&debug, slog.LevelDebug))
	assert.True(t, m.Enabled(t.Context(), slog.LevelDebug))

	slog.New(m).Debug("details")

	assert.Empty(t, info.String())
	assert.Contains(t, debug.String(), "details")
}

// TestSlogManager_Success_DerivedAfterAdd tests that attributes and groups of
// derived loggers apply to handlers added later.
func TestSlogManager_Success_DerivedAfterAdd(t *testing.T) {
	t.Parallel()

	var early, late bytes.Buffer

	m := NewSlogManager()
	m.AddHandler("early", newTextHandler(&early, slog.LevelInfo))

	logger := slog.New(m).With("run", 1).WithGroup("fifo")

	m.AddHandler("late", newTextHandler(&late, slog.LevelInfo))
	logger.Info("exchanged", "bytes", 5)

	for _, out := range []string{early.String(), late.String()} {
		assert.Contains(t, out, "run=1")
		assert.Contains(t, out, "fifo.bytes=5")
	}
}

// TestSlogManager_Success_Remove tests removing and looking up handlers.
func TestSlogManager_Success_Remove(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := NewSlogManager()
	m.AddHandler("terminal", newTextHandler(&buf, slog.LevelInfo))

	_, ok := m.GetHandler("terminal")
	require.True(t, ok)

	m.RemoveHandler("terminal")

	_, ok = m.GetHandler("terminal")
	require.False(t, ok)

	require.NoError(t, m.Handle(context.Background(), slog.Record{}))
	assert.Empty(t, buf.String())
}
