package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestParseFormat checks known formats and the console fallback.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, ok := ParseFormat("JSON")
	require.True(t, ok)
	require.Equal(t, FormatJSON, f)

	f, ok = ParseFormat("")
	require.True(t, ok)
	require.Equal(t, FormatConsole, f)

	f, ok = ParseFormat("xml")
	require.False(t, ok)
	require.Equal(t, FormatConsole, f)
}

// TestContextLogger ensures loggers travel through contexts with their fields.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithFormat(&buf, FormatJSON, zap.NewAtomicLevelAt(zapcore.DebugLevel))

	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "central")
	ctx = WithKV(ctx, "device_id", "home_alarm_central_001")

	InfoKV(ctx, "Armed", "origin", "mqtt")
	require.NoError(t, FromContext(ctx).Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Armed", line["message"])
	require.Equal(t, "central", line["logger"])
	require.Equal(t, "home_alarm_central_001", line["device_id"])
	require.Equal(t, "mqtt", line["origin"])
	require.Equal(t, "info", line["level"])
}

// TestFromContext_FallsBackToGlobal verifies a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
	require.Same(t, Logger(), FromContext(WithFields(context.Background(), nil)))
}

// TestSetup_RejectsUnknownValues verifies bad flag values leave the global logger alone.
func TestSetup_RejectsUnknownValues(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Setup("loud", "console"), errUnknownLevel)
	require.ErrorIs(t, Setup("info", "xml"), errUnknownFormat)
}

// TestWithLevel checks that a derived logger can raise its own threshold.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithFormat(&buf, FormatJSON, zapcore.DebugLevel).WithOptions(WithLevel(zapcore.ErrorLevel))

	l.Warn("dropped")
	require.Zero(t, buf.Len())

	l.Error("kept")
	require.Contains(t, buf.String(), "kept")
}

// TestWithLevel_NeverLowers keeps the base threshold when a lower level is asked for.
func TestWithLevel_NeverLowers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithFormat(&buf, FormatJSON, zapcore.WarnLevel).WithOptions(WithLevel(zapcore.DebugLevel))

	l.Info("dropped")
	require.Zero(t, buf.Len())

	l.With("k", "v").Warn("kept")
	require.Contains(t, buf.String(), "kept")
	require.Contains(t, buf.String(), `"k":"v"`)
}
