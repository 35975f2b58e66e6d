package gpio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/home-alarm-central/internal/logger"
)

// TestMemory records levels and history.
func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()

	_, ok := m.Level(25)
	require.False(t, ok)

	require.NoError(t, m.Write(25, true))
	require.NoError(t, m.Write(25, false))
	require.NoError(t, m.Write(2, true))

	high, ok := m.Level(25)
	require.True(t, ok)
	require.False(t, high)
	require.Equal(t, []Change{{25, true}, {25, false}, {2, true}}, m.History())
	require.NoError(t, m.Close())
}

// TestSysfs writes export, direction and value files under a fake root.
func TestSysfs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	// The kernel creates the pin directory on export; emulate it.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gpio26"), 0o755))

	s := NewSysfs(root)
	require.NoError(t, s.Export(26))
	require.NoError(t, s.Write(26, true))

	direction, err := os.ReadFile(filepath.Join(root, "gpio26", "direction"))
	require.NoError(t, err)
	require.Equal(t, "low", string(direction))

	value, err := os.ReadFile(filepath.Join(root, "gpio26", "value"))
	require.NoError(t, err)
	require.Equal(t, "1", string(value))

	// Pin 25 is not exported yet, so export is written, but the kernel never
	// created the directory in this fake tree.
	require.Error(t, s.Export(25))

	exported, err := os.ReadFile(filepath.Join(root, "export"))
	require.NoError(t, err)
	require.Equal(t, "25", string(exported))

	require.NoError(t, s.Close())

	unexported, err := os.ReadFile(filepath.Join(root, "unexport"))
	require.NoError(t, err)
	require.Equal(t, "25", string(unexported))
}

// TestOpen selects drivers by name.
func TestOpen(t *testing.T) {
	t.Parallel()

	pins, err := Open(context.Background(), "memory", "", []int{25, 26, 2})
	require.NoError(t, err)
	require.NoError(t, pins.Write(25, true))
	require.NoError(t, pins.Close())

	_, err = Open(context.Background(), "spi", "", nil)
	require.ErrorIs(t, err, errUnknownDriver)
}

// TestOpen_MemoryDriverWarns makes a central without real outputs visible in the logs.
func TestOpen_MemoryDriverWarns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	pins, err := Open(ctx, DriverMemory, "", []int{25})
	require.NoError(t, err)
	require.NoError(t, pins.Close())

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "memory driver")
}

// TestOpen_DefaultsToSysfs exports pins when no driver is named.
func TestOpen_DefaultsToSysfs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gpio25"), 0o755))

	pins, err := Open(ctx, "", root, []int{25})
	require.NoError(t, err)
	require.NoError(t, pins.Write(25, true))
	require.NoError(t, pins.Close())

	value, err := os.ReadFile(filepath.Join(root, "gpio25", "value"))
	require.NoError(t, err)
	require.Equal(t, "1", string(value))
	require.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}
