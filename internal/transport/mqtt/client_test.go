package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/home-alarm-central/internal/logger"
)

func TestOptions_BrokerURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tcp://44.221.95.191:1883", Options{Broker: "44.221.95.191", Port: 1883}.BrokerURL())
	require.Equal(t, "tcp://[::1]:1883", Options{Broker: "::1", Port: 1883}.BrokerURL())
}

func TestClient_PublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	c := New(context.Background(), Options{
		Broker:   "127.0.0.1",
		Port:     1,
		ClientID: "test",
		Timeout:  100 * time.Millisecond,
	})

	require.False(t, c.IsConnected())
	require.ErrorIs(t, c.Publish(context.Background(), "dev/status", []byte("{}")), ErrNotConnected)
}

func TestClient_ConnectTimesOut(t *testing.T) {
	t.Parallel()

	c := New(context.Background(), Options{
		Broker:   "127.0.0.1",
		Port:     1,
		ClientID: "test",
		Timeout:  100 * time.Millisecond,
	})
	t.Cleanup(c.Disconnect)

	require.ErrorIs(t, c.Connect(context.Background()), ErrTimeout)

	// Subscriptions registered while offline are kept for the next connect.
	require.NoError(t, c.Subscribe(context.Background(), "dev/command", func(string, []byte) {}))
	require.Len(t, c.subs, 1)
}

func TestPahoLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := pahoLogger{
		log:   logger.NewWithFormat(&buf, logger.FormatJSON, zapcore.DebugLevel),
		level: zapcore.WarnLevel,
	}

	l.Printf("lost %s", "connection")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "lost connection", entry["message"])
}
