package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	r := New(prometheus.NewRegistry())

	r.Dropped(ReasonUnknownSensor)
	r.Dropped(ReasonUnknownSensor)
	r.Dropped(ReasonQueueFull)
	r.Published("status")
	r.PublishFailed("heartbeat")

	require.InDelta(t, 2, testutil.ToFloat64(r.dropped.WithLabelValues(ReasonUnknownSensor)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.dropped.WithLabelValues(ReasonQueueFull)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.published.WithLabelValues("status")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.publishFailures.WithLabelValues("heartbeat")), 0)

	require.Equal(t, map[string]uint64{
		ReasonUnknownSensor: 2,
		ReasonQueueFull:     1,
		"publish_heartbeat": 1,
	}, r.Counts())
}

func TestRecorderState(t *testing.T) {
	t.Parallel()

	r := New(prometheus.NewRegistry())

	r.SetState(domain.StateDisarmed)
	r.Transition(domain.StateArmed)
	r.SetFaulted(2)

	require.InDelta(t, 1, testutil.ToFloat64(r.state.WithLabelValues("ARMED")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(r.state.WithLabelValues("DISARMED")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.transitions.WithLabelValues("ARMED")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(r.faulted), 0)
}

func TestServe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := New(reg)
	r.Dropped(ReasonMalformedFrame)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- Serve(ctx, addr, reg) }()

	var body string

	require.Eventually(t, func() bool {
		resp, getErr := http.Get(fmt.Sprintf("http://%s/metrics", addr)) //nolint:noctx // Test helper.
		if getErr != nil {
			return false
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.Contains(t, body, `alarm_central_dropped_total{reason="malformed_frame"} 1`)

	cancel()
	require.NoError(t, <-done)
}
