package central

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	alarmapi "github.com/oshokin/home-alarm-central/internal/api/grpc/alarm"
	"github.com/oshokin/home-alarm-central/internal/config"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
	"github.com/oshokin/home-alarm-central/internal/ingest"
	"github.com/oshokin/home-alarm-central/internal/metrics"
)

const deviceID = "home_alarm_central_001"

// recordingBroker keeps every published topic.
type recordingBroker struct {
	mu     sync.Mutex
	topics []string
}

func (b *recordingBroker) Publish(_ context.Context, topic string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topics = append(b.topics, topic)

	return nil
}

func (b *recordingBroker) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0

	for _, t := range b.topics {
		if t == topic {
			n++
		}
	}

	return n
}

// harness is a central wired to in-memory collaborators.
type harness struct {
	central *Central
	pins    *gpio.Memory
	broker  *recordingBroker
	metrics *metrics.Recorder
	cfg     *config.Config
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := &config.Config{
		DeviceID: deviceID,
		MQTT:     config.MQTT{Broker: "127.0.0.1"},
		Sensors: []config.Sensor{
			{Name: "escalera", MAC: "FF:FF:FF:FF:FF:01", Role: "door"},
			{Name: "sala", MAC: "FF:FF:FF:FF:FF:02", Role: "motion"},
		},
	}

	if mutate != nil {
		mutate(cfg)
	}

	require.NoError(t, config.Validate(cfg))

	h := &harness{
		pins:    gpio.NewMemory(),
		broker:  &recordingBroker{},
		metrics: metrics.New(prometheus.NewRegistry()),
		cfg:     cfg,
	}

	c, err := New(Deps{
		Config:  cfg,
		Pins:    h.pins,
		Broker:  h.broker,
		Metrics: h.metrics,
	})
	require.NoError(t, err)

	h.central = c

	return h
}

// start runs the loop until the test ends.
func (h *harness) start(t *testing.T) (context.Context, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- h.central.Loop(ctx) }()

	synctest.Wait()

	return ctx, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func (h *harness) level(t *testing.T, pin int) bool {
	t.Helper()

	high, ok := h.pins.Level(pin)
	require.True(t, ok, "pin %d was never written", pin)

	return high
}

func (h *harness) send(t *testing.T, mac string, frameType byte, seq uint32) {
	t.Helper()

	addr, err := domain.ParseHardwareAddr(mac)
	require.NoError(t, err)

	h.central.EnqueueFrame(ingest.EncodeFrame(&ingest.Frame{Sender: addr, Type: frameType, Seq: seq}), time.Now())
	synctest.Wait()
}

func submit(ctx context.Context, t *testing.T, c *Central, action domain.Action) *alarmapi.Result {
	t.Helper()

	res, err := c.Submit(ctx, domain.Command{Action: action, Origin: domain.OriginGRPC})
	require.NoError(t, err)

	return res
}

func TestCentral_EscaleraScenario(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		ctx, stop := h.start(t)

		require.False(t, h.level(t, h.cfg.Pins.Siren))
		require.False(t, h.level(t, h.cfg.Pins.LEDStatus))
		require.True(t, h.level(t, h.cfg.Pins.LEDVigia))

		res := submit(ctx, t, h.central, domain.ActionArm)
		require.True(t, res.Accepted)
		require.Equal(t, domain.StateArmed, res.Snapshot.State)
		require.True(t, h.level(t, h.cfg.Pins.LEDStatus))

		h.send(t, "FF:FF:FF:FF:FF:01", ingest.FrameTypeTriggered, 1)

		snap, err := h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateTriggered, snap.State)
		require.True(t, snap.SirenActive)
		require.False(t, snap.LastSeen["escalera"].IsZero())
		require.True(t, snap.LastSeen["sala"].IsZero())
		require.True(t, h.level(t, h.cfg.Pins.Siren))
		require.Equal(t, 1, h.broker.count(deviceID+"/event"))

		// Second half of the siren cycle.
		time.Sleep(h.cfg.Timing.SirenPatternOn + 100*time.Millisecond)
		synctest.Wait()
		require.False(t, h.level(t, h.cfg.Pins.Siren))

		res = submit(ctx, t, h.central, domain.ActionDisarm)
		require.True(t, res.Accepted)
		require.Equal(t, domain.StateDisarmed, res.Snapshot.State)
		require.False(t, res.Snapshot.SirenActive)
		require.False(t, h.level(t, h.cfg.Pins.Siren))

		stop()

		for _, pin := range []int{h.cfg.Pins.Siren, h.cfg.Pins.LEDVigia, h.cfg.Pins.LEDStatus} {
			require.False(t, h.level(t, pin))
		}
	})
}

func TestCentral_SalaFaultScenario(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		ctx, stop := h.start(t)
		defer stop()

		// escalera keeps checking in, sala stays silent.
		for seq := uint32(1); seq <= 6; seq++ {
			time.Sleep(30 * time.Second)
			h.send(t, "FF:FF:FF:FF:FF:01", ingest.FrameTypeHeartbeat, seq)
		}

		time.Sleep(time.Second)
		synctest.Wait()

		snap, err := h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateFault, snap.State)
		require.Equal(t, []string{"sala"}, snap.FaultedSensors)

		res := submit(ctx, t, h.central, domain.ActionArm)
		require.False(t, res.Accepted)
		require.NotEmpty(t, res.Reason)
		require.Equal(t, domain.StateFault, res.Snapshot.State)

		res = submit(ctx, t, h.central, domain.ActionClearFault)
		require.True(t, res.Accepted)
		require.Equal(t, domain.StateDisarmed, res.Snapshot.State)
		require.Empty(t, res.Snapshot.FaultedSensors)

		res = submit(ctx, t, h.central, domain.ActionArm)
		require.True(t, res.Accepted)
		require.Equal(t, domain.StateArmed, res.Snapshot.State)
	})
}

func TestCentral_TamperWhileDisarmed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		ctx, stop := h.start(t)
		defer stop()

		h.send(t, "FF:FF:FF:FF:FF:02", ingest.FrameTypeTamper, 1)

		snap, err := h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateDisarmed, snap.State)
		require.True(t, snap.SirenActive)
		require.Equal(t, []string{"sala"}, snap.TamperedSensors)
		require.True(t, h.level(t, h.cfg.Pins.Siren))
		require.Equal(t, 1, h.broker.count(deviceID+"/event"))

		h.send(t, "FF:FF:FF:FF:FF:02", ingest.FrameTypeTamperRestored, 2)

		snap, err = h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Empty(t, snap.TamperedSensors)
		require.True(t, snap.SirenActive)
		require.Equal(t, 2, h.broker.count(deviceID+"/event"))

		res := submit(ctx, t, h.central, domain.ActionAck)
		require.True(t, res.Accepted)
		require.False(t, res.Snapshot.SirenActive)
		require.False(t, h.level(t, h.cfg.Pins.Siren))
	})
}

func TestCentral_IdleTelemetryCadence(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, func(cfg *config.Config) {
			for i := range cfg.Sensors {
				cfg.Sensors[i].HeartbeatInterval = time.Hour
			}
		})
		_, stop := h.start(t)
		defer stop()

		time.Sleep(5*time.Minute + 100*time.Millisecond)
		synctest.Wait()

		require.Equal(t, 10, h.broker.count(deviceID+"/status"))
		require.Equal(t, 5, h.broker.count(deviceID+"/heartbeat"))
	})
}

func TestCentral_BrokerCommands(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		ctx, stop := h.start(t)
		defer stop()

		h.central.EnqueueMessage(deviceID+"/command", []byte(`{"action":"siren","value":true}`))
		h.central.EnqueueMessage(deviceID+"/command", []byte(`{"action":"explode"}`))
		h.central.EnqueueMessage("garage/command", []byte(`{"action":"arm"}`))
		synctest.Wait()

		snap, err := h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateDisarmed, snap.State)
		require.True(t, snap.ManualSiren)
		require.True(t, h.level(t, h.cfg.Pins.Siren))

		counts := h.metrics.Counts()
		require.Equal(t, uint64(1), counts[metrics.ReasonMalformedCommand])
		require.Equal(t, uint64(1), counts[metrics.ReasonForeignDevice])
	})
}

func TestCentral_DropsBadFrames(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		ctx, stop := h.start(t)
		defer stop()

		submit(ctx, t, h.central, domain.ActionArm)

		h.central.EnqueueFrame([]byte{0x01, 0x02}, time.Now())
		h.send(t, "AA:BB:CC:DD:EE:FF", ingest.FrameTypeTriggered, 1)
		h.send(t, "FF:FF:FF:FF:FF:02", ingest.FrameTypeHeartbeat, 9)
		h.send(t, "FF:FF:FF:FF:FF:02", ingest.FrameTypeHeartbeat, 9)

		snap, err := h.central.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateArmed, snap.State)

		counts := h.metrics.Counts()
		require.Equal(t, uint64(1), counts[metrics.ReasonMalformedFrame])
		require.Equal(t, uint64(1), counts[metrics.ReasonUnknownSensor])
		require.Equal(t, uint64(1), counts[metrics.ReasonDuplicateFrame])
	})
}

func TestCentral_QueuesNeverBlock(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	for range radioQueueSize + 1 {
		h.central.EnqueueFrame([]byte{0}, time.Now())
	}

	for range brokerQueueSize + 1 {
		h.central.EnqueueMessage(deviceID+"/command", []byte(`{}`))
	}

	for range controlQueueSize {
		h.central.control <- controlRequest{}
	}

	_, err := h.central.Submit(context.Background(), domain.Command{Action: domain.ActionArm})
	require.ErrorIs(t, err, alarmapi.ErrBusy)

	require.Equal(t, uint64(3), h.metrics.Counts()[metrics.ReasonQueueFull])
}
