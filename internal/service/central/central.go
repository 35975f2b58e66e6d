package central

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/home-alarm-central/internal/actuator"
	alarmapi "github.com/oshokin/home-alarm-central/internal/api/grpc/alarm"
	"github.com/oshokin/home-alarm-central/internal/command"
	"github.com/oshokin/home-alarm-central/internal/config"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
	"github.com/oshokin/home-alarm-central/internal/ingest"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/metrics"
	"github.com/oshokin/home-alarm-central/internal/registry"
	repository "github.com/oshokin/home-alarm-central/internal/repository/state"
	"github.com/oshokin/home-alarm-central/internal/telemetry"
)

// Queue capacities.
const (
	radioQueueSize   = 64
	brokerQueueSize  = 16
	controlQueueSize = 8
)

// radioFrame is a datagram waiting for the loop.
type radioFrame struct {
	raw []byte
	at  time.Time
}

// brokerMessage is a command message waiting for the loop.
type brokerMessage struct {
	topic   string
	payload []byte
}

// controlRequest is a control API call waiting for the loop. A nil cmd asks for a snapshot.
type controlRequest struct {
	cmd   *domain.Command
	reply chan *alarmapi.Result
}

// Deps are the collaborators of a Central.
type Deps struct {
	// Config is the validated configuration.
	Config *config.Config
	// Pins drives the actuators.
	Pins gpio.Pins
	// Broker publishes telemetry.
	Broker telemetry.Broker
	// Repository persists snapshots. Optional.
	Repository repository.Repository
	// Metrics counts anomalies.
	Metrics *metrics.Recorder
	// PreviousBootState is reported in status messages. Optional.
	PreviousBootState string
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Central is the scheduling loop.
type Central struct {
	// machine holds the alarm state.
	machine *domain.Machine
	// ingestor validates frames and tracks liveness.
	ingestor *ingest.Ingestor
	// actuators drives the pins.
	actuators *actuator.Controller
	// publisher emits telemetry.
	publisher *telemetry.Publisher
	// receiver validates broker commands.
	receiver *command.Receiver
	// repo persists snapshots.
	repo repository.Repository
	// metrics counts anomalies.
	metrics *metrics.Recorder
	// tick is the loop period.
	tick time.Duration
	// now is the clock.
	now func() time.Time

	radio   chan radioFrame
	broker  chan brokerMessage
	control chan controlRequest
}

// New builds a central whose timers start at the current clock reading.
func New(deps Deps) (*Central, error) {
	cfg := deps.Config

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}

	identities, err := cfg.SensorIdentities()
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(identities)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	var (
		boot   = now()
		timing = cfg.ActuatorTiming()
	)

	c := &Central{
		machine:   domain.NewMachine(timing, boot),
		ingestor:  ingest.New(reg, cfg.Timing.FaultMultiplier, boot),
		actuators: actuator.New(deps.Pins, cfg.PinMap()),
		receiver:  command.NewReceiver(cfg.DeviceID),
		repo:      deps.Repository,
		metrics:   deps.Metrics,
		tick:      actuator.TickInterval(timing),
		now:       now,
		radio:     make(chan radioFrame, radioQueueSize),
		broker:    make(chan brokerMessage, brokerQueueSize),
		control:   make(chan controlRequest, controlQueueSize),
	}

	c.publisher = telemetry.NewPublisher(deps.Broker, telemetry.Options{
		DeviceID:          cfg.DeviceID,
		StatusInterval:    cfg.Timing.StatusPublishInterval,
		HeartbeatInterval: cfg.Timing.HeartbeatInterval,
		Counters:          deps.Metrics.Counts,
		Observer:          deps.Metrics,
		PreviousBootState: deps.PreviousBootState,
	}, boot)

	return c, nil
}

// CommandTopic is the topic to subscribe for commands.
func (c *Central) CommandTopic() string {
	return c.receiver.Topic()
}

// TickInterval is the loop period.
func (c *Central) TickInterval() time.Duration {
	return c.tick
}

// EnqueueFrame hands a radio datagram to the loop without blocking.
func (c *Central) EnqueueFrame(raw []byte, at time.Time) {
	select {
	case c.radio <- radioFrame{raw: raw, at: at}:
	default:
		c.metrics.Dropped(metrics.ReasonQueueFull)
	}
}

// EnqueueMessage hands a broker message to the loop without blocking.
func (c *Central) EnqueueMessage(topic string, payload []byte) {
	select {
	case c.broker <- brokerMessage{topic: topic, payload: payload}:
	default:
		c.metrics.Dropped(metrics.ReasonQueueFull)
	}
}

// Snapshot returns the current snapshot as seen by the loop.
func (c *Central) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	res, err := c.call(ctx, controlRequest{})
	if err != nil {
		return nil, err
	}

	return res.Snapshot, nil
}

// Submit runs cmd on the loop and returns its outcome.
func (c *Central) Submit(ctx context.Context, cmd domain.Command) (*alarmapi.Result, error) {
	return c.call(ctx, controlRequest{cmd: &cmd})
}

func (c *Central) call(ctx context.Context, req controlRequest) (*alarmapi.Result, error) {
	req.reply = make(chan *alarmapi.Result, 1)

	select {
	case c.control <- req:
	default:
		c.metrics.Dropped(metrics.ReasonQueueFull)

		return nil, alarmapi.ErrBusy
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loop runs until ctx is done, then drives every output low.
func (c *Central) Loop(ctx context.Context) error {
	ctx = logger.WithName(ctx, "loop")

	now := c.now()
	c.actuators.Apply(c.machine.Actuators())
	c.driveOutputs(ctx, now)
	c.metrics.SetState(c.machine.State())

	logger.InfoKV(ctx, "Alarm central started",
		"state", c.machine.State().String(),
		"tick", c.tick.String(),
		"sensors", len(c.ingestor.LastSeen()),
		"status_topic", c.publisher.Topics().Status)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.actuators.Off(); err != nil {
				logger.ErrorKV(ctx, "Failed to drive outputs low", "error", err)

				return fmt.Errorf("drive outputs low: %w", err)
			}

			logger.Info(ctx, "Alarm central stopped")

			return nil
		case <-ticker.C:
			c.onTick(ctx, c.now())
		case f := <-c.radio:
			c.onFrame(ctx, f)
		case m := <-c.broker:
			c.onMessage(ctx, m)
		case r := <-c.control:
			c.onControl(ctx, r)
		}
	}
}

func (c *Central) onTick(ctx context.Context, now time.Time) {
	changes := c.ingestor.CheckLiveness(now)

	for _, change := range changes {
		var t domain.Transition

		if change.Faulted {
			logger.WarnKV(ctx, "Sensor silent", "sensor", change.Sensor.Name, "mac", change.Sensor.Addr.String())
			t = c.machine.HandleSensorFault(change.Sensor.Name, now)
		} else {
			logger.InfoKV(ctx, "Sensor heard again", "sensor", change.Sensor.Name)
			t = c.machine.HandleSensorRecovered(change.Sensor.Name, now)
		}

		c.apply(ctx, t, now)
	}

	if len(changes) > 0 {
		c.metrics.SetFaulted(len(c.machine.FaultedSensors()))
	}

	c.driveOutputs(ctx, now)

	if err := c.publisher.Tick(ctx, now, c.snapshot); err != nil {
		logger.WarnKV(ctx, "Periodic publish failed", "error", err)
	}
}

func (c *Central) onFrame(ctx context.Context, f radioFrame) {
	ev, err := c.ingestor.OnRadioFrame(f.raw, f.at)
	if err != nil {
		reason := frameDropReason(err)
		c.metrics.Dropped(reason)
		logger.DebugKV(ctx, "Radio frame dropped", "reason", reason, "error", err)

		return
	}

	t := c.machine.HandleSensorEvent(ev)
	c.apply(ctx, t, f.at)

	switch ev.Kind {
	case domain.EventTriggered:
		logger.InfoKV(ctx, "Sensor triggered",
			"sensor", ev.Sensor.Name,
			"seq", ev.Seq,
			"state", c.machine.State().String())
	case domain.EventTamper, domain.EventTamperRestored:
		logger.WarnKV(ctx, "Sensor tamper report",
			"sensor", ev.Sensor.Name,
			"kind", ev.Kind.String(),
			"siren_active", c.machine.SirenActive())
	default:
		return
	}

	if err = c.publisher.PublishEvent(ctx, ev, c.machine.State()); err != nil {
		logger.WarnKV(ctx, "Event publish failed", "error", err)
	}
}

func (c *Central) onMessage(ctx context.Context, m brokerMessage) {
	cmd, err := c.receiver.OnMessage(m.topic, m.payload)
	if err != nil {
		reason := metrics.ReasonMalformedCommand
		if errors.Is(err, command.ErrForeignDevice) {
			reason = metrics.ReasonForeignDevice
		}

		c.metrics.Dropped(reason)
		logger.WarnKV(ctx, "Broker command dropped", "topic", m.topic, "error", err)

		return
	}

	c.runCommand(ctx, cmd, c.now())
}

func (c *Central) onControl(ctx context.Context, r controlRequest) {
	if r.cmd == nil {
		r.reply <- &alarmapi.Result{Accepted: true, Snapshot: c.snapshot()}

		return
	}

	t := c.runCommand(ctx, *r.cmd, c.now())

	r.reply <- &alarmapi.Result{
		Accepted: t.Rejected == "",
		Changed:  t.Changed(),
		Reason:   t.Rejected,
		Snapshot: c.snapshot(),
	}
}

func (c *Central) runCommand(ctx context.Context, cmd domain.Command, now time.Time) domain.Transition {
	t := c.machine.HandleCommand(cmd, now)

	if cmd.Action == domain.ActionClearFault && t.Rejected == "" {
		c.ingestor.ResetFaults(now)
		c.metrics.SetFaulted(0)
	}

	if t.Rejected != "" {
		logger.InfoKV(ctx, "Command rejected",
			"action", cmd.Action.String(),
			"origin", string(cmd.Origin),
			"request_id", cmd.RequestID,
			"reason", t.Rejected)
	} else {
		logger.InfoKV(ctx, "Command accepted",
			"action", cmd.Action.String(),
			"origin", string(cmd.Origin),
			"request_id", cmd.RequestID)
	}

	c.apply(ctx, t, now)

	return t
}

// apply propagates a transition to the outputs, the repository and the broker.
func (c *Central) apply(ctx context.Context, t domain.Transition, now time.Time) {
	if !t.Changed() {
		return
	}

	c.actuators.Apply(t.Actuators)
	c.driveOutputs(ctx, now)

	if t.StateChanged() {
		logger.InfoKV(ctx, "State changed", "from", t.From.String(), "to", t.To.String(), "cause", t.Cause)
		c.metrics.Transition(t.To)
	}

	snap := c.snapshot()

	if c.repo != nil {
		if err := c.repo.Save(ctx, snap); err != nil {
			c.metrics.Dropped(metrics.ReasonPersist)
			logger.ErrorKV(ctx, "Failed to persist snapshot", "error", err)
		}
	}

	if err := c.publisher.PublishNow(ctx, now, snap); err != nil {
		logger.WarnKV(ctx, "Status publish failed", "error", err)
	}
}

func (c *Central) driveOutputs(ctx context.Context, now time.Time) {
	if err := c.actuators.Tick(now); err != nil {
		c.metrics.Dropped(metrics.ReasonActuatorWrite)
		logger.ErrorKV(ctx, "Failed to drive outputs", "error", err)
	}
}

func (c *Central) snapshot() *domain.Snapshot {
	snap := c.machine.Snapshot()
	snap.LastSeen = c.ingestor.LastSeen()

	return snap
}

func frameDropReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrUnknownSensor):
		return metrics.ReasonUnknownSensor
	case errors.Is(err, ingest.ErrDuplicateFrame):
		return metrics.ReasonDuplicateFrame
	default:
		return metrics.ReasonMalformedFrame
	}
}
