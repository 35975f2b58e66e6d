package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

// Publish kinds reported to the Observer.
const (
	KindStatus    = "status"
	KindHeartbeat = "heartbeat"
	KindEvent     = "event"
)

// ErrPublishFailure wraps every broker error.
var ErrPublishFailure = errors.New("publish failure")

// Broker sends a payload to a topic. Implementations must bound the call with a timeout.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Observer is notified of every publish attempt.
type Observer interface {
	Published(kind string)
	PublishFailed(kind string)
}

// SnapshotSource builds the current snapshot on demand.
type SnapshotSource func() *domain.Snapshot

// Health tracks consecutive publish failures.
type Health struct {
	ConsecutiveFailures int
	LastError           error
	LastFailure         time.Time
	LastSuccess         time.Time
}

// OK reports whether the last attempt succeeded.
func (h Health) OK() bool {
	return h.ConsecutiveFailures == 0
}

// Options configures a Publisher.
type Options struct {
	// DeviceID is this central's identity.
	DeviceID string
	// StatusInterval is the status cadence.
	StatusInterval time.Duration
	// HeartbeatInterval is the heartbeat cadence.
	HeartbeatInterval time.Duration
	// Counters returns anomaly counters for status messages. Optional.
	Counters func() map[string]uint64
	// Observer receives publish outcomes. Optional.
	Observer Observer
	// PreviousBootState is reported in status messages when known.
	PreviousBootState string
}

// Publisher emits telemetry on its cadences. It is not safe for concurrent use.
type Publisher struct {
	// broker sends the payloads.
	broker Broker
	// deviceID identifies this central.
	deviceID string
	// topics are derived from deviceID.
	topics Topics
	// statusInterval is the status cadence.
	statusInterval time.Duration
	// heartbeatInterval is the heartbeat cadence.
	heartbeatInterval time.Duration
	// bootTime is the uptime origin and the cadence baseline.
	bootTime time.Time
	// lastStatus is the last periodic status attempt.
	lastStatus time.Time
	// lastHeartbeat is the last heartbeat attempt.
	lastHeartbeat time.Time
	// health tracks publish failures.
	health Health
	// counters supplies anomaly counters.
	counters func() map[string]uint64
	// observer receives publish outcomes.
	observer Observer
	// previousBootState is the state persisted before the last restart.
	previousBootState string
}

// NewPublisher returns a publisher whose cadences start at boot.
func NewPublisher(broker Broker, opts Options, boot time.Time) *Publisher {
	return &Publisher{
		broker:            broker,
		deviceID:          opts.DeviceID,
		topics:            TopicsFor(opts.DeviceID),
		statusInterval:    opts.StatusInterval,
		heartbeatInterval: opts.HeartbeatInterval,
		bootTime:          boot,
		lastStatus:        boot,
		lastHeartbeat:     boot,
		counters:          opts.Counters,
		observer:          opts.Observer,
		previousBootState: opts.PreviousBootState,
	}
}

// Topics returns the device topics.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Health returns the publish health.
func (p *Publisher) Health() Health {
	return p.health
}

// Tick publishes a status when the status interval elapsed and a heartbeat when
// the heartbeat interval elapsed. Both attempts advance their cadence even when
// they fail.
func (p *Publisher) Tick(ctx context.Context, now time.Time, snapshot SnapshotSource) error {
	var (
		errs []error
		snap *domain.Snapshot
	)

	if p.statusInterval > 0 && now.Sub(p.lastStatus) >= p.statusInterval {
		p.lastStatus = now
		snap = snapshot()

		if err := p.publishStatus(ctx, snap, now); err != nil {
			errs = append(errs, err)
		}
	}

	if p.heartbeatInterval > 0 && now.Sub(p.lastHeartbeat) >= p.heartbeatInterval {
		p.lastHeartbeat = now

		if snap == nil {
			snap = snapshot()
		}

		msg := HeartbeatMessage{
			MsgID:           newMsgID(),
			DeviceID:        p.deviceID,
			State:           snap.State.String(),
			TamperTriggered: snap.TamperTriggered(),
			UptimeSeconds:   int64(now.Sub(p.bootTime) / time.Second),
			Timestamp:       now.UTC(),
		}

		if err := p.send(ctx, KindHeartbeat, p.topics.Heartbeat, msg, now); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// PublishNow sends a status immediately without moving the periodic cadence.
func (p *Publisher) PublishNow(ctx context.Context, now time.Time, snap *domain.Snapshot) error {
	return p.publishStatus(ctx, snap, now)
}

// PublishEvent reports a sensor event together with the resulting state.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.SensorEvent, state domain.State) error {
	msg := EventMessage{
		MsgID:     newMsgID(),
		DeviceID:  p.deviceID,
		Sensor:    ev.Sensor.Name,
		Role:      string(ev.Sensor.Role),
		MAC:       ev.Sensor.Addr.String(),
		Kind:      ev.Kind.String(),
		Seq:       ev.Seq,
		State:     state.String(),
		Timestamp: ev.Timestamp.UTC(),
	}

	return p.send(ctx, KindEvent, p.topics.Event, msg, ev.Timestamp)
}

func (p *Publisher) publishStatus(ctx context.Context, snap *domain.Snapshot, now time.Time) error {
	return p.send(ctx, KindStatus, p.topics.Status, buildStatus(p, snap, now), now)
}

func (p *Publisher) send(ctx context.Context, kind, topic string, msg any, now time.Time) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	if err = p.broker.Publish(ctx, topic, payload); err != nil {
		p.health.ConsecutiveFailures++
		p.health.LastError = err
		p.health.LastFailure = now

		if p.observer != nil {
			p.observer.PublishFailed(kind)
		}

		return fmt.Errorf("%w: %s to %s: %w", ErrPublishFailure, kind, topic, err)
	}

	p.health.ConsecutiveFailures = 0
	p.health.LastSuccess = now

	if p.observer != nil {
		p.observer.Published(kind)
	}

	return nil
}

func (p *Publisher) brokerHealth() BrokerHealth {
	h := BrokerHealth{
		OK:                  p.health.OK(),
		ConsecutiveFailures: p.health.ConsecutiveFailures,
	}

	if p.health.LastError != nil && !h.OK {
		h.LastError = p.health.LastError.Error()
	}

	return h
}
