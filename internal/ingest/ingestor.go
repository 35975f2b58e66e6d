package ingest

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/registry"
)

// DefaultFaultMultiplier is how many heartbeat periods a sensor may miss before it is faulted.
const DefaultFaultMultiplier = 3

// ErrDuplicateFrame is returned for a retransmission of the previous frame.
var ErrDuplicateFrame = errors.New("duplicate frame")

// LivenessChange reports a sensor entering or leaving the faulted set.
type LivenessChange struct {
	Sensor  domain.SensorIdentity
	Faulted bool
}

// liveness is the per-sensor tracking record.
type liveness struct {
	// identity is the registered sensor.
	identity domain.SensorIdentity
	// lastHeard is the last reception time; zero means never.
	lastHeard time.Time
	// baseline is where the silence window starts: last reception, boot or fault reset.
	baseline time.Time
	// lastType and lastSeq identify the previous frame, valid when hasSeq is set.
	lastType byte
	lastSeq  uint32
	hasSeq   bool
	// faulted is set once the silence exceeded the threshold.
	faulted bool
	// recovered is set when a faulted sensor was heard and not reported yet.
	recovered bool
}

// Ingestor validates frames, resolves senders and tracks liveness.
// It is not safe for concurrent use.
type Ingestor struct {
	// registry resolves radio addresses to identities.
	registry *registry.Registry
	// multiplier scales each sensor's heartbeat period into its fault threshold.
	multiplier int
	// sensors holds liveness records in registry order.
	sensors []*liveness
	// byAddr indexes sensors by address.
	byAddr map[domain.HardwareAddr]*liveness
}

// New creates an ingestor whose silence windows start at start.
func New(reg *registry.Registry, multiplier int, start time.Time) *Ingestor {
	if multiplier <= 0 {
		multiplier = DefaultFaultMultiplier
	}

	in := &Ingestor{
		registry:   reg,
		multiplier: multiplier,
		byAddr:     make(map[domain.HardwareAddr]*liveness, reg.Len()),
	}

	for _, sensor := range reg.Sensors() {
		l := &liveness{
			identity: sensor,
			baseline: start,
		}

		in.sensors = append(in.sensors, l)
		in.byAddr[sensor.Addr] = l
	}

	return in
}

// OnRadioFrame turns raw bytes into a sensor event.
// It fails with ErrMalformedFrame, registry.ErrUnknownSensor or ErrDuplicateFrame.
// A duplicate still counts as proof of life.
func (in *Ingestor) OnRadioFrame(raw []byte, now time.Time) (domain.SensorEvent, error) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		return domain.SensorEvent{}, err
	}

	sensor, err := in.registry.Resolve(frame.Sender)
	if err != nil {
		return domain.SensorEvent{}, err
	}

	l := in.byAddr[sensor.Addr]
	l.lastHeard = now
	l.baseline = now

	if l.faulted {
		l.faulted = false
		l.recovered = true
	}

	if l.hasSeq && l.lastType == frame.Type && l.lastSeq == frame.Seq {
		return domain.SensorEvent{}, fmt.Errorf("%w: %s type 0x%02x seq %d",
			ErrDuplicateFrame, sensor.Name, frame.Type, frame.Seq)
	}

	l.lastType = frame.Type
	l.lastSeq = frame.Seq
	l.hasSeq = true

	kind, _ := frame.Kind()

	return domain.SensorEvent{
		Sensor:    sensor,
		Kind:      kind,
		Seq:       frame.Seq,
		Timestamp: now,
	}, nil
}

// CheckLiveness reports sensors that went silent for longer than
// multiplier × heartbeat interval, and faulted sensors heard again. Each
// change is reported once.
func (in *Ingestor) CheckLiveness(now time.Time) []LivenessChange {
	var changes []LivenessChange

	for _, l := range in.sensors {
		if l.recovered {
			l.recovered = false
			changes = append(changes, LivenessChange{Sensor: l.identity, Faulted: false})
		}

		if l.faulted {
			continue
		}

		if now.Sub(l.baseline) > in.threshold(l.identity) {
			l.faulted = true
			changes = append(changes, LivenessChange{Sensor: l.identity, Faulted: true})
		}
	}

	return changes
}

// ResetFaults gives every faulted sensor a fresh silence window starting at now.
func (in *Ingestor) ResetFaults(now time.Time) {
	for _, l := range in.sensors {
		if !l.faulted {
			continue
		}

		l.faulted = false
		l.baseline = now
	}
}

// LastSeen returns when each sensor was last heard; zero means never.
func (in *Ingestor) LastSeen() map[string]time.Time {
	seen := make(map[string]time.Time, len(in.sensors))
	for _, l := range in.sensors {
		seen[l.identity.Name] = l.lastHeard
	}

	return seen
}

// threshold returns the silence limit for a sensor.
func (in *Ingestor) threshold(sensor domain.SensorIdentity) time.Duration {
	return sensor.HeartbeatInterval * time.Duration(in.multiplier)
}
