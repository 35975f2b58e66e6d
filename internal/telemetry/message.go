package telemetry

import (
	"maps"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

// Topics are the MQTT topics of one device.
type Topics struct {
	Status    string
	Heartbeat string
	Event     string
	Command   string
}

// TopicsFor returns the topics of deviceID.
func TopicsFor(deviceID string) Topics {
	return Topics{
		Status:    deviceID + "/status",
		Heartbeat: deviceID + "/heartbeat",
		Event:     deviceID + "/event",
		Command:   deviceID + "/command",
	}
}

// BrokerHealth is the publish health as reported in status messages.
type BrokerHealth struct {
	OK                  bool   `json:"ok"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// StatusMessage is published on <deviceId>/status.
type StatusMessage struct {
	MsgID             string                `json:"msg_id"`
	DeviceID          string                `json:"device_id"`
	State             string                `json:"state"`
	SirenActive       bool                  `json:"siren_active"`
	ManualSiren       bool                  `json:"manual_siren"`
	LastSeen          map[string]*time.Time `json:"last_seen"`
	FaultedSensors    []string              `json:"faulted_sensors"`
	TamperTriggered   bool                  `json:"tamper_triggered"`
	TamperedSensors   []string              `json:"tampered_sensors"`
	Counters          map[string]uint64     `json:"counters"`
	Broker            BrokerHealth          `json:"broker"`
	StateChangedAt    time.Time             `json:"state_changed_at"`
	StateCause        string                `json:"state_cause"`
	UptimeSeconds     int64                 `json:"uptime_s"`
	PreviousBootState string                `json:"previous_boot_state,omitempty"`
	Timestamp         time.Time             `json:"timestamp"`
}

// HeartbeatMessage is published on <deviceId>/heartbeat.
type HeartbeatMessage struct {
	MsgID           string    `json:"msg_id"`
	DeviceID        string    `json:"device_id"`
	State           string    `json:"state"`
	TamperTriggered bool      `json:"tamper_triggered"`
	UptimeSeconds   int64     `json:"uptime_s"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventMessage is published on <deviceId>/event for sensor triggers and tamper reports.
type EventMessage struct {
	MsgID     string    `json:"msg_id"`
	DeviceID  string    `json:"device_id"`
	Sensor    string    `json:"sensor"`
	Role      string    `json:"role"`
	MAC       string    `json:"mac"`
	Kind      string    `json:"kind"`
	Seq       uint32    `json:"seq"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// newMsgID returns a fresh message id.
func newMsgID() string {
	return uuid.NewString()
}

// lastSeenField turns zero times into JSON nulls.
func lastSeenField(seen map[string]time.Time) map[string]*time.Time {
	out := make(map[string]*time.Time, len(seen))

	for name, at := range seen {
		if at.IsZero() {
			out[name] = nil

			continue
		}

		at = at.UTC()
		out[name] = &at
	}

	return out
}

// nonNil keeps empty name lists as [] on the wire.
func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}

	return names
}

func buildStatus(p *Publisher, snap *domain.Snapshot, now time.Time) StatusMessage {

	counters := map[string]uint64{}
	if p.counters != nil {
		counters = maps.Clone(p.counters())
	}

	return StatusMessage{
		MsgID:             newMsgID(),
		DeviceID:          p.deviceID,
		State:             snap.State.String(),
		SirenActive:       snap.SirenActive,
		ManualSiren:       snap.ManualSiren,
		LastSeen:          lastSeenField(snap.LastSeen),
		FaultedSensors:    nonNil(snap.FaultedSensors),
		TamperTriggered:   snap.TamperTriggered(),
		TamperedSensors:   nonNil(snap.TamperedSensors),
		Counters:          counters,
		Broker:            p.brokerHealth(),
		StateChangedAt:    snap.ChangedAt.UTC(),
		StateCause:        snap.Cause,
		UptimeSeconds:     int64(now.Sub(p.bootTime) / time.Second),
		PreviousBootState: p.previousBootState,
		Timestamp:         now.UTC(),
	}
}
