package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

var (
	// ErrMalformedCommand is returned for payloads that are not a valid command.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrForeignDevice is returned for messages addressed to another device.
	ErrForeignDevice = errors.New("command for another device")
)

// Message is the JSON body published on <deviceId>/command.
type Message struct {
	// Action is the verb, e.g. "arm" or "siren".
	Action string `json:"action"`
	// Value qualifies the "arm" and "siren" actions.
	Value *bool `json:"value,omitempty"`
	// DeviceID optionally repeats the addressed device.
	DeviceID string `json:"device_id,omitempty"`
	// RequestID is echoed in logs.
	RequestID string `json:"request_id,omitempty"`
}

// Receiver validates command messages for one device.
type Receiver struct {
	// deviceID is the device commands must be addressed to.
	deviceID string
	// topic is <deviceId>/command.
	topic string
}

// NewReceiver returns a receiver for deviceID.
func NewReceiver(deviceID string) *Receiver {
	return &Receiver{
		deviceID: deviceID,
		topic:    deviceID + "/command",
	}
}

// Topic returns the topic the receiver accepts.
func (r *Receiver) Topic() string {
	return r.topic
}

// OnMessage decodes a broker message into a command.
func (r *Receiver) OnMessage(topic string, payload []byte) (domain.Command, error) {
	if topic != r.topic {
		return domain.Command{}, fmt.Errorf("%w: topic %q", ErrForeignDevice, topic)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}

	if msg.DeviceID != "" && msg.DeviceID != r.deviceID {
		return domain.Command{}, fmt.Errorf("%w: device_id %q does not match %q",
			ErrMalformedCommand, msg.DeviceID, r.deviceID)
	}

	action, err := ParseMessage(msg)
	if err != nil {
		return domain.Command{}, err
	}

	return domain.Command{
		Action:    action,
		Origin:    domain.OriginMQTT,
		RequestID: msg.RequestID,
	}, nil
}

// ParseMessage resolves the action of msg, including the boolean forms
// {"action":"arm","value":false} and {"action":"siren","value":true}.
func ParseMessage(msg Message) (domain.Action, error) {
	name := strings.ToLower(strings.TrimSpace(msg.Action))

	switch name {
	case "":
		return 0, fmt.Errorf("%w: missing action", ErrMalformedCommand)
	case "siren":
		if msg.Value == nil {
			return 0, fmt.Errorf("%w: siren needs a boolean value", ErrMalformedCommand)
		}

		if *msg.Value {
			return domain.ActionSirenOn, nil
		}

		return domain.ActionSirenOff, nil
	case "arm":
		if msg.Value != nil && !*msg.Value {
			return domain.ActionDisarm, nil
		}

		return domain.ActionArm, nil
	}

	action, ok := domain.ParseAction(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown action %q", ErrMalformedCommand, msg.Action)
	}

	return action, nil
}
