package alarm

import (
	"fmt"
	"strings"
)

// Action is a remote or local command verb.
type Action uint8

const (
	// ActionArm arms a disarmed central.
	ActionArm Action = iota + 1
	// ActionDisarm disarms an armed or triggered central.
	ActionDisarm
	// ActionAck acknowledges an alert, silencing the siren.
	ActionAck
	// ActionClearFault leaves FAULT after the operator checked the sensors.
	ActionClearFault
	// ActionSirenOn sounds the siren manually without changing state.
	ActionSirenOn
	// ActionSirenOff stops a manual siren.
	ActionSirenOff
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionArm:
		return "arm"
	case ActionDisarm:
		return "disarm"
	case ActionAck:
		return "ack"
	case ActionClearFault:
		return "clear_fault"
	case ActionSirenOn:
		return "siren_on"
	case ActionSirenOff:
		return "siren_off"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// ParseAction accepts the wire names plus a few aliases used by older backends.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arm":
		return ActionArm, true
	case "disarm":
		return ActionDisarm, true
	case "ack", "acknowledge":
		return ActionAck, true
	case "clear_fault", "reset_fault", "fault_cleared":
		return ActionClearFault, true
	case "siren_on":
		return ActionSirenOn, true
	case "siren_off":
		return ActionSirenOff, true
	default:
		return 0, false
	}
}

// Origin tells where a command came from.
type Origin string

// Command origins.
const (
	OriginMQTT Origin = "mqtt"
	OriginGRPC Origin = "grpc"
)

// Command is a validated instruction for the Machine.
type Command struct {
	Action    Action
	Origin    Origin
	RequestID string
}
