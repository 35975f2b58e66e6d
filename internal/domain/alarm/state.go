package alarm

import (
	"fmt"
	"strings"
)

// State is the alarm central status.
type State uint8

const (
	// StateDisarmed ignores sensor triggers.
	StateDisarmed State = iota
	// StateArmed turns a sensor trigger into an alert.
	StateArmed
	// StateTriggered sounds the siren until disarmed or acknowledged.
	StateTriggered
	// StateFault is entered when a sensor stops reporting.
	StateFault
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "DISARMED"
	case StateArmed:
		return "ARMED"
	case StateTriggered:
		return "TRIGGERED"
	case StateFault:
		return "FAULT"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState converts a wire name back to a State.
func ParseState(s string) (State, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DISARMED":
		return StateDisarmed, true
	case "ARMED":
		return StateArmed, true
	case "TRIGGERED":
		return StateTriggered, true
	case "FAULT":
		return StateFault, true
	default:
		return StateDisarmed, false
	}
}
