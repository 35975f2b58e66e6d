package alarm

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// HardwareAddrLen is the size of a sensor radio address.
const HardwareAddrLen = 6

// HardwareAddr is the 6-byte radio address of a sensor.
type HardwareAddr [HardwareAddrLen]byte

// errInvalidHardwareAddr is returned when an address is not exactly 6 bytes long.
var errInvalidHardwareAddr = errors.New("hardware address must have 6 bytes")

// ParseHardwareAddr parses "FF:FF:FF:FF:FF:01" or "ff-ff-ff-ff-ff-01".
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	var addr HardwareAddr

	mac, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return addr, fmt.Errorf("parse hardware address %q: %w", s, err)
	}

	if len(mac) != HardwareAddrLen {
		return addr, fmt.Errorf("parse hardware address %q: %w", s, errInvalidHardwareAddr)
	}

	copy(addr[:], mac)

	return addr, nil
}

// String renders the address in upper-case colon notation.
func (a HardwareAddr) String() string {
	return strings.ToUpper(net.HardwareAddr(a[:]).String())
}

// Role is what a sensor guards.
type Role string

// Known sensor roles.
const (
	RoleDoor   Role = "door"
	RoleMotion Role = "motion"
	RoleWindow Role = "window"
	RoleOther  Role = "other"
)

// ParseRole normalises a configured role, mapping unknown values to RoleOther.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDoor, RoleMotion, RoleWindow:
		return r
	default:
		return RoleOther
	}
}

// SensorIdentity describes one configured sensor. It never changes after startup.
type SensorIdentity struct {
	// Addr is the radio address the sensor sends from.
	Addr HardwareAddr
	// Name is the logical name, e.g. "escalera".
	Name string
	// Role is what the sensor guards.
	Role Role
	// HeartbeatInterval is how often the sensor is expected to check in.
	HeartbeatInterval time.Duration
}

// EventKind distinguishes sensor reports.
type EventKind uint8

const (
	// EventTriggered reports a detection.
	EventTriggered EventKind = iota + 1
	// EventHeartbeat is a liveness ping.
	EventHeartbeat
	// EventTamper reports an opened sensor case.
	EventTamper
	// EventTamperRestored reports the case closed again.
	EventTamperRestored
)

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventTriggered:
		return "TRIGGERED"
	case EventHeartbeat:
		return "HEARTBEAT"
	case EventTamper:
		return "TAMPER"
	case EventTamperRestored:
		return "TAMPER_RESTORED"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// SensorEvent is a normalised radio report. It is consumed immediately.
type SensorEvent struct {
	Sensor    SensorIdentity
	Kind      EventKind
	Seq       uint32
	Timestamp time.Time
}
