package alarm

import (
	"fmt"
	"time"
)

// Target is an output driven by the central.
type Target uint8

const (
	// TargetSiren is the siren relay.
	TargetSiren Target = iota + 1
	// TargetLEDVigia is the vigil LED showing sensor liveness.
	TargetLEDVigia
	// TargetLEDStatus is the LED showing the alarm state.
	TargetLEDStatus
)

// Targets lists every output in a fixed order.
//
//nolint:gochecknoglobals // Read-only lookup table.
var Targets = [...]Target{TargetSiren, TargetLEDVigia, TargetLEDStatus}

// String returns the wire name of the target.
func (t Target) String() string {
	switch t {
	case TargetSiren:
		return "SIREN"
	case TargetLEDVigia:
		return "LED_VIGIA"
	case TargetLEDStatus:
		return "LED_STATUS"
	default:
		return fmt.Sprintf("Target(%d)", uint8(t))
	}
}

// PatternKind is the shape of an output over time.
type PatternKind uint8

const (
	// PatternOff keeps the output low.
	PatternOff PatternKind = iota
	// PatternOn keeps the output high.
	PatternOn
	// PatternBlink toggles with equal on and off halves.
	PatternBlink
	// PatternPulse is high for On, then low for Off.
	PatternPulse
)

// String returns the wire name of the kind.
func (k PatternKind) String() string {
	switch k {
	case PatternOff:
		return "OFF"
	case PatternOn:
		return "ON"
	case PatternBlink:
		return "BLINK"
	case PatternPulse:
		return "PULSE"
	default:
		return fmt.Sprintf("PatternKind(%d)", uint8(k))
	}
}

// Pattern describes an output level as a function of elapsed time.
type Pattern struct {
	Kind PatternKind
	On   time.Duration
	Off  time.Duration
}

// Off returns a constantly low pattern.
func Off() Pattern { return Pattern{Kind: PatternOff} }

// On returns a constantly high pattern.
func On() Pattern { return Pattern{Kind: PatternOn} }

// Blink toggles every interval, so a full cycle lasts two intervals.
func Blink(interval time.Duration) Pattern {
	return Pattern{Kind: PatternBlink, On: interval, Off: interval}
}

// Pulse is high for on, then low for off.
func Pulse(on, off time.Duration) Pattern {
	return Pattern{Kind: PatternPulse, On: on, Off: off}
}

// Period returns the cycle length, zero for steady patterns.
func (p Pattern) Period() time.Duration {
	switch p.Kind {
	case PatternBlink, PatternPulse:
		return p.On + p.Off
	default:
		return 0
	}
}

// Active reports whether the pattern ever drives the output high.
func (p Pattern) Active() bool {
	switch p.Kind {
	case PatternOn:
		return true
	case PatternBlink, PatternPulse:
		return p.On > 0
	default:
		return false
	}
}

// LevelAt returns the output level after elapsed time since the pattern started.
// It only depends on elapsed modulo the period, never on call history.
func (p Pattern) LevelAt(elapsed time.Duration) bool {
	switch p.Kind {
	case PatternOn:
		return true
	case PatternBlink, PatternPulse:
		period := p.Period()
		if period <= 0 {
			return false
		}

		phase := elapsed % period
		if phase < 0 {
			phase += period
		}

		return phase < p.On
	default:
		return false
	}
}

// String renders the pattern for logs.
func (p Pattern) String() string {
	switch p.Kind {
	case PatternBlink, PatternPulse:
		return fmt.Sprintf("%s(%s/%s)", p.Kind, p.On, p.Off)
	default:
		return p.Kind.String()
	}
}

// ActuatorCommand binds a pattern to a target from a start instant.
type ActuatorCommand struct {
	Target  Target
	Pattern Pattern
	Since   time.Time
}

// Level returns the output level of the command at now.
func (c ActuatorCommand) Level(now time.Time) bool {
	return c.Pattern.LevelAt(now.Sub(c.Since))
}

// Timing carries the pattern durations used to derive actuator commands.
type Timing struct {
	SirenOn  time.Duration
	SirenOff time.Duration
	LEDBlink time.Duration
}

// FaultBlink is the status LED blink interval while in FAULT.
func (t Timing) FaultBlink() time.Duration {
	return t.LEDBlink / 2
}
