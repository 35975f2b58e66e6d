package alarm

import (
	"maps"
	"slices"
	"time"
)

// Transition is the outcome of feeding one input to the Machine.
type Transition struct {
	// From is the state before the input.
	From State
	// To is the state after the input.
	To State
	// Cause names the input, e.g. "arm" or "sensor escalera triggered".
	Cause string
	// OutputsChanged is set when at least one actuator pattern changed.
	OutputsChanged bool
	// Rejected explains why a command had no effect; empty otherwise.
	Rejected string
	// Actuators is the full actuator set after the input.
	Actuators []ActuatorCommand
}

// StateChanged reports whether the input moved the machine to another state.
func (t Transition) StateChanged() bool {
	return t.From != t.To
}

// Changed reports whether the input had any visible effect.
func (t Transition) Changed() bool {
	return t.StateChanged() || t.OutputsChanged
}

// Machine holds the alarm state and derives actuator commands from it.
// TRIGGERED is only entered from ARMED on a sensor trigger.
type Machine struct {
	// timing provides siren and LED pattern durations.
	timing Timing
	// state is the current alarm state.
	state State
	// sirenLatched is set by an alert and survives a move to FAULT.
	sirenLatched bool
	// manualSiren is set by SIREN_ON and cleared by SIREN_OFF, DISARM, ACK and CLEAR_FAULT.
	manualSiren bool
	// faulted holds names of sensors currently considered silent.
	faulted map[string]struct{}
	// tampered holds names of sensors whose case is open.
	tampered map[string]struct{}
	// tamperSiren is set by a tamper report in any state and cleared by DISARM, ACK and CLEAR_FAULT.
	tamperSiren bool
	// changedAt is when the state last changed.
	changedAt time.Time
	// cause is the input that last changed the state.
	cause string
	// actuators is the current actuator set, indexed like Targets.
	actuators [len(Targets)]ActuatorCommand
}

// NewMachine returns a DISARMED machine with outputs derived at now.
func NewMachine(timing Timing, now time.Time) *Machine {
	m := &Machine{
		timing:    timing,
		state:     StateDisarmed,
		faulted:   make(map[string]struct{}),
		tampered:  make(map[string]struct{}),
		changedAt: now,
		cause:     "boot",
	}

	m.derive(now)

	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// SirenActive reports whether the siren is currently commanded to sound.
func (m *Machine) SirenActive() bool {
	return m.actuators[0].Pattern.Active()
}

// FaultedSensors returns the sorted names of silent sensors.
func (m *Machine) FaultedSensors() []string {
	return slices.Sorted(maps.Keys(m.faulted))
}

// TamperedSensors returns the sorted names of sensors with an open case.
func (m *Machine) TamperedSensors() []string {
	return slices.Sorted(maps.Keys(m.tampered))
}

// Actuators returns a copy of the current actuator set.
func (m *Machine) Actuators() []ActuatorCommand {
	return slices.Clone(m.actuators[:])
}

// Snapshot returns the externally visible state. LastSeen is left for the caller.
func (m *Machine) Snapshot() *Snapshot {
	return &Snapshot{
		State:           m.state,
		SirenActive:     m.SirenActive(),
		ManualSiren:     m.manualSiren,
		FaultedSensors:  m.FaultedSensors(),
		TamperedSensors: m.TamperedSensors(),
		ChangedAt:       m.changedAt,
		Cause:           m.cause,
	}
}

// HandleCommand applies a remote or local command.
//
//nolint:cyclop // One case per action keeps the transition table readable.
func (m *Machine) HandleCommand(cmd Command, now time.Time) Transition {
	var (
		from   = m.state
		cause  = cmd.Action.String()
		reason string
	)

	switch cmd.Action {
	case ActionArm:
		switch m.state {
		case StateDisarmed:
			m.state = StateArmed
		case StateFault:
			reason = "arming is suppressed while a sensor fault is active"
		default:
			reason = "already " + m.state.String()
		}
	case ActionDisarm, ActionAck:
		silenced := m.tamperSiren

		m.manualSiren = false
		m.tamperSiren = false

		switch m.state {
		case StateArmed:
			if cmd.Action == ActionAck {
				if !silenced {
					reason = "nothing to acknowledge"
				}
			} else {
				m.state = StateDisarmed
			}
		case StateTriggered:
			m.state = StateDisarmed
			m.sirenLatched = false
		case StateFault:
			// Silences a latched alert; leaving FAULT needs CLEAR_FAULT.
			m.sirenLatched = false
		case StateDisarmed:
			if !silenced {
				reason = "already DISARMED"
			}
		}
	case ActionClearFault:
		if m.state != StateFault {
			reason = "no active fault"

			break
		}

		m.state = StateDisarmed
		m.sirenLatched = false
		m.manualSiren = false
		m.tamperSiren = false
		clear(m.faulted)
	case ActionSirenOn:
		m.manualSiren = true
	case ActionSirenOff:
		m.manualSiren = false
	default:
		reason = "unsupported action"
	}

	return m.finish(from, cause, reason, now)
}

// HandleSensorEvent applies a sensor report. Only a trigger while ARMED moves
// to TRIGGERED. A tamper report sounds the siren in every state without
// changing it; closing the case does not silence the siren.
func (m *Machine) HandleSensorEvent(ev SensorEvent) Transition {
	from := m.state
	cause := "sensor " + ev.Sensor.Name + " " + ev.Kind.String()

	switch ev.Kind {
	case EventTriggered:
		if m.state == StateArmed {
			m.state = StateTriggered
			m.sirenLatched = true
		}
	case EventTamper:
		m.tampered[ev.Sensor.Name] = struct{}{}
		m.tamperSiren = true
	case EventTamperRestored:
		delete(m.tampered, ev.Sensor.Name)
	case EventHeartbeat:
	}

	return m.finish(from, cause, "", ev.Timestamp)
}

// HandleSensorFault marks a sensor silent and moves to FAULT from any state.
// A sounding alert keeps sounding.
func (m *Machine) HandleSensorFault(sensor string, now time.Time) Transition {
	from := m.state

	m.faulted[sensor] = struct{}{}
	m.state = StateFault

	return m.finish(from, "sensor "+sensor+" fault", "", now)
}

// HandleSensorRecovered removes a sensor from the faulted set. The state is kept.
func (m *Machine) HandleSensorRecovered(sensor string, now time.Time) Transition {
	from := m.state

	delete(m.faulted, sensor)

	return m.finish(from, "sensor "+sensor+" recovered", "", now)
}

// finish records the state change and re-derives outputs.
func (m *Machine) finish(from State, cause, reason string, now time.Time) Transition {
	if m.state != from {
		m.changedAt = now
		m.cause = cause
	}

	changed := m.derive(now)

	return Transition{
		From:           from,
		To:             m.state,
		Cause:          cause,
		OutputsChanged: changed,
		Rejected:       reason,
		Actuators:      m.Actuators(),
	}
}

// derive recomputes every actuator pattern. A target keeps its start instant
// when its pattern is unchanged, so blinking stays in phase.
func (m *Machine) derive(now time.Time) bool {
	var (
		patterns = [len(Targets)]Pattern{
			m.sirenPattern(),
			m.vigiaPattern(),
			m.statusPattern(),
		}
		changed bool
	)

	for i, target := range Targets {
		current := m.actuators[i]
		if current.Target == target && current.Pattern == patterns[i] {
			continue
		}

		m.actuators[i] = ActuatorCommand{
			Target:  target,
			Pattern: patterns[i],
			Since:   now,
		}
		changed = true
	}

	return changed
}

func (m *Machine) sirenPattern() Pattern {
	switch {
	case m.tamperSiren, m.sirenLatched && (m.state == StateTriggered || m.state == StateFault):
		return Pulse(m.timing.SirenOn, m.timing.SirenOff)
	case m.manualSiren:
		return On()
	default:
		return Off()
	}
}

func (m *Machine) statusPattern() Pattern {
	switch m.state {
	case StateArmed:
		return On()
	case StateTriggered:
		return Blink(m.timing.LEDBlink)
	case StateFault:
		return Blink(m.timing.FaultBlink())
	default:
		return Off()
	}
}

func (m *Machine) vigiaPattern() Pattern {
	if len(m.faulted) == 0 && len(m.tampered) == 0 {
		return On()
	}

	return Blink(m.timing.LEDBlink)
}
