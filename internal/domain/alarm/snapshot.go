package alarm

import (
	"maps"
	"slices"
	"time"
)

// Snapshot is the externally visible alarm status at a point in time.
type Snapshot struct {
	// State is the alarm state.
	State State
	// SirenActive is set while the siren is commanded to sound.
	SirenActive bool
	// ManualSiren is set while a manual siren test is running.
	ManualSiren bool
	// FaultedSensors lists silent sensors by name.
	FaultedSensors []string
	// TamperedSensors lists sensors whose case is open.
	TamperedSensors []string
	// LastSeen maps sensor names to when they were last heard; zero means never.
	LastSeen map[string]time.Time
	// ChangedAt is when the state last changed.
	ChangedAt time.Time
	// Cause is the input that last changed the state.
	Cause string
}

// Clone returns a deep copy of the snapshot to avoid leaking internal references.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.FaultedSensors = slices.Clone(s.FaultedSensors)
	cloned.TamperedSensors = slices.Clone(s.TamperedSensors)
	cloned.LastSeen = maps.Clone(s.LastSeen)

	return &cloned
}

// TamperTriggered reports whether any sensor case is open.
func (s *Snapshot) TamperTriggered() bool {
	return len(s.TamperedSensors) > 0
}
