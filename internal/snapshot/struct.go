package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

// Field names of the Struct layout.
const (
	FieldState           = "state"
	FieldSirenActive     = "siren_active"
	FieldManualSiren     = "manual_siren"
	FieldFaultedSensors  = "faulted_sensors"
	FieldTamperTriggered = "tamper_triggered"
	FieldTamperedSensors = "tampered_sensors"
	FieldLastSeen        = "last_seen"
	FieldChangedAt       = "changed_at"
	FieldCause           = "cause"
)

// ErrInvalid is returned when a Struct does not describe a snapshot.
var ErrInvalid = errors.New("invalid snapshot")

// ToStruct converts snap to its Struct form. Times use RFC 3339 with
// nanoseconds; sensors never heard map to null.
func ToStruct(snap *domain.Snapshot) (*structpb.Struct, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalid)
	}

	lastSeen := make(map[string]any, len(snap.LastSeen))

	for name, at := range snap.LastSeen {
		if at.IsZero() {
			lastSeen[name] = nil

			continue
		}

		lastSeen[name] = at.UTC().Format(time.RFC3339Nano)
	}

	changedAt := ""
	if !snap.ChangedAt.IsZero() {
		changedAt = snap.ChangedAt.UTC().Format(time.RFC3339Nano)
	}

	s, err := structpb.NewStruct(map[string]any{
		FieldState:           snap.State.String(),
		FieldSirenActive:     snap.SirenActive,
		FieldManualSiren:     snap.ManualSiren,
		FieldFaultedSensors:  names(snap.FaultedSensors),
		FieldTamperTriggered: snap.TamperTriggered(),
		FieldTamperedSensors: names(snap.TamperedSensors),
		FieldLastSeen:        lastSeen,
		FieldChangedAt:       changedAt,
		FieldCause:           snap.Cause,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return s, nil
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (*domain.Snapshot, error) {
	fields := s.GetFields()

	state, ok := domain.ParseState(fields[FieldState].GetStringValue())
	if !ok {
		return nil, fmt.Errorf("%w: state %q", ErrInvalid, fields[FieldState].GetStringValue())
	}

	snap := &domain.Snapshot{
		State:           state,
		SirenActive:     fields[FieldSirenActive].GetBoolValue(),
		ManualSiren:     fields[FieldManualSiren].GetBoolValue(),
		FaultedSensors:  sortedNames(fields[FieldFaultedSensors]),
		TamperedSensors: sortedNames(fields[FieldTamperedSensors]),
		Cause:           fields[FieldCause].GetStringValue(),
		LastSeen:        make(map[string]time.Time),
	}

	for name, v := range fields[FieldLastSeen].GetStructValue().GetFields() {
		at, err := parseTime(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: last_seen %s: %w", ErrInvalid, name, err)
		}

		snap.LastSeen[name] = at
	}

	at, err := parseTime(fields[FieldChangedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: changed_at: %w", ErrInvalid, err)
	}

	snap.ChangedAt = at

	return snap, nil
}

func names(in []string) []any {
	out := make([]any, 0, len(in))
	for _, name := range in {
		out = append(out, name)
	}

	return out
}

// sortedNames returns nil for an empty or missing list.
func sortedNames(v *structpb.Value) []string {
	var out []string

	for _, item := range v.GetListValue().GetValues() {
		out = append(out, item.GetStringValue())
	}

	slices.Sort(out)

	return out
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
