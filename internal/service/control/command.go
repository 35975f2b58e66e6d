package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	alarmapi "github.com/oshokin/home-alarm-central/internal/api/grpc/alarm"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/ingest"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/radio"
)

// ErrRejected is returned when the central refused a command.
var ErrRejected = errors.New("command rejected")

// errUnknownFrameKind is returned for simulate kinds the radio protocol does not carry.
var errUnknownFrameKind = errors.New("frame kind must be triggered, heartbeat, tamper or tamper-restored")

// Options selects the central to talk to.
type Options struct {
	// Address is the control API address.
	Address string
	// Timeout bounds each call.
	Timeout time.Duration
	// Output receives the human-readable result.
	Output io.Writer
}

// SimulateOptions describes a fake sensor frame.
type SimulateOptions struct {
	// RadioAddr is the bridge listener of the central.
	RadioAddr string
	// MAC is the sender address.
	MAC string
	// Kind is "triggered", "heartbeat", "tamper" or "tamper-restored".
	Kind string
	// Seq is the frame sequence number.
	Seq uint32
}

// Status prints the current snapshot.
func Status(ctx context.Context, opts *Options) error {
	client, err := dial(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	snap, err := client.GetState(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(opts.Output, FormatSnapshot(snap))

	return err
}

// Send submits action and prints the outcome. value is only used by "siren".
func Send(ctx context.Context, opts *Options, action string, value *bool) error {
	ctx = logger.WithName(ctx, "alarmctl")

	client, err := dial(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	requestID := uuid.NewString()

	logger.DebugKV(ctx, "Sending command", "action", action, "request_id", requestID, "address", opts.Address)

	res, err := client.SendCommand(ctx, action, value, requestID)
	if err != nil {
		return err
	}

	if _, err = fmt.Fprint(opts.Output, FormatResult(res)); err != nil {
		return err
	}

	if !res.Accepted {
		return fmt.Errorf("%w: %s", ErrRejected, res.Reason)
	}

	return nil
}

// Simulate sends one sensor frame to the radio bridge listener of a central.
func Simulate(ctx context.Context, opts *SimulateOptions) error {
	addr, err := domain.ParseHardwareAddr(opts.MAC)
	if err != nil {
		return err
	}

	var frameType byte

	switch strings.ToLower(opts.Kind) {
	case "triggered", "trigger":
		frameType = ingest.FrameTypeTriggered
	case "heartbeat":
		frameType = ingest.FrameTypeHeartbeat
	case "tamper":
		frameType = ingest.FrameTypeTamper
	case "tamper-restored":
		frameType = ingest.FrameTypeTamperRestored
	default:
		return fmt.Errorf("%w: %q", errUnknownFrameKind, opts.Kind)
	}

	return radio.Send(ctx, opts.RadioAddr, &ingest.Frame{
		Sender: addr,
		Type:   frameType,
		Seq:    opts.Seq,
	})
}

// FormatSnapshot renders a snapshot for the terminal.
func FormatSnapshot(snap *domain.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "state:   %s (since %s, %s)\n", snap.State, formatTime(snap.ChangedAt), snap.Cause)
	fmt.Fprintf(&b, "siren:   %s\n", formatSiren(snap))

	faulted := "none"
	if len(snap.FaultedSensors) > 0 {
		faulted = strings.Join(snap.FaultedSensors, ", ")
	}

	fmt.Fprintf(&b, "faulted: %s\n", faulted)

	if len(snap.TamperedSensors) > 0 {
		fmt.Fprintf(&b, "tamper:  %s\n", strings.Join(snap.TamperedSensors, ", "))
	}

	names := make([]string, 0, len(snap.LastSeen))
	for name := range snap.LastSeen {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		fmt.Fprintf(&b, "sensor %-10s last seen %s\n", name, formatTime(snap.LastSeen[name]))
	}

	return b.String()
}

// FormatResult renders a command outcome for the terminal.
func FormatResult(res *alarmapi.Result) string {
	var b strings.Builder

	switch {
	case !res.Accepted:
		fmt.Fprintf(&b, "rejected: %s\n", res.Reason)
	case res.Changed:
		b.WriteString("accepted\n")
	default:
		b.WriteString("accepted, nothing changed\n")
	}

	if res.Snapshot != nil {
		b.WriteString(FormatSnapshot(res.Snapshot))
	}

	return b.String()
}

func formatSiren(snap *domain.Snapshot) string {
	switch {
	case snap.ManualSiren:
		return "on (manual)"
	case snap.SirenActive:
		return "sounding"
	default:
		return "off"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return t.Local().Format(time.RFC3339)
}

func dial(ctx context.Context, opts *Options) (*Client, error) {
	actor, err := DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	return Dial(ctx, opts.Address, WithCallTimeout(opts.Timeout), WithActor(actor))
}
