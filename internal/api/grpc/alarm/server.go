package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/home-alarm-central/internal/command"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/snapshot"
)

// Request and response field names of SendCommand.
const (
	FieldAction    = "action"
	FieldValue     = "value"
	FieldRequestID = "request_id"
	FieldActor     = "actor"
	FieldAccepted  = "accepted"
	FieldChanged   = "changed"
	FieldReason    = "reason"
	FieldSnapshot  = "snapshot"
)

// ErrBusy is returned by a Service whose command queue is full.
var ErrBusy = errors.New("alarm central is busy")

// Result is the outcome of a command.
type Result struct {
	// Accepted is false when the machine rejected the command.
	Accepted bool
	// Changed is set when the command had a visible effect.
	Changed bool
	// Reason explains a rejection.
	Reason string
	// Snapshot is the state after the command.
	Snapshot *domain.Snapshot
}

// Service abstracts the scheduling loop the transport hands requests to.
type Service interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	Submit(ctx context.Context, cmd domain.Command) (*Result, error)
}

// Server implements homealarm.v1.AlarmCentral.
type Server struct {
	// service runs the requests on the loop.
	service Service
}

// NewServer wires service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetState returns the current snapshot.
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.service.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := snapshot.ToStruct(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

// SendCommand validates and submits a command.
func (s *Server) SendCommand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	fields := req.GetFields()
	msg := command.Message{
		Action:    fields[FieldAction].GetStringValue(),
		RequestID: fields[FieldRequestID].GetStringValue(),
	}

	if v, ok := fields[FieldValue]; ok {
		value := v.GetBoolValue()
		msg.Value = &value
	}

	action, err := command.ParseMessage(msg)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logger.InfoKV(ctx, "Control command received",
		"action", action.String(),
		"request_id", msg.RequestID,
		"actor", fields[FieldActor].GetStringValue())

	res, err := s.service.Submit(ctx, domain.Command{
		Action:    action,
		Origin:    domain.OriginGRPC,
		RequestID: msg.RequestID,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return ResultToStruct(res)
}

// ResultToStruct converts a command result to its wire form.
func ResultToStruct(res *Result) (*structpb.Struct, error) {
	snap, err := snapshot.ToStruct(res.Snapshot)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldAccepted: structpb.NewBoolValue(res.Accepted),
			FieldChanged:  structpb.NewBoolValue(res.Changed),
			FieldReason:   structpb.NewStringValue(res.Reason),
			FieldSnapshot: structpb.NewStructValue(snap),
		},
	}, nil
}

// ResultFromStruct is the inverse of ResultToStruct.
func ResultFromStruct(s *structpb.Struct) (*Result, error) {
	fields := s.GetFields()

	snap, err := snapshot.FromStruct(fields[FieldSnapshot].GetStructValue())
	if err != nil {
		return nil, err
	}

	return &Result{
		Accepted: fields[FieldAccepted].GetBoolValue(),
		Changed:  fields[FieldChanged].GetBoolValue(),
		Reason:   fields[FieldReason].GetStringValue(),
		Snapshot: snap,
	}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrBusy):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
