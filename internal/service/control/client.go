package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	alarmapi "github.com/oshokin/home-alarm-central/internal/api/grpc/alarm"
	"github.com/oshokin/home-alarm-central/internal/config"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/snapshot"
)

// Client wraps the AlarmCentral stub with call timeouts and conversions.
type Client struct {
	// conn is the underlying gRPC connection to the central.
	conn *grpc.ClientConn
	// api is the AlarmCentral stub.
	api *alarmapi.AlarmCentralClient
	// actor is sent with every command.
	actor string

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the actor reported with commands.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// WithConn uses an existing connection instead of dialing; used in tests.
func WithConn(conn grpc.ClientConnInterface) Option {
	return func(c *Client) {
		c.api = alarmapi.NewAlarmCentralClient(conn)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial connects to the control API of a central.
// The API is meant for the loopback interface and uses no transport security.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm central: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         alarmapi.NewAlarmCentralClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetState retrieves the current snapshot.
func (c *Client) GetState(ctx context.Context) (*domain.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetState(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	return snapshot.FromStruct(resp)
}

// SendCommand submits action with an optional boolean value.
func (c *Client) SendCommand(
	ctx context.Context,
	action string,
	value *bool,
	requestID string,
) (*alarmapi.Result, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	fields := map[string]*structpb.Value{
		alarmapi.FieldAction:    structpb.NewStringValue(action),
		alarmapi.FieldRequestID: structpb.NewStringValue(requestID),
		alarmapi.FieldActor:     structpb.NewStringValue(c.actor),
	}

	if value != nil {
		fields[alarmapi.FieldValue] = structpb.NewBoolValue(*value)
	}

	resp, err := c.api.SendCommand(callCtx, &structpb.Struct{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("send command %s: %w", action, err)
	}

	return alarmapi.ResultFromStruct(resp)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
