package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/home-alarm-central/internal/logger"
)

// disconnectQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
const disconnectQuiesce = 250

var (
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt operation timed out")
	// ErrNotConnected is returned by Publish while the connection is down.
	ErrNotConnected = errors.New("mqtt client is not connected")
)

// Handler receives messages of a subscribed topic. It must not block.
type Handler func(topic string, payload []byte)

// Options configures a Client.
type Options struct {
	// Broker is the broker host name or IP address.
	Broker string
	// Port is the broker TCP port.
	Port int
	// ClientID identifies the session at the broker.
	ClientID string
	// Username is optional.
	Username string
	// Password goes with Username.
	Password string
	// QoS is used for publishing and subscribing.
	QoS byte
	// Timeout bounds every broker round trip.
	Timeout time.Duration
}

// BrokerURL returns tcp://host:port.
func (o Options) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(o.Broker, strconv.Itoa(o.Port))
}

// Client is a paho client with bounded operations.
type Client struct {
	// client is the underlying paho client.
	client paho.Client
	// qos is used for every publish and subscription.
	qos byte
	// timeout bounds every broker round trip.
	timeout time.Duration
	// ctx carries the logger for callbacks.
	ctx context.Context //nolint:containedctx // Used by paho callbacks only.

	mu sync.Mutex
	// subs are restored on every (re)connect.
	subs map[string]Handler
}

// New builds a client. Nothing is sent until Connect.
func New(ctx context.Context, opts Options) *Client {
	ctx = logger.WithName(ctx, "mqtt")

	c := &Client{
		qos:     opts.QoS,
		timeout: opts.Timeout,
		ctx:     ctx,
		subs:    make(map[string]Handler),
	}

	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL())
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetWriteTimeout(opts.Timeout)
	clientOpts.SetOnConnectHandler(c.onConnect)
	clientOpts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(clientOpts)

	return c
}

// Connect starts connecting and waits up to the timeout. When the broker is
// unreachable the client keeps retrying in the background and Connect returns
// ErrTimeout, which callers may treat as non-fatal.
func (c *Client) Connect(ctx context.Context) error {
	return c.wait(ctx, c.client.Connect(), "connect")
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Publish sends payload to topic, waiting at most the configured timeout.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return c.wait(ctx, c.client.Publish(topic, c.qos, false, payload), "publish "+topic)
}

// Subscribe registers handler for topic and subscribes now if connected.
func (c *Client) Subscribe(ctx context.Context, topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		logger.InfoKV(ctx, "Subscription deferred until connected", "topic", topic)

		return nil
	}

	return c.subscribe(ctx, topic, handler)
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
}

func (c *Client) subscribe(ctx context.Context, topic string, handler Handler) error {
	token := c.client.Subscribe(topic, c.qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})

	if err := c.wait(ctx, token, "subscribe "+topic); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Subscribed", "topic", topic, "qos", c.qos)

	return nil
}

func (c *Client) onConnect(paho.Client) {
	logger.InfoKV(c.ctx, "Connected to broker")

	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))

	for topic, handler := range c.subs {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribe(c.ctx, topic, handler); err != nil {
			logger.ErrorKV(c.ctx, "Failed to restore subscription", "topic", topic, "error", err)
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	logger.WarnKV(c.ctx, "Connection to broker lost", "error", err)
}

func (c *Client) wait(ctx context.Context, token paho.Token, op string) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w after %s", op, ErrTimeout, c.timeout)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
