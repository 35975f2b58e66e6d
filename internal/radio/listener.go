package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oshokin/home-alarm-central/internal/ingest"
	"github.com/oshokin/home-alarm-central/internal/logger"
)

// readBufferSize leaves room to detect oversized datagrams.
const readBufferSize = ingest.MaxFrameSize + 1

// Sink receives every datagram with its arrival time. It must not block.
type Sink func(raw []byte, at time.Time)

// Listener reads datagrams from a UDP socket.
type Listener struct {
	// conn is the bound socket.
	conn net.PacketConn
	// sink receives the datagrams.
	sink Sink
	// now is the clock used to stamp datagrams.
	now func() time.Time
}

// Listen binds addr, e.g. ":4210".
func Listen(ctx context.Context, addr string, sink Sink) (*Listener, error) {
	conn, err := (&net.ListenConfig{}).ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen radio bridge on %s: %w", addr, err)
	}

	return &Listener{
		conn: conn,
		sink: sink,
		now:  time.Now,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads until ctx is done and then closes the socket.
func (l *Listener) Serve(ctx context.Context) error {
	ctx = logger.WithName(ctx, "radio")

	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.Close()
	})
	defer stop()

	logger.InfoKV(ctx, "Radio bridge listener started", "address", l.Addr().String())

	buf := make([]byte, readBufferSize)

	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.InfoKV(ctx, "Radio bridge listener stopped")

				return nil
			}

			return fmt.Errorf("read radio datagram: %w", err)
		}

		logger.DebugKV(ctx, "Datagram received", "from", from.String(), "size", n)

		raw := make([]byte, n)
		copy(raw, buf[:n])

		l.sink(raw, l.now())
	}
}

// Close releases the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Send writes one encoded frame to a bridge listener; used by alarmctl to
// simulate sensors.
func Send(ctx context.Context, addr string, frame *ingest.Frame) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dial radio bridge %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err = conn.Write(ingest.EncodeFrame(frame)); err != nil {
		return fmt.Errorf("send frame to %s: %w", addr, err)
	}

	return nil
}
