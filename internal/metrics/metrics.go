package metrics

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/logger"
)

// Reasons a frame, message or request is dropped.
const (
	ReasonMalformedFrame   = "malformed_frame"
	ReasonUnknownSensor    = "unknown_sensor"
	ReasonDuplicateFrame   = "duplicate_frame"
	ReasonMalformedCommand = "malformed_command"
	ReasonForeignDevice    = "foreign_device"
	ReasonQueueFull        = "queue_full"
	ReasonActuatorWrite    = "actuator_write"
	ReasonPersist          = "persist"
)

const namespace = "alarm_central"

// Recorder counts anomalies, publishes and transitions. It is safe for concurrent use.
type Recorder struct {
	// dropped counts discarded inputs by reason.
	dropped *prometheus.CounterVec
	// published counts successful telemetry publishes by kind.
	published *prometheus.CounterVec
	// publishFailures counts failed telemetry publishes by kind.
	publishFailures *prometheus.CounterVec
	// transitions counts state changes by target state.
	transitions *prometheus.CounterVec
	// state is 1 for the current state and 0 for the others.
	state *prometheus.GaugeVec
	// faulted is the number of silent sensors.
	faulted prometheus.Gauge

	mu sync.Mutex
	// counts mirrors dropped and publishFailures for status messages.
	counts map[string]uint64
}

// New builds a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Inputs discarded without effect, by reason.",
		}, []string{"reason"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Telemetry messages accepted by the broker, by kind.",
		}, []string{"kind"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Telemetry messages the broker did not accept, by kind.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Alarm state changes, by target state.",
		}, []string{"to"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current alarm state (1 for the active state).",
		}, []string{"state"}),
		faulted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "faulted_sensors",
			Help:      "Number of sensors currently considered silent.",
		}),
		counts: make(map[string]uint64),
	}

	reg.MustRegister(r.dropped, r.published, r.publishFailures, r.transitions, r.state, r.faulted)

	return r
}

// Dropped counts an input discarded for reason.
func (r *Recorder) Dropped(reason string) {
	r.dropped.WithLabelValues(reason).Inc()
	r.bump(reason)
}

// Published counts a successful publish of kind.
func (r *Recorder) Published(kind string) {
	r.published.WithLabelValues(kind).Inc()
}

// PublishFailed counts a failed publish of kind.
func (r *Recorder) PublishFailed(kind string) {
	r.publishFailures.WithLabelValues(kind).Inc()
	r.bump("publish_" + kind)
}

// Transition records a move to another state.
func (r *Recorder) Transition(to domain.State) {
	r.transitions.WithLabelValues(to.String()).Inc()
	r.SetState(to)
}

// SetState sets the state gauge.
func (r *Recorder) SetState(current domain.State) {
	for _, s := range []domain.State{domain.StateDisarmed, domain.StateArmed, domain.StateTriggered, domain.StateFault} {
		v := 0.0
		if s == current {
			v = 1
		}

		r.state.WithLabelValues(s.String()).Set(v)
	}
}

// SetFaulted sets the number of silent sensors.
func (r *Recorder) SetFaulted(n int) {
	r.faulted.Set(float64(n))
}

// Counts returns the anomaly counters for status messages.
func (r *Recorder) Counts() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Clone(r.counts)
}

func (r *Recorder) bump(key string) {
	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	lis, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "Metrics server shutdown failed", "error", shutdownErr)
		}
	}()

	logger.InfoKV(ctx, "Metrics server listening", "address", lis.Addr().String())

	if err = srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
