package central

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"

	alarmapi "github.com/oshokin/home-alarm-central/internal/api/grpc/alarm"
	"github.com/oshokin/home-alarm-central/internal/config"
	"github.com/oshokin/home-alarm-central/internal/gpio"
	"github.com/oshokin/home-alarm-central/internal/instance"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/metrics"
	"github.com/oshokin/home-alarm-central/internal/radio"
	repository "github.com/oshokin/home-alarm-central/internal/repository/state"
	"github.com/oshokin/home-alarm-central/internal/transport/mqtt"
	"github.com/oshokin/home-alarm-central/internal/version"
)

// Options controls the alarm-central process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// StateFile overrides the snapshot path from the configuration.
	StateFile string
	// SkipInstanceCheck disables the single-instance guard.
	SkipInstanceCheck bool
}

// Run loads the configuration, starts every listener and runs the loop until
// ctx is canceled. Only configuration and startup errors are returned.
//
//nolint:funlen // Startup wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-central")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}

	ctx = logger.WithKV(ctx, "device_id", cfg.DeviceID)
	logger.InfoKV(ctx, "Starting alarm central", version.KV()...)

	if !opts.SkipInstanceCheck {
		guard, guardErr := instance.NewGuard()
		if guardErr != nil {
			return guardErr
		}

		if err = guard.Check(); err != nil {
			return err
		}
	}

	repo := repository.NewFileRepository(cfg.StateFile)
	previous := previousBootState(ctx, repo)

	pins, err := gpio.Open(ctx, cfg.GPIO.Driver, cfg.GPIO.SysfsRoot,
		[]int{cfg.Pins.Siren, cfg.Pins.LEDVigia, cfg.Pins.LEDStatus})
	if err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}

	defer func() {
		if closeErr := pins.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release gpio", "error", closeErr)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := metrics.New(promRegistry)

	mqtt.RouteLibraryLogs(ctx, max(logger.Level(), zapcore.WarnLevel))

	broker := mqtt.New(ctx, mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      cfg.MQTT.QoS,
		Timeout:  cfg.MQTT.Timeout,
	})
	defer broker.Disconnect()

	c, err := New(Deps{
		Config:            cfg,
		Pins:              pins,
		Broker:            broker,
		Repository:        repo,
		Metrics:           recorder,
		PreviousBootState: previous,
	})
	if err != nil {
		return err
	}

	// Registered before connecting so the first connect subscribes too.
	if err = broker.Subscribe(ctx, c.CommandTopic(), c.EnqueueMessage); err != nil {
		logger.WarnKV(ctx, "Command subscription failed", "topic", c.CommandTopic(), "error", err)
	}

	if err = broker.Connect(ctx); err != nil {
		logger.WarnKV(ctx, "Broker not reachable yet, retrying in background",
			"broker", cfg.MQTT.Broker, "port", cfg.MQTT.Port, "error", err)
	}

	listener, err := radio.Listen(ctx, cfg.Radio.ListenAddr, c.EnqueueFrame)
	if err != nil {
		return err
	}

	lc := net.ListenConfig{}

	controlLis, err := lc.Listen(ctx, "tcp", cfg.Control.ListenAddr)
	if err != nil {
		_ = listener.Close()

		return fmt.Errorf("listen on %s: %w", cfg.Control.ListenAddr, err)
	}

	grpcServer := grpc.NewServer()
	alarmapi.RegisterAlarmCentralServer(grpcServer, alarmapi.NewServer(c))

	logger.InfoKV(ctx, "Control API listening",
		"listen_address", controlLis.Addr().String(),
		"state_file", cfg.StateFile)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Go(func() {
		if serveErr := listener.Serve(loopCtx); serveErr != nil {
			logger.ErrorKV(ctx, "Radio listener failed", "error", serveErr)
		}
	})

	wg.Go(func() {
		if serveErr := grpcServer.Serve(controlLis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			logger.ErrorKV(ctx, "Control API failed", "error", serveErr)
		}
	})

	wg.Go(func() {
		if serveErr := metrics.Serve(loopCtx, cfg.Metrics.ListenAddr, promRegistry); serveErr != nil {
			logger.ErrorKV(ctx, "Metrics server failed", "error", serveErr)
		}
	})

	loopErr := c.Loop(loopCtx)

	// Stop accepting control requests before the loop state goes away.
	cancel()
	grpcServer.Stop()
	wg.Wait()

	logger.Info(ctx, "Shutdown complete")

	return loopErr
}

// CheckConfig loads and validates the configuration without starting anything.
func CheckConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

// previousBootState reads the snapshot left by the previous run. The central
// always starts DISARMED; the old state is only reported.
func previousBootState(ctx context.Context, repo repository.Repository) string {
	snap, err := repo.Load(ctx)

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Previous run state found",
			"state", snap.State.String(),
			"changed_at", snap.ChangedAt,
			"cause", snap.Cause)

		return snap.State.String()
	case errors.Is(err, repository.ErrNotFound):
		return ""
	default:
		logger.WarnKV(ctx, "Previous run state unreadable", "error", err)

		return ""
	}
}
