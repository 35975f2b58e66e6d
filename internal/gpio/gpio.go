package gpio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/home-alarm-central/internal/logger"
)

// Pins writes digital output levels.
type Pins interface {
	Write(pin int, high bool) error
	Close() error
}

// Driver names accepted by Open.
const (
	// DriverSysfs writes /sys/class/gpio. It is the default.
	DriverSysfs = "sysfs"
	// DriverMemory keeps levels in memory and drives no hardware.
	DriverMemory = "memory"
)

// errUnknownDriver is returned by Open for unsupported driver names.
var errUnknownDriver = errors.New("unknown gpio driver")

// Open returns the driver selected by name, wrapped with logging.
// Output pins are configured up front so a bad pin fails at startup.
func Open(ctx context.Context, driver, sysfsRoot string, outputs []int) (Pins, error) {
	var pins Pins

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		logger.WarnKV(ctx, "GPIO memory driver selected, siren and LEDs are not driven",
			"pins", outputs)

		pins = NewMemory()
	case DriverSysfs, "":
		sysfs := NewSysfs(sysfsRoot)

		for _, pin := range outputs {
			if err := sysfs.Export(pin); err != nil {
				return nil, fmt.Errorf("export pin %d: %w", pin, err)
			}
		}

		pins = sysfs
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}

	return NewLogged(ctx, pins), nil
}

// Logged logs every level change before delegating to the wrapped driver.
type Logged struct {
	// next is the wrapped driver.
	next Pins
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used to reach the scoped logger.
}

// NewLogged wraps next with debug logging.
func NewLogged(ctx context.Context, next Pins) *Logged {
	return &Logged{
		next: next,
		ctx:  logger.WithName(ctx, "gpio"),
	}
}

// Write logs and forwards a level.
func (l *Logged) Write(pin int, high bool) error {
	logger.DebugKV(l.ctx, "Pin level", "pin", pin, "high", high)

	if err := l.next.Write(pin, high); err != nil {
		logger.ErrorKV(l.ctx, "Pin write failed", "pin", pin, "error", err)

		return err
	}

	return nil
}

// Close closes the wrapped driver.
func (l *Logged) Close() error {
	return l.next.Close()
}
