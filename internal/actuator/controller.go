package actuator

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
)

// PinMap assigns an output pin to each target.
type PinMap map[domain.Target]int

// Controller writes pattern levels to pins on every tick.
// It is not safe for concurrent use.
type Controller struct {
	// pins is the output driver.
	pins gpio.Pins
	// pinMap resolves targets to pin numbers.
	pinMap PinMap
	// commands holds the current command per target.
	commands map[domain.Target]domain.ActuatorCommand
	// written holds the last level successfully written per target.
	written map[domain.Target]bool
}

// New returns a controller with every target OFF.
func New(pins gpio.Pins, pinMap PinMap) *Controller {
	c := &Controller{
		pins:     pins,
		pinMap:   pinMap,
		commands: make(map[domain.Target]domain.ActuatorCommand, len(domain.Targets)),
		written:  make(map[domain.Target]bool, len(domain.Targets)),
	}

	for _, target := range domain.Targets {
		c.commands[target] = domain.ActuatorCommand{Target: target, Pattern: domain.Off()}
	}

	return c
}

// TickInterval is the shortest pattern interval any state can produce,
// including the faster FAULT blink.
func TickInterval(timing domain.Timing) time.Duration {
	interval := timing.SirenOn

	for _, d := range []time.Duration{timing.SirenOff, timing.LEDBlink, timing.FaultBlink()} {
		if d > 0 && (interval <= 0 || d < interval) {
			interval = d
		}
	}

	return interval
}

// Level returns the output level of cmd at now.
func Level(cmd domain.ActuatorCommand, now time.Time) bool {
	return cmd.Level(now)
}

// Apply replaces the commands for the targets present in set.
func (c *Controller) Apply(set []domain.ActuatorCommand) {
	for _, cmd := range set {
		c.commands[cmd.Target] = cmd
	}
}

// command returns the current command for target.
func (c *Controller) command(target domain.Target) domain.ActuatorCommand {
	return c.commands[target]
}

// Levels computes every target's level at now without writing.
func (c *Controller) Levels(now time.Time) map[domain.Target]bool {
	levels := make(map[domain.Target]bool, len(c.commands))
	for target, cmd := range c.commands {
		levels[target] = Level(cmd, now)
	}

	return levels
}

// Tick writes levels that differ from the last written ones.
// A failed write is retried on the next tick.
func (c *Controller) Tick(now time.Time) error {
	var (
		errs   []error
		levels = c.Levels(now)
	)

	for _, target := range domain.Targets {
		level := levels[target]

		if last, ok := c.written[target]; ok && last == level {
			continue
		}

		if err := c.write(target, level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Off drives every output low regardless of the current commands.
func (c *Controller) Off() error {
	var errs []error

	for _, target := range domain.Targets {
		c.commands[target] = domain.ActuatorCommand{Target: target, Pattern: domain.Off()}

		if err := c.write(target, false); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Controller) write(target domain.Target, level bool) error {
	pin, ok := c.pinMap[target]
	if !ok {
		return nil
	}

	if err := c.pins.Write(pin, level); err != nil {
		delete(c.written, target)

		return fmt.Errorf("write %s on pin %d: %w", target, pin, err)
	}

	c.written[target] = level

	return nil
}
