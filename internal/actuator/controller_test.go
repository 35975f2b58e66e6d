package actuator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
)

var (
	start  = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	pinMap = PinMap{
		domain.TargetSiren:     25,
		domain.TargetLEDVigia:  26,
		domain.TargetLEDStatus: 2,
	}
	siren = domain.ActuatorCommand{
		Target:  domain.TargetSiren,
		Pattern: domain.Pulse(500*time.Millisecond, 500*time.Millisecond),
		Since:   start,
	}
)

var errPinBroken = errors.New("pin broken")

// failingPins fails every write to one pin.
type failingPins struct {
	*gpio.Memory

	// broken is the pin that always fails.
	broken int
}

// Write fails for the broken pin and records the rest.
func (f *failingPins) Write(pin int, high bool) error {
	if pin == f.broken {
		return errPinBroken
	}

	return f.Memory.Write(pin, high)
}

// TestTickInterval picks the shortest positive interval.
func TestTickInterval(t *testing.T) {
	t.Parallel()

	require.Equal(t, 500*time.Millisecond, TickInterval(domain.Timing{
		SirenOn:  500 * time.Millisecond,
		SirenOff: 500 * time.Millisecond,
		LEDBlink: time.Second,
	}))
	require.Equal(t, 125*time.Millisecond, TickInterval(domain.Timing{
		SirenOn:  0,
		SirenOff: 750 * time.Millisecond,
		LEDBlink: 250 * time.Millisecond,
	}))
}

// TestTickInterval_FaultBlink samples the FAULT status LED without aliasing.
func TestTickInterval_FaultBlink(t *testing.T) {
	t.Parallel()

	timing := domain.Timing{
		SirenOn:  500 * time.Millisecond,
		SirenOff: 500 * time.Millisecond,
		LEDBlink: 600 * time.Millisecond,
	}

	tick := TickInterval(timing)
	require.Equal(t, 300*time.Millisecond, tick)

	status := domain.ActuatorCommand{
		Target:  domain.TargetLEDStatus,
		Pattern: domain.Blink(timing.FaultBlink()),
		Since:   start,
	}

	pins := gpio.NewMemory()
	c := New(pins, pinMap)
	c.Apply([]domain.ActuatorCommand{status})

	for i := range 8 {
		require.NoError(t, c.Tick(start.Add(time.Duration(i)*tick)))

		level, ok := pins.Level(pinMap[domain.TargetLEDStatus])
		require.True(t, ok)
		require.Equal(t, i%2 == 0, level, "tick %d", i)
	}
}

// TestController_SirenPattern follows the siren across one period.
func TestController_SirenPattern(t *testing.T) {
	t.Parallel()

	pins := gpio.NewMemory()
	c := New(pins, pinMap)
	c.Apply([]domain.ActuatorCommand{siren})

	require.NoError(t, c.Tick(start))

	high, ok := pins.Level(25)
	require.True(t, ok)
	require.True(t, high)

	level, ok := pins.Level(26)
	require.True(t, ok)
	require.False(t, level)

	require.NoError(t, c.Tick(start.Add(500*time.Millisecond)))

	high, _ = pins.Level(25)
	require.False(t, high)

	require.NoError(t, c.Tick(start.Add(time.Second)))

	high, _ = pins.Level(25)
	require.True(t, high)
}

// TestController_TickIsIdempotent ensures repeated ticks at the same instant write nothing new.
func TestController_TickIsIdempotent(t *testing.T) {
	t.Parallel()

	pins := gpio.NewMemory()
	c := New(pins, pinMap)
	c.Apply([]domain.ActuatorCommand{siren})

	now := start.Add(1234 * time.Millisecond)

	require.NoError(t, c.Tick(now))
	writes := len(pins.History())

	require.NoError(t, c.Tick(now))
	require.NoError(t, c.Tick(now))
	require.Len(t, pins.History(), writes)
	require.Equal(t, c.Levels(now), c.Levels(now))
}

// TestController_Periodicity checks levels at t and t+period match for every target.
func TestController_Periodicity(t *testing.T) {
	t.Parallel()

	c := New(gpio.NewMemory(), pinMap)
	c.Apply([]domain.ActuatorCommand{
		siren,
		{Target: domain.TargetLEDStatus, Pattern: domain.Blink(time.Second), Since: start},
		{Target: domain.TargetLEDVigia, Pattern: domain.On(), Since: start},
	})

	period := siren.Pattern.Period()
	require.Equal(t, time.Second, period)

	for ms := 0; ms < 10_000; ms += 50 {
		now := start.Add(time.Duration(ms) * time.Millisecond)
		require.Equal(t, Level(siren, now), Level(siren, now.Add(period)))

		status := c.command(domain.TargetLEDStatus)
		require.Equal(t, Level(status, now), Level(status, now.Add(status.Pattern.Period())))
	}
}

// TestController_RetriesFailedWrite verifies failed pins are rewritten on the next tick.
func TestController_RetriesFailedWrite(t *testing.T) {
	t.Parallel()

	pins := &failingPins{Memory: gpio.NewMemory(), broken: 25}
	c := New(pins, pinMap)
	c.Apply([]domain.ActuatorCommand{siren})

	err := c.Tick(start)
	require.ErrorIs(t, err, errPinBroken)

	err = c.Tick(start)
	require.ErrorIs(t, err, errPinBroken)

	pins.broken = -1
	require.NoError(t, c.Tick(start))

	high, ok := pins.Level(25)
	require.True(t, ok)
	require.True(t, high)
}

// TestController_Off drives every output low.
func TestController_Off(t *testing.T) {
	t.Parallel()

	pins := gpio.NewMemory()
	c := New(pins, pinMap)
	c.Apply([]domain.ActuatorCommand{siren})
	require.NoError(t, c.Tick(start))

	require.NoError(t, c.Off())

	for _, pin := range pinMap {
		high, ok := pins.Level(pin)
		require.True(t, ok)
		require.False(t, high)
	}

	require.Equal(t, domain.PatternOff, c.command(domain.TargetSiren).Pattern.Kind)
}
