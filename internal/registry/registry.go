package registry

import (
	"errors"
	"fmt"
	"slices"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

var (
	// ErrUnknownSensor is returned when an address is not in the registry.
	ErrUnknownSensor = errors.New("unknown sensor")
	// errDuplicateSensor is returned when two sensors share an address or a name.
	errDuplicateSensor = errors.New("duplicate sensor")
	// errUnnamedSensor is returned when a sensor has no name.
	errUnnamedSensor = errors.New("sensor name must be provided")
)

// Registry is an immutable lookup table of configured sensors.
type Registry struct {
	// byAddr indexes sensors by radio address.
	byAddr map[domain.HardwareAddr]domain.SensorIdentity
	// ordered keeps the configuration order for listings.
	ordered []domain.SensorIdentity
}

// New builds a registry, rejecting unnamed sensors and duplicate names or addresses.
func New(sensors []domain.SensorIdentity) (*Registry, error) {
	r := &Registry{
		byAddr:  make(map[domain.HardwareAddr]domain.SensorIdentity, len(sensors)),
		ordered: make([]domain.SensorIdentity, 0, len(sensors)),
	}

	names := make(map[string]struct{}, len(sensors))

	for _, sensor := range sensors {
		if sensor.Name == "" {
			return nil, fmt.Errorf("sensor %s: %w", sensor.Addr, errUnnamedSensor)
		}

		if _, ok := r.byAddr[sensor.Addr]; ok {
			return nil, fmt.Errorf("address %s: %w", sensor.Addr, errDuplicateSensor)
		}

		if _, ok := names[sensor.Name]; ok {
			return nil, fmt.Errorf("name %q: %w", sensor.Name, errDuplicateSensor)
		}

		names[sensor.Name] = struct{}{}
		r.byAddr[sensor.Addr] = sensor
		r.ordered = append(r.ordered, sensor)
	}

	return r, nil
}

// Resolve returns the sensor registered for addr or ErrUnknownSensor.
func (r *Registry) Resolve(addr domain.HardwareAddr) (domain.SensorIdentity, error) {
	sensor, ok := r.byAddr[addr]
	if !ok {
		return domain.SensorIdentity{}, fmt.Errorf("%w: %s", ErrUnknownSensor, addr)
	}

	return sensor, nil
}

// Sensors returns the registered sensors in configuration order.
func (r *Registry) Sensors() []domain.SensorIdentity {
	return slices.Clone(r.ordered)
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	return len(r.ordered)
}
