package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
	"github.com/oshokin/home-alarm-central/internal/registry"
)

// Config holds every setting of the alarm central.
type Config struct {
	// DeviceID identifies this central on the broker and prefixes its topics.
	DeviceID string `yaml:"device_id"`
	// WiFi holds the network credentials provisioned alongside the central.
	WiFi WiFi `yaml:"wifi"`
	// MQTT configures the broker connection.
	MQTT MQTT `yaml:"mqtt"`
	// Sensors lists the paired radio sensors.
	Sensors []Sensor `yaml:"sensors"`
	// Pins maps actuators to GPIO lines.
	Pins Pins `yaml:"pins"`
	// Timing holds every cadence and pattern duration.
	Timing Timing `yaml:"timing"`
	// Radio configures the bridge listener.
	Radio Listener `yaml:"radio"`
	// Control configures the local gRPC API.
	Control Listener `yaml:"control"`
	// Metrics configures the Prometheus endpoint.
	Metrics Listener `yaml:"metrics"`
	// GPIO selects the pin driver.
	GPIO GPIO `yaml:"gpio"`
	// StateFile is where the latest snapshot is persisted.
	StateFile string `yaml:"state_file"`
}

// WiFi holds station credentials.
type WiFi struct {
	SSID     string `yaml:"ssid,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// MQTT configures the broker connection.
type MQTT struct {
	// Broker is the broker host or IP address.
	Broker string `yaml:"broker"`
	// Port is the broker TCP port.
	Port int `yaml:"port"`
	// Username is optional.
	Username string `yaml:"username,omitempty"`
	// Password is required when Username is set.
	Password string `yaml:"password,omitempty"`
	// ClientID defaults to the device id.
	ClientID string `yaml:"client_id,omitempty"`
	// QoS is 0, 1 or 2.
	QoS byte `yaml:"qos"`
	// Timeout bounds every broker round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// Sensor is one paired radio sensor.
type Sensor struct {
	// Name is the logical name, e.g. "escalera".
	Name string `yaml:"name"`
	// MAC is the radio address, e.g. "FF:FF:FF:FF:FF:01".
	MAC string `yaml:"mac"`
	// Role is door, motion, window or other.
	Role string `yaml:"role,omitempty"`
	// HeartbeatInterval overrides timing.heartbeat_interval for this sensor.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty"`
}

// Pins maps actuators to GPIO line numbers.
type Pins struct {
	Siren     int `yaml:"siren"`
	LEDVigia  int `yaml:"led_vigia"`
	LEDStatus int `yaml:"led_status"`
}

// Timing holds cadences and pattern durations.
type Timing struct {
	// HeartbeatInterval is both the heartbeat publish cadence and the default sensor period.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// StatusPublishInterval is the periodic status cadence.
	StatusPublishInterval time.Duration `yaml:"status_publish_interval"`
	// LEDBlinkInterval is the blink toggle interval.
	LEDBlinkInterval time.Duration `yaml:"led_blink_interval"`
	// SirenPatternOn is how long the siren sounds in each alert cycle.
	SirenPatternOn time.Duration `yaml:"siren_pattern_on"`
	// SirenPatternOff is the pause of each alert cycle.
	SirenPatternOff time.Duration `yaml:"siren_pattern_off"`
	// FaultMultiplier is how many heartbeat periods of silence make a sensor faulted.
	FaultMultiplier int `yaml:"fault_multiplier"`
}

// Listener is a bind address.
type Listener struct {
	ListenAddr string `yaml:"listen_addr"`
}

// GPIO selects the pin driver.
type GPIO struct {
	// Driver is "memory" or "sysfs".
	Driver string `yaml:"driver"`
	// SysfsRoot is the sysfs GPIO directory.
	SysfsRoot string `yaml:"sysfs_root,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for central settings.
	DefaultConfigFilename = "alarm-central.yaml"

	// DefaultStateFilename is the default filename for the snapshot JSON.
	DefaultStateFilename = "alarm-central-state.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 2 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// DefaultMQTTPort is the plain MQTT port.
	DefaultMQTTPort = 1883
	// DefaultQoS is at-least-once delivery.
	DefaultQoS = 1

	// DefaultPinSiren drives the siren relay.
	DefaultPinSiren = 25
	// DefaultPinLEDVigia is the watch LED.
	DefaultPinLEDVigia = 26
	// DefaultPinLEDStatus is the on-board status LED.
	DefaultPinLEDStatus = 2

	// DefaultHeartbeatInterval is the heartbeat cadence.
	DefaultHeartbeatInterval = 60 * time.Second
	// DefaultStatusPublishInterval is the status cadence.
	DefaultStatusPublishInterval = 30 * time.Second
	// DefaultLEDBlinkInterval is the LED toggle interval.
	DefaultLEDBlinkInterval = time.Second
	// DefaultSirenPatternOn is the siren on half.
	DefaultSirenPatternOn = 500 * time.Millisecond
	// DefaultSirenPatternOff is the siren off half.
	DefaultSirenPatternOff = 500 * time.Millisecond
	// MinLEDBlinkInterval keeps the halved FAULT blink above zero.
	MinLEDBlinkInterval = 2 * time.Millisecond

	// DefaultFaultMultiplier is how many missed heartbeats make a fault.
	DefaultFaultMultiplier = 3

	// DefaultRadioAddr is where the ESP-NOW bridge sends frames.
	DefaultRadioAddr = ":4210"
	// DefaultControlAddr is the local gRPC API address.
	DefaultControlAddr = "127.0.0.1:50061"
	// DefaultMetricsAddr is the Prometheus endpoint.
	DefaultMetricsAddr = ":9102"
)

var (
	// ErrConfiguration wraps every invalid or missing setting.
	ErrConfiguration = errors.New("configuration error")
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Load reads configuration from the provided path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %w", ErrConfiguration, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal settings: %w", ErrConfiguration, err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, errConfigIsNotSet)
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds broker and Wi-Fi credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate applies defaults and checks every field.
//
//nolint:cyclop,funlen // One check per setting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, errConfigIsNotSet)
	}

	applyDefaults(cfg)

	if cfg.DeviceID == "" {
		return invalid("device_id must be provided")
	}

	if cfg.WiFi.SSID != "" && cfg.WiFi.Password == "" {
		return invalid("wifi.password must be provided with wifi.ssid")
	}

	if cfg.MQTT.Broker == "" {
		return invalid("mqtt.broker must be provided")
	}

	if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
		return invalid("mqtt.port %d is out of range", cfg.MQTT.Port)
	}

	if cfg.MQTT.Username != "" && cfg.MQTT.Password == "" {
		return invalid("mqtt.password must be provided with mqtt.username")
	}

	if cfg.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2")
	}

	if len(cfg.Sensors) == 0 {
		return invalid("at least one sensor must be configured")
	}

	identities, err := cfg.SensorIdentities()
	if err != nil {
		return err
	}

	if _, err = registry.New(identities); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err = validatePins(cfg.Pins); err != nil {
		return err
	}

	t := cfg.Timing
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"timing.heartbeat_interval", t.HeartbeatInterval},
		{"timing.status_publish_interval", t.StatusPublishInterval},
		{"timing.led_blink_interval", t.LEDBlinkInterval},
		{"timing.siren_pattern_on", t.SirenPatternOn},
		{"timing.siren_pattern_off", t.SirenPatternOff},
	} {
		if d.value <= 0 {
			return invalid("%s must be positive", d.name)
		}
	}

	// FAULT blinks the status LED at half the interval.
	if t.LEDBlinkInterval < MinLEDBlinkInterval {
		return invalid("timing.led_blink_interval must be at least %s", MinLEDBlinkInterval)
	}

	if t.FaultMultiplier < 1 {
		return invalid("timing.fault_multiplier must be at least 1")
	}

	for _, l := range []struct {
		name string
		addr string
	}{
		{"radio.listen_addr", cfg.Radio.ListenAddr},
		{"control.listen_addr", cfg.Control.ListenAddr},
		{"metrics.listen_addr", cfg.Metrics.ListenAddr},
	} {
		if _, _, splitErr := net.SplitHostPort(l.addr); splitErr != nil {
			return invalid("%s %q: %v", l.name, l.addr, splitErr)
		}
	}

	switch cfg.GPIO.Driver {
	case gpio.DriverMemory, gpio.DriverSysfs:
	default:
		return invalid("gpio.driver %q is not one of %s, %s", cfg.GPIO.Driver, gpio.DriverSysfs, gpio.DriverMemory)
	}

	return nil
}

// SensorIdentities converts the configured sensors to domain identities.
func (c *Config) SensorIdentities() ([]domain.SensorIdentity, error) {
	identities := make([]domain.SensorIdentity, 0, len(c.Sensors))

	for i, s := range c.Sensors {
		if s.Name == "" {
			return nil, invalid("sensors[%d].name must be provided", i)
		}

		addr, err := domain.ParseHardwareAddr(s.MAC)
		if err != nil {
			return nil, fmt.Errorf("%w: sensors[%d]: %w", ErrConfiguration, i, err)
		}

		heartbeat := s.HeartbeatInterval
		if heartbeat <= 0 {
			heartbeat = c.Timing.HeartbeatInterval
		}

		identities = append(identities, domain.SensorIdentity{
			Addr:              addr,
			Name:              s.Name,
			Role:              domain.ParseRole(s.Role),
			HeartbeatInterval: heartbeat,
		})
	}

	return identities, nil
}

// ActuatorTiming returns the pattern durations for the state machine.
func (c *Config) ActuatorTiming() domain.Timing {
	return domain.Timing{
		SirenOn:  c.Timing.SirenPatternOn,
		SirenOff: c.Timing.SirenPatternOff,
		LEDBlink: c.Timing.LEDBlinkInterval,
	}
}

// PinMap maps actuator targets to GPIO lines.
func (c *Config) PinMap() map[domain.Target]int {
	return map[domain.Target]int{
		domain.TargetSiren:     c.Pins.Siren,
		domain.TargetLEDVigia:  c.Pins.LEDVigia,
		domain.TargetLEDStatus: c.Pins.LEDStatus,
	}
}

func validatePins(p Pins) error {
	seen := make(map[int]string, 3)

	for _, pin := range []struct {
		name string
		line int
	}{
		{"pins.siren", p.Siren},
		{"pins.led_vigia", p.LEDVigia},
		{"pins.led_status", p.LEDStatus},
	} {
		if pin.line < 0 {
			return invalid("%s must not be negative", pin.name)
		}

		if other, ok := seen[pin.line]; ok {
			return invalid("%s and %s share GPIO %d", other, pin.name, pin.line)
		}

		seen[pin.line] = pin.name
	}

	return nil
}

//nolint:cyclop // Flat list of defaults.
func applyDefaults(cfg *Config) {
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = DefaultMQTTPort
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.DeviceID
	}

	if cfg.MQTT.Timeout <= 0 {
		cfg.MQTT.Timeout = DefaultTimeout
	}

	if cfg.Pins == (Pins{}) {
		cfg.Pins = Pins{
			Siren:     DefaultPinSiren,
			LEDVigia:  DefaultPinLEDVigia,
			LEDStatus: DefaultPinLEDStatus,
		}
	}

	t := &cfg.Timing
	setDuration(&t.HeartbeatInterval, DefaultHeartbeatInterval)
	setDuration(&t.StatusPublishInterval, DefaultStatusPublishInterval)
	setDuration(&t.LEDBlinkInterval, DefaultLEDBlinkInterval)
	setDuration(&t.SirenPatternOn, DefaultSirenPatternOn)
	setDuration(&t.SirenPatternOff, DefaultSirenPatternOff)

	if t.FaultMultiplier == 0 {
		t.FaultMultiplier = DefaultFaultMultiplier
	}

	setString(&cfg.Radio.ListenAddr, DefaultRadioAddr)
	setString(&cfg.Control.ListenAddr, DefaultControlAddr)
	setString(&cfg.Metrics.ListenAddr, DefaultMetricsAddr)
	setString(&cfg.GPIO.Driver, gpio.DriverSysfs)
	setString(&cfg.GPIO.SysfsRoot, gpio.DefaultSysfsRoot)
	setString(&cfg.StateFile, DefaultStateFilename)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func setString(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
