package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/gpio"
)

const sampleYAML = `
device_id: home_alarm_central_001
wifi:
  ssid: casa
  password: secret
mqtt:
  broker: 44.221.95.191
  username: flowsight
  password: secret
sensors:
  - name: escalera
    mac: "FF:FF:FF:FF:FF:01"
    role: door
  - name: sala
    mac: "FF:FF:FF:FF:FF:02"
    role: motion
    heartbeat_interval: 30s
`

func validConfig() *Config {
	return &Config{
		DeviceID: "home_alarm_central_001",
		MQTT:     MQTT{Broker: "44.221.95.191"},
		Sensors: []Sensor{
			{Name: "escalera", MAC: "FF:FF:FF:FF:FF:01", Role: "door"},
			{Name: "sala", MAC: "FF:FF:FF:FF:FF:02", Role: "motion"},
		},
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alarm-central.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, DefaultMQTTPort, cfg.MQTT.Port)
	require.Equal(t, "home_alarm_central_001", cfg.MQTT.ClientID)
	require.Equal(t, DefaultTimeout, cfg.MQTT.Timeout)
	require.Equal(t, Pins{Siren: 25, LEDVigia: 26, LEDStatus: 2}, cfg.Pins)
	require.Equal(t, time.Minute, cfg.Timing.HeartbeatInterval)
	require.Equal(t, 30*time.Second, cfg.Timing.StatusPublishInterval)
	require.Equal(t, time.Second, cfg.Timing.LEDBlinkInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Timing.SirenPatternOn)
	require.Equal(t, 500*time.Millisecond, cfg.Timing.SirenPatternOff)
	require.Equal(t, DefaultFaultMultiplier, cfg.Timing.FaultMultiplier)
	require.Equal(t, gpio.DriverSysfs, cfg.GPIO.Driver)
	require.Equal(t, gpio.DefaultSysfsRoot, cfg.GPIO.SysfsRoot)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)

	sensors, err := cfg.SensorIdentities()
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	require.Equal(t, "escalera", sensors[0].Name)
	require.Equal(t, domain.RoleDoor, sensors[0].Role)
	require.Equal(t, time.Minute, sensors[0].HeartbeatInterval)
	require.Equal(t, 30*time.Second, sensors[1].HeartbeatInterval)
	require.Equal(t, "FF:FF:FF:FF:FF:02", sensors[1].Addr.String())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing device id", mutate: func(c *Config) { c.DeviceID = "" }},
		{name: "ssid without password", mutate: func(c *Config) { c.WiFi.SSID = "casa" }},
		{name: "missing broker", mutate: func(c *Config) { c.MQTT.Broker = "" }},
		{name: "bad port", mutate: func(c *Config) { c.MQTT.Port = 70000 }},
		{name: "username without password", mutate: func(c *Config) { c.MQTT.Username = "flowsight" }},
		{name: "bad qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }},
		{name: "no sensors", mutate: func(c *Config) { c.Sensors = nil }},
		{name: "bad mac", mutate: func(c *Config) { c.Sensors[0].MAC = "FF:FF" }},
		{name: "unnamed sensor", mutate: func(c *Config) { c.Sensors[0].Name = "" }},
		{name: "duplicate mac", mutate: func(c *Config) { c.Sensors[1].MAC = c.Sensors[0].MAC }},
		{name: "duplicate name", mutate: func(c *Config) { c.Sensors[1].Name = c.Sensors[0].Name }},
		{name: "shared pin", mutate: func(c *Config) { c.Pins = Pins{Siren: 25, LEDVigia: 25, LEDStatus: 2} }},
		{name: "negative interval", mutate: func(c *Config) { c.Timing.LEDBlinkInterval = -time.Second }},
		{name: "blink too short", mutate: func(c *Config) { c.Timing.LEDBlinkInterval = time.Nanosecond }},
		{name: "negative multiplier", mutate: func(c *Config) { c.Timing.FaultMultiplier = -1 }},
		{name: "bad listen address", mutate: func(c *Config) { c.Radio.ListenAddr = "4210" }},
		{name: "unknown driver", mutate: func(c *Config) { c.GPIO.Driver = "spi" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			require.ErrorIs(t, Validate(cfg), ErrConfiguration)
		})
	}

	require.NoError(t, Validate(validConfig()))
	require.ErrorIs(t, Validate(nil), ErrConfiguration)
}

// TestValidate_StableOrder reports the same setting on every run when several are invalid.
func TestValidate_StableOrder(t *testing.T) {
	t.Parallel()

	for range 20 {
		cfg := validConfig()
		cfg.Timing.HeartbeatInterval = -time.Second
		cfg.Timing.SirenPatternOff = -time.Second
		require.ErrorContains(t, Validate(cfg), "timing.heartbeat_interval")

		cfg = validConfig()
		cfg.Radio.ListenAddr = "4210"
		cfg.Control.ListenAddr = "50061"
		cfg.Metrics.ListenAddr = "9102"
		require.ErrorContains(t, Validate(cfg), "radio.listen_addr")
	}
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	cfg := validConfig()

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

func TestConfigHelpers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, Validate(cfg))

	require.Equal(t, domain.Timing{
		SirenOn:  500 * time.Millisecond,
		SirenOff: 500 * time.Millisecond,
		LEDBlink: time.Second,
	}, cfg.ActuatorTiming())
	require.Equal(t, 25, cfg.PinMap()[domain.TargetSiren])
	require.Equal(t, 2, cfg.PinMap()[domain.TargetLEDStatus])
}
