// Package config loads, validates and saves the central's YAML settings.
//
// Every validation failure wraps ErrConfiguration. Missing optional values are
// filled with the defaults of the reference hardware: broker port 1883, siren
// on GPIO 25, watch LED on 26, status LED on 2, one-minute heartbeats and a
// 30-second status cadence.
package config
