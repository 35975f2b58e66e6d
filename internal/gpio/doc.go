// Package gpio drives digital output pins.
//
// Memory records levels for dry runs and tests, Sysfs writes through the Linux
// /sys/class/gpio interface, and Logged decorates any driver with log lines.
package gpio
