// Package actuator drives the siren and LEDs from the current actuator commands.
//
// Output levels are computed from the time elapsed since each command started,
// modulo the pattern period, so ticks can be late, repeated or restarted
// without drifting.
package actuator
