// Package alarm contains core domain types for the alarm central.
//
// It defines sensor identities and events, remote commands, actuator
// commands with their blink/pulse patterns, and the Machine that owns the
// DISARMED/ARMED/TRIGGERED/FAULT state. The Machine is not safe for
// concurrent use: it is owned by the scheduling loop.
package alarm
