// Package telemetry publishes status, heartbeat and sensor event messages.
//
// Status and heartbeat run on independent cadences measured from the last
// attempt, so a broker outage never causes a burst of retries: the next
// attempt simply happens on the next interval boundary.
package telemetry
