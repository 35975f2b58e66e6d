// Package central runs the alarm central.
//
// A single goroutine owns the state machine, the ingestor, the actuator
// controller and the telemetry publisher. Radio, broker and control API
// goroutines only enqueue work for it; when a queue is full the input is
// dropped and counted instead of blocking the producer.
package central
