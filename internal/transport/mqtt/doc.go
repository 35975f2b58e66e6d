// Package mqtt connects the central to its MQTT broker.
//
// The client reconnects on its own. Publishing never blocks longer than the
// configured timeout, and command subscriptions are restored after every
// reconnect.
package mqtt
