// Package radio receives sensor frames forwarded by an ESP-NOW to UDP bridge.
package radio
