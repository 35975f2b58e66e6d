// Package metrics exposes the central's anomaly counters to Prometheus.
package metrics
