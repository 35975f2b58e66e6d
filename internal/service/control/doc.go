// Package control implements alarmctl: a gRPC client of the local control
// API plus a radio frame simulator for bench tests.
package control
