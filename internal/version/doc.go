// Package version carries the build metadata of alarm-central and alarmctl.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
package version
