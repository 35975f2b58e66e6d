// Package state persists the latest alarm snapshot.
//
// The snapshot is written after every transition so the next boot can report
// what the central was doing before it restarted. The central itself always
// boots DISARMED; the stored snapshot is informational only.
package state
