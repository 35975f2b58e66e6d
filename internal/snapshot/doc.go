// Package snapshot converts alarm snapshots to and from google.protobuf.Struct.
//
// The same layout is returned by the control API and written to the state file.
package snapshot
