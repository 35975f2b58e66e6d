// Package alarm implements the local gRPC control API of the central.
//
// The service homealarm.v1.AlarmCentral is described with well-known protobuf
// types only (Empty and Struct), so no generated code is needed: the service
// descriptor and the client stub live in service.go.
package alarm
