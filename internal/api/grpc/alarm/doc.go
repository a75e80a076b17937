// Package alarm implements the gRPC transport of the wake alarm daemon.
//
// Messages are plain Go structs carried by a JSON codec, and the service
// descriptor is declared by hand, so the package needs no generated code.
// The server adapts transport messages to the session manager and maps
// domain errors to status codes.
package alarm
