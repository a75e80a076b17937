// Package events fans alarm lifecycle events out to in-process subscribers
// (the gRPC WatchSurface stream) and to external sinks such as the AMQP
// CloudEvents publisher.
package events
