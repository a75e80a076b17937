// Package playback drives the redundant wake signal of a firing alarm.
//
// An Orchestrator starts one Playback per session. A Playback holds the CPU
// hold and the exclusive alarm channel, overrides the host volume, starts the
// primary, backup and system-fallback layers on a stagger, vibrates, watches
// every layer asynchronously and, when all layers fail, degrades to forced
// vibration plus periodic retries of the fallback layer. Stop tears all of it
// down exactly once.
package playback
