// Package session implements the alarm session manager: the single writer of
// alarm state.
//
// The Manager mediates every external command (schedule, cancel, snooze,
// dismiss), accepts fire callbacks from the wake scheduler, owns the lifetime
// of each ringing Session and decides which session holds the process-wide
// playback slot. Commands for the same alarm id are serialized through a
// per-id lock; different ids proceed concurrently.
package session
