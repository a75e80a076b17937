// Package scheduler wraps the host's precise-timer capability.
//
// WakeScheduler maps host outcomes onto the engine's error taxonomy, bounds
// every arm call by a timeout so commands never hang on the host, records
// reduced-reliability registrations and forwards fire callbacks.
package scheduler
