// Package fake provides scripted, thread-safe host collaborators.
//
// They record every call, let tests force denials and failures, and can also
// serve as the simulated host of the daemon (`host.kind: simulated`), where
// the scheduler fires registrations from ordinary timers.
package fake
