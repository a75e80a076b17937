// Package alarms implements the persistent alarm store.
//
// Definitions are kept as JSON records under the "alarm/" key prefix of a
// storage.Backend, so the same repository works on the file, bolt, redis and
// in-memory backends. The store is the authoritative record of armed alarms.
package alarms
