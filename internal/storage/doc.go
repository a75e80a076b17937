// Package storage defines the crash-consistent key/value contract the alarm
// store is built on (put, get, delete, list by prefix) and ships the in-memory
// and single-file JSON backends. Embedded and shared backends live in the bolt
// and redis subpackages.
package storage
