// Package common holds helpers shared by several services.
//
// It provides a gRPC client wrapper for the alarm daemon with call timeouts
// and a utility to detect the current system actor (hostname/username) that
// is announced to the daemon's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
