// Package rest serves the daemon's HTTP surface: health, Prometheus metrics
// and read-only JSON views of armed alarms and the ringing session for thin
// pollers.
package rest
