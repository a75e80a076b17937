// Package checker implements "alarmctl watch", a live view of alarm
// lifecycle events streamed from the daemon.
package checker
