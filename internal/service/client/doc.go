// Package client implements the alarmctl commands.
//
// Every command dials the alarm daemon, performs one request and renders the
// answer for a terminal.
package client
