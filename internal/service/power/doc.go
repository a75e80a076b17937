// Package power keeps the machine from suspending while an alarm rings.
//
// Hold implements host.PowerHold on top of the platform's sleep inhibitor:
// a systemd-logind "block" inhibitor lock on Linux and caffeinate on macOS.
// Every lock carries an engine-side ceiling timer that releases it even if
// nobody calls Release.
package power
