// Package config loads the settings shared by alarmd and alarmctl from a YAML
// file with WAKEALARM_ environment overrides, validates them, saves them back
// and watches the file so the daemon can pick up a new log level without a
// restart.
package config
