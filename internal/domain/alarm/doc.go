// Package alarm contains core domain types for the wake-up alarm engine.
//
// It defines Definition (the durable intent to wake at a time), Session (the
// runtime record of a firing alarm), the session State machine values, the
// playback Layer descriptors and the error taxonomy shared by every service.
package alarm
