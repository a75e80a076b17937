// Package host declares the platform collaborators the alarm engine drives:
// precise wake scheduling, the exclusive alarm audio channel, looping playback,
// volume, vibration, the CPU hold and the full-attention visible surface.
//
// The engine never reimplements these; it depends on the interfaces below and
// the daemon wires a concrete host (see the desktop subpackage).
package host
