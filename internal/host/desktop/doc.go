// Package desktop implements the host collaborators on a Linux desktop:
// wall-clock wake registrations, player commands for sound, pactl for
// volume, terminal bell pulses in place of vibration and freedesktop
// notifications for the visible surface.
package desktop
