package desktop

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/oshokin/wake-alarm/internal/host"
)

// defaultSink addresses whatever sink PulseAudio or PipeWire currently uses.
const defaultSink = "@DEFAULT_SINK@"

var percentPattern = regexp.MustCompile(`(\d+)%`)

// runner executes a command and returns its standard output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", name, host.ErrUnsupported)
	}

	return out, err
}

// Volume implements host.Volume with pactl.
type Volume struct {
	run runner
}

// NewVolume creates the pactl volume collaborator.
func NewVolume() *Volume {
	return &Volume{run: execRunner}
}

// Current implements host.Volume.
func (v *Volume) Current(ctx context.Context) (host.VolumeSettings, error) {
	out, err := v.run(ctx, "pactl", "get-sink-volume", defaultSink)
	if err != nil {
		return host.VolumeSettings{}, fmt.Errorf("read sink volume: %w", err)
	}

	match := percentPattern.FindStringSubmatch(string(out))
	if match == nil {
		return host.VolumeSettings{}, fmt.Errorf("unexpected pactl volume output %q", strings.TrimSpace(string(out)))
	}

	percent, err := strconv.Atoi(match[1])
	if err != nil {
		return host.VolumeSettings{}, fmt.Errorf("parse sink volume: %w", err)
	}

	out, err = v.run(ctx, "pactl", "get-sink-mute", defaultSink)
	if err != nil {
		return host.VolumeSettings{}, fmt.Errorf("read sink mute: %w", err)
	}

	return host.VolumeSettings{
		Percent: percent,
		Muted:   strings.Contains(strings.ToLower(string(out)), "yes"),
	}, nil
}

// Apply implements host.Volume.
func (v *Volume) Apply(ctx context.Context, settings host.VolumeSettings) error {
	mute := "0"
	if settings.Muted {
		mute = "1"
	}

	if _, err := v.run(ctx, "pactl", "set-sink-mute", defaultSink, mute); err != nil {
		return fmt.Errorf("set sink mute: %w", err)
	}

	percent := strconv.Itoa(settings.Percent) + "%"
	if _, err := v.run(ctx, "pactl", "set-sink-volume", defaultSink, percent); err != nil {
		return fmt.Errorf("set sink volume: %w", err)
	}

	return nil
}
