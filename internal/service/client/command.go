package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/service/common"
)

// Options configures how alarmctl reaches the daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the daemon address from config when specified.
	ServerAddress string
	// Output receives rendered results, os.Stdout when nil.
	Output io.Writer
}

var (
	errTriggerRequired = errors.New("either --at or --in is required")
	errTriggerConflict = errors.New("--at and --in are mutually exclusive")
)

// triggerLayouts are accepted by --at, tried in order.
var triggerLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"15:04",
}

// connect loads settings and dials the daemon.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOptions := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect the local user, requests stay anonymous", "error", err)
	} else {
		clientOptions = append(clientOptions, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, serverAddress, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverAddress, err)
	}

	logger.DebugKV(ctx, "Connected to alarm daemon", "server_address", serverAddress)

	return client, nil
}

// withClient runs fn against a connected client and closes it afterwards.
func withClient(ctx context.Context, opts *Options, fn func(*common.Client, io.Writer) error) error {
	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return fn(client, out)
}

// ParseTriggerAt resolves --at or --in against now. A bare clock time names
// its next occurrence, tomorrow when it already passed today.
func ParseTriggerAt(at string, in time.Duration, now time.Time) (time.Time, error) {
	at = strings.TrimSpace(at)

	switch {
	case at != "" && in != 0:
		return time.Time{}, errTriggerConflict
	case at == "" && in <= 0:
		return time.Time{}, errTriggerRequired
	case at == "":
		return now.Add(in), nil
	}

	for _, layout := range triggerLayouts {
		parsed, err := time.ParseInLocation(layout, at, now.Location())
		if err != nil {
			continue
		}

		if layout != "15:04" {
			return parsed, nil
		}

		next := time.Date(now.Year(), now.Month(), now.Day(),
			parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		return next, nil
	}

	return time.Time{}, fmt.Errorf("unrecognised time %q, use RFC 3339, \"YYYY-MM-DD HH:MM\" or \"HH:MM\"", at)
}
