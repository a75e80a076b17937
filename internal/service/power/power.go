package power

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/login1"

	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
)

const (
	// inhibitWhat blocks both system sleep and idle actions.
	inhibitWhat = "sleep:idle"
	// inhibitMode makes logind refuse to suspend until the lock is closed.
	inhibitMode = "block"
	// inhibitWhy is shown by `systemd-inhibit --list`.
	inhibitWhy = "Alarm is ringing"
)

// ErrUnsupportedOS indicates the current OS has no sleep inhibitor we can drive.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// inhibitor acquires a platform sleep inhibitor lasting at most timeout.
type inhibitor func(ctx context.Context, timeout time.Duration) (io.Closer, error)

// Hold implements host.PowerHold.
type Hold struct {
	// who names the application in inhibitor listings.
	who string
	// inhibit is the platform-specific acquisition.
	inhibit inhibitor
}

// NewHold creates a hold for the current platform.
func NewHold(who string) *Hold {
	return &Hold{
		who:     who,
		inhibit: platformInhibitor(who),
	}
}

// AcquireHold takes a sleep inhibitor that is released after timeout at the latest.
func (h *Hold) AcquireHold(ctx context.Context, timeout time.Duration) (host.Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("hold timeout must be positive, got %s", timeout)
	}

	closer, err := h.inhibit(ctx, timeout)
	if err != nil {
		return nil, fmt.Errorf("acquire sleep inhibitor: %w", err)
	}

	l := &lock{closer: closer}
	l.ceiling = time.AfterFunc(timeout, func() {
		metrics.HoldCeilingReached.Inc()
		logger.WarnKV(ctx, "CPU hold ceiling reached, releasing",
			"who", h.who,
			"ceiling", timeout)

		_ = l.release(false)
	})

	return l, nil
}

// lock releases its inhibitor exactly once.
type lock struct {
	closer  io.Closer
	ceiling *time.Timer
	once    sync.Once
	err     error
}

// Release stops the ceiling timer and closes the inhibitor.
func (l *lock) Release() error {
	return l.release(true)
}

func (l *lock) release(stopTimer bool) error {
	l.once.Do(func() {
		if stopTimer {
			l.ceiling.Stop()
		}

		l.err = l.closer.Close()
	})

	return l.err
}

// platformInhibitor selects the inhibitor for the running OS:
// - Linux: systemd-logind Inhibit("sleep:idle", mode "block")
// - macOS: `caffeinate -i -t <seconds>`.
func platformInhibitor(who string) inhibitor {
	osName := strings.ToLower(runtime.GOOS)

	switch {
	case strings.Contains(osName, "linux"):
		return func(_ context.Context, _ time.Duration) (io.Closer, error) {
			return logindInhibit(who)
		}
	case strings.Contains(osName, "darwin"):
		return caffeinate
	default:
		return func(context.Context, time.Duration) (io.Closer, error) {
			return nil, fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupportedOS)
		}
	}
}

// logindInhibit holds the inhibitor file descriptor returned by logind.
func logindInhibit(who string) (io.Closer, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("connect to logind: %w", err)
	}

	defer conn.Close()

	fd, err := conn.Inhibit(inhibitWhat, who, inhibitWhy, inhibitMode)
	if err != nil {
		return nil, err
	}

	return fd, nil
}

// caffeinate runs caffeinate for the hold ceiling and kills it on release.
func caffeinate(_ context.Context, timeout time.Duration) (io.Closer, error) {
	seconds := strconv.Itoa(int(timeout.Round(time.Second) / time.Second))

	cmd := exec.Command("caffeinate", "-i", "-t", seconds)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return processCloser{cmd: cmd}, nil
}

type processCloser struct {
	cmd *exec.Cmd
}

func (p processCloser) Close() error {
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()

	return nil
}
