package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/mitchellh/go-ps"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
)

const (
	// DefaultBellInterval is the pause between terminal bells of the tone path.
	DefaultBellInterval = time.Second

	// minRuntime separates a player that finished its file from one that crashed on start.
	minRuntime = 200 * time.Millisecond
	// restartDelay throttles restarts of players that exit immediately.
	restartDelay = 100 * time.Millisecond
	// maxQuickFailures is how many quick failing runs in a row end the loop.
	maxQuickFailures = 3
)

var (
	// errChannelBusy is returned while another session owns the alarm channel.
	errChannelBusy = errors.New("alarm channel is held by another session")
	// errNoSoundCommand is returned for a profile without a player command.
	errNoSoundCommand = errors.New("no sound command configured")
)

// AudioConfig describes how sounds are played.
type AudioConfig struct {
	// SoundCommands maps sound profiles to player argv. The "default" entry
	// is used for profiles without their own command.
	SoundCommands map[string][]string
	// SystemToneCommand plays the host alert tone. When empty the terminal bell is rung.
	SystemToneCommand []string
	// Bell receives bell characters; os.Stdout when nil.
	Bell io.Writer
	// BellInterval is the pause between bells.
	BellInterval time.Duration
}

// Audio implements host.Audio with external player processes.
type Audio struct {
	cfg AudioConfig

	mu     sync.Mutex
	holder *channel
}

// NewAudio creates the audio collaborator.
func NewAudio(cfg AudioConfig) *Audio {
	if cfg.Bell == nil {
		cfg.Bell = os.Stdout
	}

	if cfg.BellInterval <= 0 {
		cfg.BellInterval = DefaultBellInterval
	}

	return &Audio{cfg: cfg}
}

// AcquireAlarmChannel implements host.Audio. Only one channel exists.
func (a *Audio) AcquireAlarmChannel(_ context.Context) (host.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != nil {
		return nil, errChannelBusy
	}

	a.holder = &channel{
		audio:   a,
		revoked: make(chan struct{}),
	}

	return a.holder, nil
}

// PlayLooping implements host.Audio.
func (a *Audio) PlayLooping(ctx context.Context, source domain.Source) (host.Handle, error) {
	argv, err := a.command(source)
	if err != nil {
		return nil, err
	}

	if len(argv) == 0 {
		return startBell(a.cfg.Bell, a.cfg.BellInterval), nil
	}

	p, err := startPlayer(logger.WithKV(ctx, "player", argv[0]), argv)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// command resolves the player argv for a source. An empty argv means the terminal bell.
func (a *Audio) command(source domain.Source) ([]string, error) {
	if source.Kind == domain.SourceSystemTone {
		return a.cfg.SystemToneCommand, nil
	}

	if argv, ok := a.cfg.SoundCommands[string(source.Profile)]; ok && len(argv) > 0 {
		return argv, nil
	}

	if argv, ok := a.cfg.SoundCommands[string(domain.SoundProfileDefault)]; ok && len(argv) > 0 {
		return argv, nil
	}

	return nil, fmt.Errorf("profile %q: %w: %w", source.Profile, errNoSoundCommand, host.ErrUnsupported)
}

// ReapOrphans kills player processes left behind by a crashed daemon: those
// reparented to init whose executable is one of the configured players.
func (a *Audio) ReapOrphans(ctx context.Context) error {
	players := make(map[string]struct{})

	for _, argv := range a.cfg.SoundCommands {
		if len(argv) > 0 {
			players[filepath.Base(argv[0])] = struct{}{}
		}
	}

	if len(a.cfg.SystemToneCommand) > 0 {
		players[filepath.Base(a.cfg.SystemToneCommand[0])] = struct{}{}
	}

	if len(players) == 0 {
		return nil
	}

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.PPid() != 1 {
			continue
		}

		if _, found := players[process.Executable()]; !found {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Killed orphaned player",
			"pid", process.Pid(),
			"executable", process.Executable())
	}

	return nil
}

func (a *Audio) release(c *channel) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == c {
		a.holder = nil
	}
}

// channel is the single alarm audio channel. The desktop never revokes it.
type channel struct {
	audio   *Audio
	revoked chan struct{}
	once    sync.Once
}

func (c *channel) Revoked() <-chan struct{} {
	return c.revoked
}

func (c *channel) Release() error {
	c.once.Do(func() {
		c.audio.release(c)
	})

	return nil
}

// player restarts argv every time it exits until stopped.
type player struct {
	argv   []string
	failed chan error
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	process *os.Process
	stopped bool
}

func startPlayer(ctx context.Context, argv []string) (*player, error) {
	p := &player{
		argv:   argv,
		failed: make(chan error, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	cmd, err := p.spawn()
	if err != nil {
		return nil, fmt.Errorf("start player %s: %w", argv[0], err)
	}

	go p.run(ctx, cmd)

	return p, nil
}

func (p *player) Failed() <-chan error {
	return p.failed
}

func (p *player) Stop() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true

		if p.process != nil {
			_ = p.process.Kill()
		}

		p.mu.Unlock()

		close(p.stop)
	})

	<-p.done

	return nil
}

func (p *player) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stopped
}

// spawn starts one run of the player unless the loop is stopped.
func (p *player) spawn() (*exec.Cmd, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, nil
	}

	//nolint:gosec // Player commands come from the operator's configuration.
	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p.process = cmd.Process

	return cmd, nil
}

func (p *player) run(ctx context.Context, cmd *exec.Cmd) {
	defer close(p.done)

	quickFailures := 0

	for {
		started := time.Now()
		err := cmd.Wait()
		ranFor := time.Since(started)

		if p.isStopped() {
			return
		}

		if err != nil && ranFor < minRuntime {
			quickFailures++
		} else {
			quickFailures = 0
		}

		if quickFailures >= maxQuickFailures {
			p.failed <- fmt.Errorf("player %s keeps failing: %w", p.argv[0], err)

			return
		}

		if ranFor < minRuntime {
			select {
			case <-p.stop:
				return
			case <-time.After(restartDelay):
			}
		}

		logger.DebugKV(ctx, "Restarting player", "ran_for", ranFor, "error", err)

		cmd, err = p.spawn()
		if err != nil {
			p.failed <- fmt.Errorf("restart player %s: %w", p.argv[0], err)

			return
		}

		if cmd == nil {
			return
		}
	}
}

// bell rings the terminal bell until stopped. It never fails on its own.
type bell struct {
	failed chan error
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func startBell(out io.Writer, interval time.Duration) *bell {
	b := &bell{
		failed: make(chan error),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(b.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			_, _ = io.WriteString(out, "\a")

			select {
			case <-b.stop:
				return
			case <-ticker.C:
			}
		}
	}()

	return b
}

func (b *bell) Failed() <-chan error {
	return b.failed
}

func (b *bell) Stop() error {
	b.once.Do(func() {
		close(b.stop)
	})

	<-b.done

	return nil
}
