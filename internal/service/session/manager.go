package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/lock"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/repository/alarms"
	"github.com/oshokin/wake-alarm/internal/service/playback"
)

// Policy decides what happens when an alarm fires while another one plays.
type Policy string

const (
	// PolicyQueue lets the new alarm wait; sessions play in fire order.
	PolicyQueue Policy = "queue"
	// PolicyPreempt plays the newest alarm and re-queues the interrupted one at the head.
	PolicyPreempt Policy = "preempt"
)

const (
	// DefaultFiringTimeout bounds how long a session may stay in Firing.
	DefaultFiringTimeout = 2 * time.Second
	// DefaultHistorySize is how many finished sessions are remembered.
	DefaultHistorySize = 64
)

// ParsePolicy converts configuration input into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch policy := Policy(strings.ToLower(strings.TrimSpace(s))); policy {
	case "":
		return PolicyQueue, nil
	case PolicyQueue, PolicyPreempt:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown concurrency policy %q", s)
	}
}

// Scheduler arms and disarms host wake registrations.
type Scheduler interface {
	Arm(ctx context.Context, id string, at time.Time) error
	Disarm(ctx context.Context, id string) error
}

// Observer receives lifecycle events. Notify must not block.
type Observer interface {
	Notify(ctx context.Context, event domain.Event)
}

// Config tunes the manager.
type Config struct {
	// Policy is the concurrency policy for the playback slot.
	Policy Policy
	// FiringTimeout forces Firing to Playing when no layer confirms in time.
	FiringTimeout time.Duration
	// HistorySize bounds the finished-session history.
	HistorySize int
}

// Dependencies are the collaborators of the manager.
type Dependencies struct {
	Store     alarms.Store
	Scheduler Scheduler
	Player    *playback.Orchestrator
	Presenter host.Presenter
	Observer  Observer
	// Locks is shared with the recovery coordinator.
	Locks *lock.MutexMap
}

// Manager is the alarm session manager.
type Manager struct {
	cfg       Config
	store     alarms.Store
	scheduler Scheduler
	player    *playback.Orchestrator
	presenter host.Presenter
	observer  Observer
	locks     *lock.MutexMap

	// ctx carries the logger for work not tied to a request.
	ctx context.Context //nolint:containedctx // Fire callbacks and timers have no caller context.

	// rebalanceMu serializes hand-over of the playback slot.
	rebalanceMu sync.Mutex

	// mu protects every field below. It is never held across I/O.
	mu       sync.RWMutex
	armed    map[string]*domain.Definition
	volatile map[string]struct{}
	sessions map[string]*entry
	playing  string
	queue    []string
	closed   bool

	history    *lru.Cache[uint64, domain.Outcome]
	historySeq atomic.Uint64
}

// entry is a live session with its runtime resources.
type entry struct {
	def         *domain.Definition
	session     *domain.Session
	playback    *playback.Playback
	firingTimer *time.Timer
	expiryTimer *time.Timer
}

// NewManager creates a manager.
func NewManager(ctx context.Context, cfg Config, deps Dependencies) (*Manager, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyQueue
	}

	if cfg.FiringTimeout <= 0 {
		cfg.FiringTimeout = DefaultFiringTimeout
	}

	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	history, err := lru.New[uint64, domain.Outcome](cfg.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("create session history: %w", err)
	}

	locks := deps.Locks
	if locks == nil {
		locks = lock.NewMutexMap()
	}

	return &Manager{
		cfg:       cfg,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		player:    deps.Player,
		presenter: deps.Presenter,
		observer:  deps.Observer,
		locks:     locks,
		ctx:       logger.WithName(context.WithoutCancel(ctx), "session-manager"),
		armed:     make(map[string]*domain.Definition),
		volatile:  make(map[string]struct{}),
		sessions:  make(map[string]*entry),
		history:   history,
	}, nil
}

// Track registers a definition that is already persisted and armed with the
// host. The recovery coordinator calls it while holding the id lock.
func (m *Manager) Track(def *domain.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ringing := m.sessions[def.ID]; ringing {
		return
	}

	m.armed[def.ID] = def.Clone()
	m.updateGaugesLocked()
}

// GetStatus returns the state of an alarm. Unknown ids report StateIdle and
// domain.ErrAlarmNotFound.
func (m *Manager) GetStatus(id string) (domain.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.sessions[id]; ok {
		return e.session.State, nil
	}

	if _, ok := m.armed[id]; ok {
		return domain.StateArmed, nil
	}

	return domain.StateIdle, domain.ErrAlarmNotFound
}

// Get returns the armed definition of id.
func (m *Manager) Get(id string) (*domain.Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.armed[id]

	return def.Clone(), ok
}

// GetActiveSession returns the session holding the playback slot or, when the
// slot is free, the oldest waiting session.
func (m *Manager) GetActiveSession() (*domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.sessions[m.playing]; ok {
		return e.session.Clone(), true
	}

	for _, id := range m.queue {
		if e, ok := m.sessions[id]; ok {
			return e.session.Clone(), true
		}
	}

	return nil, false
}

// Sessions returns every live session ordered by fire time.
func (m *Manager) Sessions() []*domain.Session {
	m.mu.RLock()

	result := make([]*domain.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		result = append(result, e.session.Clone())
	}

	m.mu.RUnlock()

	slices.SortFunc(result, func(a, b *domain.Session) int {
		return a.FiredAt.Compare(b.FiredAt)
	})

	return result
}

// List returns the armed definitions ordered by trigger time.
func (m *Manager) List() []*domain.Definition {
	m.mu.RLock()

	result := make([]*domain.Definition, 0, len(m.armed))
	for _, def := range m.armed {
		result = append(result, def.Clone())
	}

	m.mu.RUnlock()

	slices.SortFunc(result, func(a, b *domain.Definition) int {
		if c := a.TriggerAt.Compare(b.TriggerAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return result
}

// Volatile reports whether an armed alarm failed to persist and will be lost on restart.
func (m *Manager) Volatile(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.volatile[id]

	return ok
}

// History returns finished sessions, newest first.
func (m *Manager) History() []domain.Outcome {
	outcomes := m.history.Values()
	slices.Reverse(outcomes)

	return outcomes
}

// Close stops every live session without recording outcomes. Definitions stay
// persisted so a restart can recover them. Queued sessions are not started
// after Close.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	ids := slices.Collect(maps.Keys(m.sessions))
	m.mu.Unlock()

	var errs []error

	for _, id := range ids {
		if err := m.closeSession(id); err != nil {
			errs = append(errs, err)
		}
	}

	return joinErrors(errs)
}

func (m *Manager) closeSession(id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	stopTimers(e)

	if e.playback == nil {
		return nil
	}

	return e.playback.Stop()
}

func (m *Manager) emit(ctx context.Context, event domain.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if m.observer != nil {
		m.observer.Notify(ctx, event)
	}
}

func (m *Manager) recordOutcome(outcome domain.Outcome) {
	m.history.Add(m.historySeq.Add(1), outcome)
}
