package desktop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// DefaultMaxCheckInterval bounds how long a precise registration sleeps
// before it looks at the wall clock again.
const DefaultMaxCheckInterval = 30 * time.Second

// Scheduler keeps wake registrations in process.
//
// In precise mode every registration compares the wall clock with its target
// at least once per max check interval, so a suspend/resume or a clock step
// can neither make it fire early nor let it sleep past the target. In inexact
// mode a single monotonic timer is used and the host's power policy may
// defer it.
type Scheduler struct {
	reliability      host.Reliability
	maxCheckInterval time.Duration

	mu            sync.Mutex
	registrations map[string]*registration
	handler       host.FireHandler
}

type registration struct {
	at     time.Time
	cancel chan struct{}
}

// NewScheduler creates a scheduler of the given timer class.
func NewScheduler(reliability host.Reliability, maxCheckInterval time.Duration) *Scheduler {
	if maxCheckInterval <= 0 {
		maxCheckInterval = DefaultMaxCheckInterval
	}

	return &Scheduler{
		reliability:      reliability,
		maxCheckInterval: maxCheckInterval,
		registrations:    make(map[string]*registration),
	}
}

// ArmWake implements host.Scheduler.
func (s *Scheduler) ArmWake(_ context.Context, id string, at time.Time) (host.Reliability, error) {
	switch s.reliability {
	case host.ReliabilityPrecise, host.ReliabilityInexact:
	default:
		return "", fmt.Errorf("timer class %q: %w", s.reliability, host.ErrUnsupported)
	}

	reg := &registration{
		at:     at.Round(0),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()

	if previous, ok := s.registrations[id]; ok {
		close(previous.cancel)
	}

	s.registrations[id] = reg
	s.mu.Unlock()

	if s.reliability == host.ReliabilityPrecise {
		go s.watchWallClock(id, reg)
	} else {
		go s.watchMonotonic(id, reg)
	}

	return s.reliability, nil
}

// DisarmWake implements host.Scheduler.
func (s *Scheduler) DisarmWake(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg, ok := s.registrations[id]; ok {
		close(reg.cancel)
		delete(s.registrations, id)
	}

	return nil
}

// SetFireHandler implements host.Scheduler.
func (s *Scheduler) SetFireHandler(handler host.FireHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}

// Pending returns the number of outstanding registrations.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.registrations)
}

// Close drops every registration.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, reg := range s.registrations {
		close(reg.cancel)
		delete(s.registrations, id)
	}
}

func (s *Scheduler) watchWallClock(id string, reg *registration) {
	for {
		// Round(0) drops the monotonic reading so the comparison follows the wall clock.
		wait := reg.at.Sub(time.Now().Round(0))
		if wait <= 0 {
			s.fire(id, reg)

			return
		}

		timer := time.NewTimer(min(wait, s.maxCheckInterval))

		select {
		case <-reg.cancel:
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) watchMonotonic(id string, reg *registration) {
	timer := time.NewTimer(time.Until(reg.at))
	defer timer.Stop()

	select {
	case <-reg.cancel:
	case <-timer.C:
		s.fire(id, reg)
	}
}

func (s *Scheduler) fire(id string, reg *registration) {
	s.mu.Lock()

	if s.registrations[id] != reg {
		s.mu.Unlock()

		return
	}

	delete(s.registrations, id)
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(id)
	}
}
