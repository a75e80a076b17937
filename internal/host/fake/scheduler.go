package fake

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// Scheduler is a host.Scheduler double.
type Scheduler struct {
	mu sync.Mutex
	// armed maps ids to their pending trigger time.
	armed map[string]time.Time
	// timers holds auto-fire timers per id.
	timers map[string]*time.Timer
	// handler receives fire callbacks.
	handler host.FireHandler
	// armErr is returned by ArmWake when set.
	armErr error
	// reliability is the class reported by successful ArmWake calls.
	reliability host.Reliability
	// autoFire fires registrations from timers when enabled.
	autoFire bool
	// armCalls and disarmCalls count invocations.
	armCalls    int
	disarmCalls int
}

// NewScheduler creates a precise scheduler that fires only through Fire.
func NewScheduler() *Scheduler {
	return &Scheduler{
		armed:       make(map[string]time.Time),
		timers:      make(map[string]*time.Timer),
		reliability: host.ReliabilityPrecise,
	}
}

// NewAutoScheduler creates a scheduler that fires each registration at its time.
func NewAutoScheduler() *Scheduler {
	s := NewScheduler()
	s.autoFire = true

	return s
}

// ArmWake records the registration, replacing any previous one for id.
func (s *Scheduler) ArmWake(_ context.Context, id string, at time.Time) (host.Reliability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armCalls++

	if s.armErr != nil {
		return "", s.armErr
	}

	s.armed[id] = at

	if s.autoFire {
		if timer, ok := s.timers[id]; ok {
			timer.Stop()
		}

		s.timers[id] = time.AfterFunc(time.Until(at), func() {
			s.fireScheduled(id, at)
		})
	}

	return s.reliability, nil
}

// DisarmWake removes the registration for id.
func (s *Scheduler) DisarmWake(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmCalls++

	delete(s.armed, id)

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}

	return nil
}

// SetFireHandler installs the fire callback.
func (s *Scheduler) SetFireHandler(handler host.FireHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}

// Fire delivers a callback for id synchronously, whether or not it is armed.
// Calling it twice simulates at-least-once duplicate delivery.
func (s *Scheduler) Fire(id string) {
	s.mu.Lock()
	delete(s.armed, id)
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(id)
	}
}

// Deny makes subsequent ArmWake calls fail with err; nil restores success.
func (s *Scheduler) Deny(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armErr = err
}

// SetReliability changes the timer class reported by ArmWake.
func (s *Scheduler) SetReliability(reliability host.Reliability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reliability = reliability
}

// Armed returns the pending trigger time for id.
func (s *Scheduler) Armed(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.armed[id]

	return at, ok
}

// ArmCalls returns how many times ArmWake was called.
func (s *Scheduler) ArmCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armCalls
}

// DisarmCalls returns how many times DisarmWake was called.
func (s *Scheduler) DisarmCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disarmCalls
}

// Reset forgets every registration, simulating a host reboot.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}

	clear(s.armed)
}

func (s *Scheduler) fireScheduled(id string, at time.Time) {
	s.mu.Lock()

	current, ok := s.armed[id]
	if !ok || !current.Equal(at) {
		s.mu.Unlock()

		return
	}

	delete(s.armed, id)
	delete(s.timers, id)
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(id)
	}
}
