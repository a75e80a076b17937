package alarm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/logger"
)

// Engine abstracts the session manager operations the transport layer depends on.
type Engine interface {
	Schedule(ctx context.Context, def *domain.Definition) (string, error)
	Cancel(ctx context.Context, id string) error
	Snooze(ctx context.Context, id string, minutesOverride int) error
	Dismiss(ctx context.Context, id string) error
	GetStatus(id string) (domain.State, error)
	Get(id string) (*domain.Definition, bool)
	Sessions() []*domain.Session
	GetActiveSession() (*domain.Session, bool)
	List() []*domain.Definition
	Volatile(id string) bool
	History() []domain.Outcome
}

// Watcher hands out lifecycle event subscriptions.
type Watcher interface {
	Subscribe() (<-chan domain.Event, func())
}

// ReliabilityReporter tells whether an alarm got only an inexact host timer.
type ReliabilityReporter interface {
	ReducedReliability(id string) bool
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// engine provides the business logic for alarm operations.
	engine      Engine
	watcher     Watcher
	reliability ReliabilityReporter
}

// NewServer wires the provided engine into a gRPC handler. watcher and
// reliability may be nil.
func NewServer(engine Engine, watcher Watcher, reliability ReliabilityReporter) *Server {
	return &Server{
		engine:      engine,
		watcher:     watcher,
		reliability: reliability,
	}
}

// Schedule arms a new alarm. A persistence failure still arms it and is
// reported through the volatile flag.
func (s *Server) Schedule(ctx context.Context, req *ScheduleRequest) (*ScheduleResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	def, err := req.Alarm.ToDefinition()
	if err != nil {
		return nil, toStatus(err)
	}

	id, err := s.engine.Schedule(ctx, def)

	volatile := errors.Is(err, domain.ErrPersistence)
	if err != nil && !volatile {
		return nil, toStatus(err)
	}

	response := &ScheduleResponse{
		ID:       id,
		Volatile: volatile,
	}

	if armed, ok := s.engine.Get(id); ok {
		response.TriggerAt = armed.TriggerAt
	}

	if s.reliability != nil {
		response.ReducedReliability = s.reliability.ReducedReliability(id)
	}

	return response, nil
}

// Cancel disarms an armed alarm; anything else is a no-op.
func (s *Server) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	id, err := requireID(req.GetID())
	if err != nil {
		return nil, err
	}

	if err = s.engine.Cancel(ctx, id); err != nil {
		return nil, toStatus(err)
	}

	return &CancelResponse{}, nil
}

// Snooze silences a ringing alarm and re-arms it.
func (s *Server) Snooze(ctx context.Context, req *SnoozeRequest) (*SnoozeResponse, error) {
	id, err := requireID(req.GetID())
	if err != nil {
		return nil, err
	}

	if req.Minutes < 0 {
		return nil, status.Error(codes.InvalidArgument, "snooze minutes must not be negative")
	}

	err = s.engine.Snooze(ctx, id, req.Minutes)

	volatile := errors.Is(err, domain.ErrPersistence)
	if err != nil && !volatile {
		return nil, toStatus(err)
	}

	response := &SnoozeResponse{
		ID:       id,
		Volatile: volatile,
	}

	if armed, ok := s.engine.Get(id); ok {
		response.TriggerAt = armed.TriggerAt
	}

	return response, nil
}

// Dismiss stops a ringing alarm. Repeated calls succeed.
func (s *Server) Dismiss(ctx context.Context, req *DismissRequest) (*DismissResponse, error) {
	id, err := requireID(req.GetID())
	if err != nil {
		return nil, err
	}

	if err = s.engine.Dismiss(ctx, id); err != nil {
		return nil, toStatus(err)
	}

	return &DismissResponse{}, nil
}

// GetStatus returns the state of one alarm.
func (s *Server) GetStatus(_ context.Context, req *GetStatusRequest) (*GetStatusResponse, error) {
	id, err := requireID(req.GetID())
	if err != nil {
		return nil, err
	}

	state, err := s.engine.GetStatus(id)
	if err != nil {
		return nil, toStatus(err)
	}

	return &GetStatusResponse{ID: id, State: string(state)}, nil
}

// GetActiveSession returns the ringing session and the ones waiting behind it.
func (s *Server) GetActiveSession(context.Context, *GetActiveSessionRequest) (*GetActiveSessionResponse, error) {
	response := new(GetActiveSessionResponse)

	active, ok := s.engine.GetActiveSession()
	if !ok {
		return response, nil
	}

	session := FromSession(active)
	response.Session = &session

	for _, other := range s.engine.Sessions() {
		if other.AlarmID != active.AlarmID {
			response.Waiting = append(response.Waiting, FromSession(other))
		}
	}

	return response, nil
}

// List returns the armed alarms.
func (s *Server) List(context.Context, *ListRequest) (*ListResponse, error) {
	definitions := s.engine.List()

	response := &ListResponse{Alarms: make([]Alarm, 0, len(definitions))}
	for _, def := range definitions {
		alarm := FromDefinition(def)
		alarm.Volatile = s.engine.Volatile(def.ID)
		response.Alarms = append(response.Alarms, alarm)
	}

	return response, nil
}

// History returns finished sessions, newest first.
func (s *Server) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	outcomes := s.engine.History()

	response := &HistoryResponse{Outcomes: make([]Outcome, 0, len(outcomes))}
	for _, outcome := range outcomes {
		response.Outcomes = append(response.Outcomes, Outcome{
			AlarmID:  outcome.AlarmID,
			State:    string(outcome.State),
			EndedAt:  outcome.EndedAt,
			Degraded: outcome.Degraded,
		})
	}

	return response, nil
}

// WatchSurface streams lifecycle events until the client goes away. It starts
// with one snapshot event per live session.
func (s *Server) WatchSurface(_ *WatchSurfaceRequest, stream grpc.ServerStreamingServer[SurfaceEvent]) error {
	if s.watcher == nil {
		return status.Error(codes.Unimplemented, "event stream is not available")
	}

	ctx := logger.WithName(stream.Context(), "watch-surface")

	events, unsubscribe := s.watcher.Subscribe()
	defer unsubscribe()

	for _, session := range s.engine.Sessions() {
		snapshot := &SurfaceEvent{
			Type:       string(domain.EventFired),
			AlarmID:    session.AlarmID,
			Label:      session.Label,
			State:      string(session.State),
			Degraded:   session.Degraded,
			OccurredAt: session.FiredAt,
			Snapshot:   true,
		}

		if err := stream.Send(snapshot); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}

			if err := stream.Send(FromEvent(event)); err != nil {
				logger.DebugKV(ctx, "Watcher went away", "error", err)

				return err
			}
		}
	}
}

// GetID returns the id of a possibly nil request.
func (r *CancelRequest) GetID() string {
	if r == nil {
		return ""
	}

	return r.ID
}

// GetID returns the id of a possibly nil request.
func (r *SnoozeRequest) GetID() string {
	if r == nil {
		return ""
	}

	return r.ID
}

// GetID returns the id of a possibly nil request.
func (r *DismissRequest) GetID() string {
	if r == nil {
		return ""
	}

	return r.ID
}

// GetID returns the id of a possibly nil request.
func (r *GetStatusRequest) GetID() string {
	if r == nil {
		return ""
	}

	return r.ID
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "alarm id is required")
	}

	return id, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	var code codes.Code

	switch {
	case errors.Is(err, domain.ErrInvalidAlarmDefinition):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrPermissionDenied):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrUnsupported):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrSchedulingFailed):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrAlarmNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}

	return status.Error(code, err.Error())
}
