//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/version"
)

// Client wraps the gRPC AlarmService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the AlarmService client.
	api *api.AlarmServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is announced to the daemon on every call when set.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor announces the caller to the daemon's audit log.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errIDRequired is returned when an alarm id is not provided.
	errIDRequired = errors.New("alarm id must be provided")
)

// Dial establishes a gRPC connection to the daemon.
// Note: this uses insecure transport credentials; the daemon listens on
// loopback by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent("alarmctl")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial alarm daemon: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewAlarmServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Schedule arms an alarm and returns the daemon's answer.
func (c *Client) Schedule(ctx context.Context, alarm api.Alarm) (*api.ScheduleResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Schedule(callCtx, &api.ScheduleRequest{Alarm: alarm})
	if err != nil {
		return nil, fmt.Errorf("schedule alarm: %w", err)
	}

	return response, nil
}

// Cancel disarms an alarm.
func (c *Client) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return errIDRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Cancel(callCtx, &api.CancelRequest{ID: id}); err != nil {
		return fmt.Errorf("cancel alarm: %w", err)
	}

	return nil
}

// Snooze silences a ringing alarm for minutes, or its own snooze duration when zero.
func (c *Client) Snooze(ctx context.Context, id string, minutes int) (*api.SnoozeResponse, error) {
	if id == "" {
		return nil, errIDRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Snooze(callCtx, &api.SnoozeRequest{ID: id, Minutes: minutes})
	if err != nil {
		return nil, fmt.Errorf("snooze alarm: %w", err)
	}

	return response, nil
}

// Dismiss stops a ringing alarm.
func (c *Client) Dismiss(ctx context.Context, id string) error {
	if id == "" {
		return errIDRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Dismiss(callCtx, &api.DismissRequest{ID: id}); err != nil {
		return fmt.Errorf("dismiss alarm: %w", err)
	}

	return nil
}

// GetStatus returns the state of one alarm.
func (c *Client) GetStatus(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errIDRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, &api.GetStatusRequest{ID: id})
	if err != nil {
		return "", fmt.Errorf("get alarm status: %w", err)
	}

	return response.State, nil
}

// GetActiveSession returns the ringing session, if any.
func (c *Client) GetActiveSession(ctx context.Context) (*api.GetActiveSessionResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetActiveSession(callCtx, &api.GetActiveSessionRequest{})
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}

	return response, nil
}

// List returns the armed alarms.
func (c *Client) List(ctx context.Context) ([]api.Alarm, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.List(callCtx, &api.ListRequest{})
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	return response.Alarms, nil
}

// History returns finished sessions, newest first.
func (c *Client) History(ctx context.Context) ([]api.Outcome, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.History(callCtx, &api.HistoryRequest{})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return response.Outcomes, nil
}

// WatchSurface streams lifecycle events until ctx is cancelled. The call
// timeout does not apply.
func (c *Client) WatchSurface(ctx context.Context) (grpc.ServerStreamingClient[api.SurfaceEvent], error) {
	stream, err := c.api.WatchSurface(c.withActor(ctx), &api.WatchSurfaceRequest{})
	if err != nil {
		return nil, fmt.Errorf("watch surface: %w", err)
	}

	return stream, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.withActor(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) withActor(ctx context.Context) context.Context {
	if c.actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, api.ActorMetadataKey, c.actor)
}
