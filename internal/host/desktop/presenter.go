package desktop

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
)

const (
	notificationsDest      = "org.freedesktop.Notifications"
	notificationsPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsInterface = "org.freedesktop.Notifications"

	// urgencyCritical keeps the notification until it is closed.
	urgencyCritical = byte(2)
	// noExpiry asks the server never to expire the notification.
	noExpiry = int32(0)
)

// notifier is the subset of a D-Bus object the presenter calls.
type notifier interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Presenter implements host.Presenter with freedesktop notifications. Without
// a session bus it only logs the surface.
type Presenter struct {
	appName string
	object  notifier

	mu  sync.Mutex
	ids map[string]uint32
}

// NewPresenter connects to the session bus.
func NewPresenter(ctx context.Context, appName string) *Presenter {
	p := &Presenter{
		appName: appName,
		ids:     make(map[string]uint32),
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		logger.WarnKV(ctx, "Session bus is unavailable, alarms will only be logged", "error", err)

		return p
	}

	p.object = conn.Object(notificationsDest, notificationsPath)

	return p
}

// Present implements host.Presenter.
func (p *Presenter) Present(ctx context.Context, surface host.Surface) error {
	summary := "Alarm"
	if surface.Label != "" {
		summary = surface.Label
	}

	body := "Snooze or dismiss with alarmctl."
	if surface.Degraded {
		body = "Sound playback failed. " + body
	}

	logger.InfoKV(ctx, "Alarm is ringing",
		"alarm_id", surface.AlarmID,
		"label", surface.Label,
		"degraded", surface.Degraded)

	if p.object == nil {
		return nil
	}

	p.mu.Lock()
	replaces := p.ids[surface.AlarmID]
	p.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyCritical),
		"category": dbus.MakeVariant("alarm"),
	}

	var id uint32

	err := p.object.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		p.appName, replaces, "alarm-symbolic", summary, body, []string{}, hints, noExpiry,
	).Store(&id)
	if err != nil {
		return fmt.Errorf("show notification: %w", err)
	}

	p.mu.Lock()
	p.ids[surface.AlarmID] = id
	p.mu.Unlock()

	return nil
}

// Withdraw implements host.Presenter.
func (p *Presenter) Withdraw(ctx context.Context, alarmID string) error {
	p.mu.Lock()
	id, ok := p.ids[alarmID]
	delete(p.ids, alarmID)
	p.mu.Unlock()

	if !ok || p.object == nil {
		return nil
	}

	call := p.object.CallWithContext(ctx, notificationsInterface+".CloseNotification", 0, id)
	if call.Err != nil {
		return fmt.Errorf("close notification: %w", call.Err)
	}

	return nil
}
