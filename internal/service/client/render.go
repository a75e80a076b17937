package client

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

const timeLayout = "Mon 2006-01-02 15:04:05"

var (
	cyan   = color.New(color.FgCyan, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
)

func printScheduled(out io.Writer, resp *api.ScheduleResponse) {
	green.Fprint(out, "Scheduled ")
	fmt.Fprintf(out, "%s for %s\n", resp.ID, resp.TriggerAt.Local().Format(timeLayout))

	if resp.Volatile {
		yellow.Fprintln(out, "Warning: the alarm could not be saved and will be lost if the daemon restarts")
	}

	if resp.ReducedReliability {
		yellow.Fprintln(out, "Warning: the host cannot guarantee an exact wake-up, the alarm may ring late")
	}
}

func printSnoozed(out io.Writer, resp *api.SnoozeResponse) {
	green.Fprint(out, "Snoozed ")
	fmt.Fprintf(out, "%s until %s\n", resp.ID, resp.TriggerAt.Local().Format(timeLayout))

	if resp.Volatile {
		yellow.Fprintln(out, "Warning: the new time could not be saved and will be lost if the daemon restarts")
	}
}

func printDone(out io.Writer, verb, id string) {
	green.Fprint(out, verb+" ")
	fmt.Fprintln(out, id)
}

func printStatus(out io.Writer, id, state string) {
	fmt.Fprintf(out, "%s: ", id)
	stateColor(state).Fprintln(out, state)
}

func printAlarms(out io.Writer, alarms []api.Alarm, now time.Time) {
	if len(alarms) == 0 {
		fmt.Fprintln(out, "No alarms armed")

		return
	}

	cyan.Fprintf(out, "%-36s  %-23s  %-10s  %s\n", "ID", "TRIGGER", "IN", "LABEL")

	for _, alarm := range alarms {
		label := lo.Ternary(alarm.Label == "", "-", alarm.Label)
		if alarm.Volatile {
			label += " " + yellow.Sprint("(unsaved)")
		}

		fmt.Fprintf(out, "%-36s  %-23s  %-10s  %s\n",
			alarm.ID,
			alarm.TriggerAt.Local().Format(timeLayout),
			formatRemaining(alarm.TriggerAt.Sub(now)),
			label)
	}
}

func printSession(out io.Writer, resp *api.GetActiveSessionResponse) {
	if resp.Session == nil {
		fmt.Fprintln(out, "No alarm is ringing")

		return
	}

	session := resp.Session

	cyan.Fprintln(out, "Active session")
	fmt.Fprintf(out, "Alarm:      %s\n", session.AlarmID)

	if session.Label != "" {
		fmt.Fprintf(out, "Label:      %s\n", session.Label)
	}

	fmt.Fprint(out, "State:      ")
	stateColor(session.State).Fprintln(out, session.State)
	fmt.Fprintf(out, "Fired at:   %s\n", session.FiredAt.Local().Format(timeLayout))

	if !session.DeadlineAt.IsZero() {
		fmt.Fprintf(out, "Expires at: %s\n", session.DeadlineAt.Local().Format(timeLayout))
	}

	fmt.Fprintf(out, "Layers:     %s\n", formatLayers(session.LayerStatus))
	fmt.Fprintf(out, "Focus:      %s\n", lo.Ternary(session.FocusHeld, "held", "released"))
	fmt.Fprintf(out, "Wake lock:  %s\n", lo.Ternary(session.WakeLockHeld, "held", "released"))

	if session.Degraded {
		red.Fprintln(out, "Degraded:   yes")
	}

	if len(resp.Waiting) == 0 {
		return
	}

	waiting := lo.Map(resp.Waiting, func(s api.Session, _ int) string {
		return s.AlarmID
	})

	fmt.Fprintf(out, "Waiting:    %s\n", strings.Join(waiting, ", "))
}

func printHistory(out io.Writer, outcomes []api.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No finished sessions yet")

		return
	}

	cyan.Fprintf(out, "%-23s  %-36s  %s\n", "ENDED", "ID", "OUTCOME")

	for _, outcome := range outcomes {
		fmt.Fprintf(out, "%-23s  %-36s  ", outcome.EndedAt.Local().Format(timeLayout), outcome.AlarmID)
		stateColor(outcome.State).Fprint(out, outcome.State)

		if outcome.Degraded {
			yellow.Fprint(out, " (degraded)")
		}

		fmt.Fprintln(out)
	}
}

func stateColor(state string) *color.Color {
	switch domain.State(state) {
	case domain.StateFiring, domain.StatePlaying:
		return red
	case domain.StateArmed, domain.StateSnoozed:
		return green
	case domain.StateQueued, domain.StateExpired:
		return yellow
	default:
		return color.New(color.Reset)
	}
}

// formatLayers renders layer statuses as "primary=playing backup=off", sorted by layer.
func formatLayers(layers map[string]string) string {
	if len(layers) == 0 {
		return "-"
	}

	names := lo.Keys(layers)
	slices.Sort(names)

	return strings.Join(lo.Map(names, func(name string, _ int) string {
		return name + "=" + layers[name]
	}), " ")
}

// formatRemaining renders a countdown rounded to the minute.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "due"
	}

	d = d.Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%dh%02dm", hours, minutes)
}
