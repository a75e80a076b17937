package client

import (
	"context"
	"io"
	"time"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/wake-alarm/internal/service/common"
)

// ScheduleOptions describes the alarm to create.
type ScheduleOptions struct {
	ID              string
	At              string
	In              time.Duration
	Label           string
	SoundProfile    string
	Vibrate         bool
	SnoozeMinutes   int
	MaxRingDuration time.Duration
}

// Schedule creates an alarm and prints its id.
func Schedule(ctx context.Context, opts *Options, alarm *ScheduleOptions) error {
	triggerAt, err := ParseTriggerAt(alarm.At, alarm.In, time.Now())
	if err != nil {
		return err
	}

	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		resp, err := client.Schedule(ctx, api.Alarm{
			ID:                    alarm.ID,
			TriggerAt:             triggerAt,
			Label:                 alarm.Label,
			SoundProfile:          alarm.SoundProfile,
			VibrationEnabled:      alarm.Vibrate,
			SnoozeDurationMinutes: alarm.SnoozeMinutes,
			MaxRingDurationMs:     alarm.MaxRingDuration.Milliseconds(),
		})
		if err != nil {
			return err
		}

		printScheduled(out, resp)

		return nil
	})
}

// Cancel removes an armed alarm.
func Cancel(ctx context.Context, opts *Options, id string) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		if err := client.Cancel(ctx, id); err != nil {
			return err
		}

		printDone(out, "Cancelled", id)

		return nil
	})
}

// Snooze silences a ringing alarm and re-arms it.
func Snooze(ctx context.Context, opts *Options, id string, minutes int) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		resp, err := client.Snooze(ctx, id, minutes)
		if err != nil {
			return err
		}

		printSnoozed(out, resp)

		return nil
	})
}

// Dismiss silences a ringing alarm for good.
func Dismiss(ctx context.Context, opts *Options, id string) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		if err := client.Dismiss(ctx, id); err != nil {
			return err
		}

		printDone(out, "Dismissed", id)

		return nil
	})
}

// Status prints the state of one alarm.
func Status(ctx context.Context, opts *Options, id string) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		state, err := client.GetStatus(ctx, id)
		if err != nil {
			return err
		}

		printStatus(out, id, state)

		return nil
	})
}

// List prints every armed alarm.
func List(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		alarms, err := client.List(ctx)
		if err != nil {
			return err
		}

		printAlarms(out, alarms, time.Now())

		return nil
	})
}

// Session prints the ringing session and the ones waiting for the slot.
func Session(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		resp, err := client.GetActiveSession(ctx)
		if err != nil {
			return err
		}

		printSession(out, resp)

		return nil
	})
}

// History prints finished sessions, newest first.
func History(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(client *common.Client, out io.Writer) error {
		outcomes, err := client.History(ctx)
		if err != nil {
			return err
		}

		printHistory(out, outcomes)

		return nil
	})
}
