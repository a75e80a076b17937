package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/wake-alarm/internal/service/checker"
	"github.com/oshokin/wake-alarm/internal/service/client"
)

func newScheduleCommand() *cobra.Command {
	alarm := &client.ScheduleOptions{}

	command := &cobra.Command{
		Use:   "schedule",
		Short: "Arm a new alarm.",
		Long: `Arms a new alarm at an absolute time (--at) or after a delay (--in).

--at accepts RFC 3339, "YYYY-MM-DD HH:MM" or a bare "HH:MM", which means the
next occurrence of that clock time.`,
		Example: `  alarmctl schedule --at 06:45 --label "Work" --vibrate
  alarmctl schedule --in 20m --label "Nap"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.Schedule(cmd.Context(), options, alarm)
		},
	}

	flags := command.Flags()
	flags.StringVar(&alarm.ID, "id", "", "alarm id, generated when empty")
	flags.StringVar(&alarm.At, "at", "", "absolute trigger time")
	flags.DurationVar(&alarm.In, "in", 0, "trigger after this delay")
	flags.StringVarP(&alarm.Label, "label", "l", "", "label shown while ringing")
	flags.StringVar(&alarm.SoundProfile, "sound", "", "sound profile (default, alert or custom)")
	flags.BoolVar(&alarm.Vibrate, "vibrate", false, "pulse the vibrator while ringing")
	flags.IntVar(&alarm.SnoozeMinutes, "snooze", 0, "default snooze length in minutes")
	flags.DurationVar(&alarm.MaxRingDuration, "max-ring", 0, "stop ringing after this long")

	return command
}

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Disarm an alarm that has not fired yet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Cancel(cmd.Context(), options, args[0])
		},
	}
}

func newSnoozeCommand() *cobra.Command {
	var minutes int

	command := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Silence a ringing alarm and ring again later.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Snooze(cmd.Context(), options, args[0], minutes)
		},
	}

	command.Flags().IntVarP(&minutes, "minutes", "m", 0, "snooze length, the alarm's default when zero")

	return command
}

func newDismissCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Silence a ringing alarm for good.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Dismiss(cmd.Context(), options, args[0])
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Print the state of an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Status(cmd.Context(), options, args[0])
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List armed alarms.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.List(cmd.Context(), options)
		},
	}
}

func newSessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the ringing alarm and the ones waiting.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.Session(cmd.Context(), options)
		},
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recently finished sessions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.History(cmd.Context(), options)
		},
	}
}

func newWatchCommand() *cobra.Command {
	var retryInterval time.Duration

	command := &cobra.Command{
		Use:   "watch",
		Short: "Stream alarm lifecycle events.",
		Long: `Prints every lifecycle event as it happens, starting with the sessions
that are ringing right now. The stream is re-opened when the daemon restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checker.Run(cmd.Context(), &checker.Options{
				ConfigPath:    options.ConfigPath,
				ServerAddress: options.ServerAddress,
				RetryInterval: retryInterval,
			})
		},
	}

	command.Flags().DurationVar(&retryInterval, "retry", checker.DefaultRetryInterval, "pause before reconnecting")

	return command
}
