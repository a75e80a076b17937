package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/wake-alarm/internal/config"
)

func newConfigCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file.",
	}

	var force bool

	initCommand := &cobra.Command{
		Use:   "init",
		Short: "Write the settings file with every value spelled out.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := options.ConfigPath

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to rewrite it", path)
			}

			settings, err := config.Load(path)
			if err != nil {
				return err
			}

			if err = config.Save(path, settings); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return nil
		},
	}

	initCommand.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	command.AddCommand(initCommand)

	return command
}
