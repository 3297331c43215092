package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"proxyscout/internal/config"
	pkgerrors "proxyscout/pkg/errors"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persisted settings",
	Long: `List, read and change settings stored in the database.

Stored settings override built-in defaults. Environment variables and flags
override stored settings.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with their effective values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := appInstance.Storage.GetAllSettings(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE\tDESCRIPTION")
		fmt.Fprintln(w, "---\t-----\t------\t-----------")
		for _, key := range config.Keys() {
			src := "default"
			if _, ok := stored[key]; ok {
				src = "stored"
			}
			if name, ok := config.EnvSource(key, os.LookupEnv); ok {
				src = "env " + name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, appInstance.Config.Masked(key), src, config.Help(key))
		}
		return w.Flush()
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print the effective value of a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := appInstance.Config.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Store a setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Validate against a copy so a bad value never reaches the database.
		probe := appInstance.Config.Clone()
		if err := probe.Set(key, value); err != nil {
			return err
		}
		if err := probe.Validate(); err != nil {
			return err
		}
		if strings.HasPrefix(key, "schedule.") {
			if err := probe.ValidateSchedule(); err != nil {
				return err
			}
		}
		if err := appInstance.Storage.SetSetting(context.Background(), key, value); err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, probe.Masked(key))
		if name, ok := config.EnvSource(key, os.LookupEnv); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "note: %s is set and takes precedence\n", name)
		}
		return nil
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:               "unset <key>",
	Short:             "Remove a stored setting, restoring the default",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if _, err := appInstance.Config.Get(key); err != nil {
			return err
		}
		err := appInstance.Storage.DeleteSetting(context.Background(), key)
		if errors.Is(err, pkgerrors.ErrSettingMissing) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not stored\n", key)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", key)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	rootCmd.AddCommand(settingsCmd)
}
