package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runtime settings",
	Long: `View and update the runtime settings stored in the config file.

A running daemon picks up changes within a few seconds.

Keys: ` + fmt.Sprint(config.Keys()) + `
Dotted aliases such as report.time and retention.days are accepted.`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. The value is validated before it is saved.

Examples:
  mtrack config set report_time 22:30
  mtrack config set retention.days 30
  mtrack config set report_dir ~/Documents/activity`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), app.Settings.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	snap := app.Settings.Current()
	printTitle(out, fmt.Sprintf("Settings (%s)", app.Settings.Path()))
	for _, key := range config.Keys() {
		v, err := snap.Settings.Get(key)
		if err != nil {
			return err
		}
		printField(out, key, v)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	v, err := app.Settings.Current().Settings.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := config.NormalizeKey(args[0])
	snap, err := app.Settings.Set(key, args[1])
	if err != nil {
		return err
	}
	v, _ := snap.Settings.Get(key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, v)
	return nil
}
