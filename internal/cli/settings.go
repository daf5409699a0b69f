package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skiffworks/skiff/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write skiff settings",
		Long: `Read and write skiff settings in ~/.skiff/config.toml.

Settings resolve as flag > environment (SKIFF_*) > file > default.
"get" and "list" show the resolved values; "set" edits the file.`,
	}

	cmd.AddCommand(
		newConfigListCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigPathCommand(a),
	)

	return cmd
}

func newConfigListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, key := range config.Keys() {
				value, err := a.settings.Get(key)
				if err != nil {
					return err
				}
				display := value
				switch {
				case key == "api_key" && value != "":
					display = "(set)"
				case value == "":
					display = dimStyle.Render("(unset)")
				}
				fmt.Fprintf(out, "%s %s\n", padRight(key, 14), display)
			}
			return nil
		},
	}
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one resolved setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.settings.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one setting to the settings file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}

	// Edit the file view, not the resolved view, so environment
	// overrides never get baked in.
	settings, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := settings.Set(key, value); err != nil {
		return err
	}
	if err := settings.Save(path); err != nil {
		return err
	}

	okf(cmd.OutOrStdout(), "Set %s", key)
	return nil
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
