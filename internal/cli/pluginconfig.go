package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/skiffworks/skiff/internal/plugin"
)

func newPluginConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write a plugin's configuration",
		Long: `Read and write a plugin's config.json. Values are addressed with
dot paths and parsed as JSON when possible, so numbers, booleans, and
objects keep their types.

Examples:
  skiff plugin config show git-helper
  skiff plugin config get git-helper remote.name
  skiff plugin config set git-helper remote.name origin
  skiff plugin config set git-helper fetch.depth 50
  skiff plugin config unset git-helper remote`,
	}

	cmd.AddCommand(
		newPluginConfigShowCommand(a),
		newPluginConfigGetCommand(a),
		newPluginConfigSetCommand(a),
		newPluginConfigUnsetCommand(a),
	)

	return cmd
}

func newPluginConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plugin>",
		Short: "Print a plugin's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := a.readPluginConfig(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(data) == 0 || string(data) == "{}" {
				fmt.Fprintln(out, "No configuration.")
				return nil
			}
			out.Write(pretty.Pretty(data))
			return nil
		},
	}
}

func newPluginConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <plugin> <path>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := a.readPluginConfig(args[0])
			if err != nil {
				return err
			}
			result := gjson.GetBytes(data, args[1])
			if !result.Exists() {
				return fmt.Errorf("plugin %q has no value at %q", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}
}

func newPluginConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <plugin> <path> <value>",
		Short: "Set one configuration value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginConfigSet(a, cmd, args[0], args[1], args[2])
		},
	}
}

func runPluginConfigSet(a *app, cmd *cobra.Command, name, path, value string) error {
	data, configPath, err := a.readPluginConfig(name)
	if err != nil {
		return err
	}

	updated, err := sjson.SetBytes(data, path, parseConfigValue(value))
	if err != nil {
		return fmt.Errorf("setting %q: %w", path, err)
	}

	if err := writePluginConfig(configPath, updated); err != nil {
		return err
	}
	okf(cmd.OutOrStdout(), "Set %s", path)
	return nil
}

func newPluginConfigUnsetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <plugin> <path>",
		Short: "Remove one configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginConfigUnset(a, cmd, args[0], args[1])
		},
	}
}

func runPluginConfigUnset(a *app, cmd *cobra.Command, name, path string) error {
	data, configPath, err := a.readPluginConfig(name)
	if err != nil {
		return err
	}
	if !gjson.GetBytes(data, path).Exists() {
		return fmt.Errorf("plugin %q has no value at %q", name, path)
	}

	updated, err := sjson.DeleteBytes(data, path)
	if err != nil {
		return fmt.Errorf("removing %q: %w", path, err)
	}

	if err := writePluginConfig(configPath, updated); err != nil {
		return err
	}
	okf(cmd.OutOrStdout(), "Removed %s", path)
	return nil
}

// readPluginConfig returns the plugin's raw config.json and its path.
// A missing file reads as an empty object.
func (a *app) readPluginConfig(name string) ([]byte, string, error) {
	store := plugin.NewStore(a.pluginRoot, a.logger)
	if _, err := os.Stat(store.PluginDir(name)); err != nil {
		return nil, "", fmt.Errorf("plugin %q: %w", name, plugin.ErrPluginNotFound)
	}

	configPath := filepath.Join(store.PluginDir(name), plugin.ConfigFile)
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return []byte("{}"), configPath, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", configPath, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, "", fmt.Errorf("%s is not valid JSON", configPath)
	}
	return data, configPath, nil
}

func writePluginConfig(path string, data []byte) error {
	if err := os.WriteFile(path, pretty.Pretty(data), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// parseConfigValue keeps JSON types: values that parse as JSON are
// stored typed, everything else is stored as a string.
func parseConfigValue(value string) any {
	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err == nil {
		return parsed
	}
	return value
}
