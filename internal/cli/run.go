package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skiffworks/skiff/internal/plugin"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Run a command provided by a plugin",
		Long: `Run a command registered by an installed plugin. Remaining arguments
are passed to the command's handler.

Use "skiff run" with no arguments to list the available commands.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListCommands(a, cmd)
			}
			return runPluginHandler(a, cmd, args[0], args[1:])
		},
	}

	return cmd
}

func runListCommands(a *app, cmd *cobra.Command) error {
	m := a.manager()
	defer m.Close()
	loadAllQuietly(a, m, cmd)

	commands := m.Registry().ListAll(plugin.KindCommand)
	out := cmd.OutOrStdout()
	if len(commands) == 0 {
		fmt.Fprintln(out, "No commands available. Install a plugin that provides commands.")
		return nil
	}

	rows := make([][]string, 0, len(commands))
	for _, cap := range commands {
		command, ok := cap.(*plugin.Command)
		if !ok {
			continue
		}
		owner, _ := m.Registry().Owner(plugin.KindCommand, command.Name)
		rows = append(rows, []string{command.Name, owner, command.Description})
	}
	writeTable(out, []string{"COMMAND", "PLUGIN", "DESCRIPTION"}, rows,
		func(row, col int, cell string) lipgloss.Style {
			if col == 0 {
				return accentStyle
			}
			return plainStyle
		})
	return nil
}

func runPluginHandler(a *app, cmd *cobra.Command, name string, args []string) error {
	m := a.manager()
	defer m.Close()
	loadAllQuietly(a, m, cmd)

	cap, ok := m.Registry().Lookup(plugin.KindCommand, name)
	if !ok {
		available := capabilityNames(m.Registry().ListAll(plugin.KindCommand))
		if len(available) == 0 {
			return fmt.Errorf("unknown command %q: no plugin commands are registered", name)
		}
		return fmt.Errorf("unknown command %q (available: %s)", name, strings.Join(available, ", "))
	}
	command := cap.(*plugin.Command)

	callArgs := make([]any, len(args))
	for i, arg := range args {
		callArgs[i] = arg
	}

	result, err := command.Handler.Invoke(callArgs...)
	if err != nil {
		return fmt.Errorf("command %q: %w", name, err)
	}
	if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
	}
	return nil
}

// loadAllQuietly loads every installed plugin; individual failures are
// already logged by the manager and must not block the others.
func loadAllQuietly(a *app, m *plugin.Manager, cmd *cobra.Command) {
	if err := m.LoadAll(cmd.Context()); err != nil {
		a.logger.Debug("some plugins failed to load: %v", err)
	}
}

// formatResult renders a handler's return value for the terminal.
// Tables come back as maps or slices and are printed as JSON.
func formatResult(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		if data, err := json.MarshalIndent(val, "", "  "); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}
