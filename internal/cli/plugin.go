package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/skiffworks/skiff/internal/logging"
	"github.com/skiffworks/skiff/internal/plugin"
)

func newPluginCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugin",
		Aliases: []string{"plugins"},
		Short:   "Manage installed plugins",
	}

	cmd.AddCommand(
		newPluginListCommand(a),
		newPluginInfoCommand(a),
		newPluginInstallCommand(a),
		newPluginUninstallCommand(a),
		newPluginEnableCommand(a),
		newPluginDisableCommand(a),
		newPluginReloadCommand(a),
		newPluginConfigCommand(a),
		newSearchCommand(a),
	)

	return cmd
}

func newPluginListCommand(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginList(a, cmd, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "fuzzy filter by plugin name")

	return cmd
}

func runPluginList(a *app, cmd *cobra.Command, filter string) error {
	store := plugin.NewStore(a.pluginRoot, a.logger)
	names, err := store.Installed()
	if err != nil {
		return err
	}

	if filter != "" {
		matches := fuzzy.Find(filter, names)
		filtered := make([]string, 0, len(matches))
		for _, match := range matches {
			filtered = append(filtered, names[match.Index])
		}
		names = filtered
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		if filter != "" {
			fmt.Fprintf(out, "No plugins match %q.\n", filter)
		} else {
			fmt.Fprintln(out, "No plugins installed.")
		}
		return nil
	}

	enabled := store.ReadEnabled()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		desc, err := store.ReadDescriptor(name)
		if err != nil {
			rows = append(rows, []string{name, "-", "-", "invalid", err.Error()})
			continue
		}
		status := "disabled"
		if enabled[name] {
			status = "enabled"
		}
		rows = append(rows, []string{desc.Name, desc.Version, string(desc.Type), status, desc.Description})
	}

	writeTable(out, []string{"NAME", "VERSION", "TYPE", "STATUS", "DESCRIPTION"}, rows,
		func(row, col int, cell string) lipgloss.Style {
			if col != 3 {
				return plainStyle
			}
			switch cell {
			case "enabled":
				return successStyle
			case "invalid":
				return errorStyle
			default:
				return dimStyle
			}
		})
	return nil
}

func newPluginInfoCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a plugin's details and capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginInfo(a, cmd, args[0])
		},
	}

	return cmd
}

func runPluginInfo(a *app, cmd *cobra.Command, name string) error {
	store := plugin.NewStore(a.pluginRoot, a.logger)
	desc, err := store.ReadDescriptor(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(desc.String()))
	fmt.Fprintf(out, "%s\n\n", desc.Description)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "  %s %s\n", dimStyle.Render(padRight(label+":", 14)), value)
		}
	}
	field("Author", desc.Author)
	field("Type", string(desc.Type))
	field("Entry point", desc.EntryPoint)
	field("Tags", strings.Join(desc.Tags, ", "))
	field("Dependencies", strings.Join(desc.Dependencies, ", "))
	field("Permissions", strings.Join(desc.Permissions, ", "))

	if constraint, ok := desc.Compatibility[plugin.HostName]; ok {
		verdict := constraint
		if hv := a.hostVersion(); hv != "" {
			if ok, err := desc.CompatibleWith(plugin.HostName, hv); err != nil {
				verdict = fmt.Sprintf("%s (%s)", constraint, warnStyle.Render("unparsable"))
			} else if ok {
				verdict = fmt.Sprintf("%s (%s)", constraint, successStyle.Render("compatible"))
			} else {
				verdict = fmt.Sprintf("%s (%s)", constraint, errorStyle.Render("incompatible with "+hv))
			}
		}
		field("Requires", plugin.HostName+" "+verdict)
	}

	status := "disabled"
	if store.ReadEnabled()[name] {
		status = "enabled"
	}
	field("Status", status)

	// Load the plugin in isolation to report what it provides.
	m := plugin.NewManager(plugin.ManagerConfig{
		Store:       plugin.NewStore(a.pluginRoot, logging.NullLogger),
		Registry:    plugin.NewRegistry(),
		HostVersion: a.hostVersion(),
		Logger:      logging.NullLogger,
	})
	defer m.Close()

	inst, err := m.Load(cmd.Context(), name)
	if err != nil {
		fmt.Fprintf(out, "\n%s %v\n", errorStyle.Render("Load check failed:"), err)
		return nil
	}

	owned := m.Registry().CapabilitiesOf(name)
	if owned.Total() > 0 {
		fmt.Fprintf(out, "\n%s\n", titleStyle.Render("Capabilities"))
		printCapabilities(out, "commands", capabilityNames(owned.Commands))
		printCapabilities(out, "tools", capabilityNames(owned.Tools))
		printCapabilities(out, "themes", capabilityNames(owned.Themes))
		printCapabilities(out, "extensions", capabilityNames(owned.Extensions))
	}

	if hooks := inst.Hooks(); len(hooks) > 0 {
		fmt.Fprintf(out, "\n%s %s\n", dimStyle.Render("Hooks:"), strings.Join(hooks, ", "))
	}
	return nil
}

func capabilityNames[T plugin.Capability](caps []T) []string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.CapabilityName()
	}
	return names
}

func printCapabilities(out io.Writer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(out, "  %s %s\n", dimStyle.Render(padRight(label+":", 14)), strings.Join(names, ", "))
}

func newPluginInstallCommand(a *app) *cobra.Command {
	var source string
	var version string
	var enable bool

	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Install a plugin",
		Long: `Install a plugin from the registry, a URL, or a local path.

Without --source the plugin is fetched from the configured registry.
--source accepts an http(s) zip URL, a file:// URI, a local directory,
or a local zip archive.

Examples:
  skiff plugin install git-helper
  skiff plugin install git-helper --version 1.2.0 --enable
  skiff plugin install my-tool --source ./my-tool
  skiff plugin install my-tool --source https://example.com/my-tool.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != "" && version != "" {
				return fmt.Errorf("--source and --version are mutually exclusive")
			}
			src := source
			if version != "" {
				src = version
			}
			return runPluginInstall(a, cmd, args[0], src, enable)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "install source (URL, file:// URI, or local path)")
	cmd.Flags().StringVar(&version, "version", "", "registry version to install (default latest)")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable the plugin after installing")

	return cmd
}

func runPluginInstall(a *app, cmd *cobra.Command, name, source string, enable bool) error {
	m := a.manager()
	defer m.Close()

	inst, err := m.Install(cmd.Context(), name, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	okf(out, "Installed %s", inst.Descriptor().String())

	if owned := m.Registry().CapabilitiesOf(name); owned.Total() > 0 {
		fmt.Fprintf(out, "  provides %s\n", dimStyle.Render(describeCapabilities(owned)))
	}

	if enable {
		if err := m.Enable(cmd.Context(), name); err != nil {
			return err
		}
		okf(out, "Enabled %s", name)
	}
	return nil
}

// describeCapabilities summarizes capability counts, e.g. "2 commands, 1 theme".
func describeCapabilities(owned plugin.OwnedCapabilities) string {
	var parts []string
	add := func(n int, singular string) {
		switch {
		case n == 1:
			parts = append(parts, fmt.Sprintf("1 %s", singular))
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, singular))
		}
	}
	add(len(owned.Commands), "command")
	add(len(owned.Tools), "tool")
	add(len(owned.Themes), "theme")
	add(len(owned.Extensions), "extension")
	return strings.Join(parts, ", ")
}

func newPluginUninstallCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginUninstall(a, cmd, args[0])
		},
	}

	return cmd
}

func runPluginUninstall(a *app, cmd *cobra.Command, name string) error {
	m := a.manager()
	defer m.Close()

	// Load first so the plugin's onUninstall hook can run. A plugin that
	// no longer loads is still removable.
	loadPluginQuietly(cmd.Context(), m, name)

	if err := m.Uninstall(cmd.Context(), name); err != nil {
		return err
	}
	okf(cmd.OutOrStdout(), "Uninstalled %s", name)
	return nil
}

func newPluginEnableCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a plugin",
		Long:  `Enable a plugin so future sessions load it active and run its onEnable hook.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginEnable(a, cmd, args[0])
		},
	}

	return cmd
}

func runPluginEnable(a *app, cmd *cobra.Command, name string) error {
	m := a.manager()
	defer m.Close()

	if _, err := m.Load(cmd.Context(), name); err != nil {
		return err
	}
	if err := m.Enable(cmd.Context(), name); err != nil {
		return err
	}
	okf(cmd.OutOrStdout(), "Enabled %s", name)
	return nil
}

func newPluginDisableCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a plugin",
		Long:  `Disable a plugin. Its files stay installed and it can be enabled again later.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginDisable(a, cmd, args[0])
		},
	}

	return cmd
}

func runPluginDisable(a *app, cmd *cobra.Command, name string) error {
	m := a.manager()
	defer m.Close()

	if _, err := m.Load(cmd.Context(), name); err != nil {
		return err
	}
	if err := m.Disable(cmd.Context(), name); err != nil {
		return err
	}
	okf(cmd.OutOrStdout(), "Disabled %s", name)
	return nil
}

func newPluginReloadCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload <name>",
		Short: "Reload a plugin from disk",
		Long:  `Reload a plugin, re-reading its files and re-registering its capabilities. Useful while developing a plugin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginReload(a, cmd, args[0])
		},
	}

	return cmd
}

func runPluginReload(a *app, cmd *cobra.Command, name string) error {
	m := a.manager()
	defer m.Close()

	if _, err := m.Load(cmd.Context(), name); err != nil {
		return err
	}
	inst, err := m.Reload(cmd.Context(), name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	okf(out, "Reloaded %s", inst.Descriptor().String())
	if owned := m.Registry().CapabilitiesOf(name); owned.Total() > 0 {
		fmt.Fprintf(out, "  provides %s\n", dimStyle.Render(describeCapabilities(owned)))
	}
	return nil
}

// loadPluginQuietly loads a plugin ignoring failures. Lifecycle hooks
// only run on loaded plugins, so best effort loading lets hooks fire
// for commands that work on broken plugins too.
func loadPluginQuietly(ctx context.Context, m *plugin.Manager, name string) {
	_, _ = m.Load(ctx, name)
}
