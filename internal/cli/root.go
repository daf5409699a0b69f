package cli

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/skiffworks/skiff/internal/config"
	"github.com/skiffworks/skiff/internal/installer"
	"github.com/skiffworks/skiff/internal/logging"
	"github.com/skiffworks/skiff/internal/marketplace"
	"github.com/skiffworks/skiff/internal/plugin"
)

// app carries the resolved runtime shared by every command: settings
// after flag and environment layering, the effective plugin root, and
// the logger.
type app struct {
	version    string
	settings   *config.Settings
	pluginRoot string
	logger     *logging.Logger
}

// NewRootCommand builds the skiff command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	a := &app{version: version}
	var flagPluginRoot string
	var flagLogLevel string
	var flagRegistry string

	root := &cobra.Command{
		Use:   "skiff",
		Short: "skiff - a plugin-powered workspace CLI",
		Long: `Skiff is an extensible command line workbench. Beyond plugin
management, every command skiff knows comes from an installed plugin:
plugins register commands, tools, themes, and extensions written in Lua.

Install plugins from the registry, enable the ones you want, and run
their commands:

  skiff search git
  skiff plugin install git-helper --enable
  skiff run git-status`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(flagPluginRoot, flagLogLevel, flagRegistry)
		},
	}

	root.PersistentFlags().StringVar(&flagPluginRoot, "plugin-root", "", "plugin directory (default ~/.skiff/plugins)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flagRegistry, "registry", "", "plugin registry URL")

	root.AddCommand(
		newPluginCommand(a),
		newRunCommand(a),
		newSearchCommand(a),
		newConfigCommand(a),
	)

	return root
}

// init resolves settings with flags layered on top, then builds the
// shared logger.
func (a *app) init(flagPluginRoot, flagLogLevel, flagRegistry string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	if flagPluginRoot != "" {
		settings.PluginRoot = flagPluginRoot
	}
	if flagLogLevel != "" {
		if err := settings.Set("log_level", flagLogLevel); err != nil {
			return err
		}
	}
	if flagRegistry != "" {
		settings.RegistryURL = flagRegistry
	}

	root, err := settings.PluginDir()
	if err != nil {
		return err
	}

	a.settings = settings
	a.pluginRoot = root
	a.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(settings.LogLevel),
		Output: os.Stderr,
	})
	return nil
}

// market builds a registry client from the resolved settings.
func (a *app) market() *marketplace.Client {
	opts := []marketplace.Option{marketplace.WithLogger(a.logger)}
	if a.settings.APIKey != "" {
		opts = append(opts, marketplace.WithAPIKey(a.settings.APIKey))
	}
	return marketplace.NewClient(a.settings.RegistryURL, opts...)
}

// manager builds a plugin manager rooted at the effective plugin dir.
func (a *app) manager() *plugin.Manager {
	inst := installer.New(a.pluginRoot,
		installer.WithMarketplace(a.market()),
		installer.WithLogger(a.logger))

	return plugin.NewManager(plugin.ManagerConfig{
		Store:       plugin.NewStore(a.pluginRoot, a.logger),
		Registry:    plugin.NewRegistry(),
		Installer:   inst,
		HostVersion: a.hostVersion(),
		Logger:      a.logger,
	})
}

// hostVersion returns the build version when it is a semantic version.
// Dev builds report no version, which skips compatibility checks.
func (a *app) hostVersion() string {
	if _, err := semver.NewVersion(a.version); err != nil {
		return ""
	}
	return a.version
}
