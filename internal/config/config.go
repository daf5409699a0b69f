package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DirName is skiff's home directory under the user's home.
	DirName = ".skiff"

	// FileName is the settings file inside the skiff home.
	FileName = "config.toml"

	// PluginDirName is the default plugin root inside the skiff home.
	PluginDirName = "plugins"
)

// Settings holds the CLI's persistent configuration. Values are layered:
// defaults, then the settings file, then SKIFF_* environment variables.
// Command line flags override on top of the loaded result.
type Settings struct {
	// PluginRoot overrides the plugin directory. Empty means
	// ~/.skiff/plugins. A leading ~/ is expanded.
	PluginRoot string `toml:"plugin_root,omitempty"`

	// RegistryURL overrides the plugin registry. Empty means the public
	// registry.
	RegistryURL string `toml:"registry_url,omitempty"`

	// APIKey authenticates against the plugin registry.
	APIKey string `toml:"api_key,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level,omitempty"`
}

// envOverrides maps environment variables onto settings fields. A set
// variable overrides the file value even when it is empty.
func (s *Settings) envOverrides() map[string]*string {
	return map[string]*string{
		"SKIFF_PLUGIN_ROOT":  &s.PluginRoot,
		"SKIFF_REGISTRY_URL": &s.RegistryURL,
		"SKIFF_API_KEY":      &s.APIKey,
		"SKIFF_LOG_LEVEL":    &s.LogLevel,
	}
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		LogLevel: "info",
	}
}

// Dir returns the skiff home directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Path returns the settings file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the settings file from the skiff home, layered over
// defaults and under environment overrides.
func Load() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from path with environment overrides applied.
// A missing file is not an error; defaults are returned.
func LoadFrom(path string) (*Settings, error) {
	s, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.applyEnv()
	return s, nil
}

// LoadFile reads settings from path without environment overrides. This
// is the view used when editing the file, so overrides never get baked
// into it.
func LoadFile(path string) (*Settings, error) {
	s := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	for env, field := range s.envOverrides() {
		if val, ok := os.LookupEnv(env); ok {
			*field = val
		}
	}
}

// Save writes the settings to path with owner-only permissions; the
// file can hold a registry API key.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}

// PluginDir resolves the effective plugin root directory.
func (s *Settings) PluginDir() (string, error) {
	root := s.PluginRoot
	switch {
	case root == "":
		dir, err := Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, PluginDirName), nil

	case root == "~" || strings.HasPrefix(root, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(root, "~")), nil
	}
	return root, nil
}

// Keys lists the settable configuration keys in display order.
func Keys() []string {
	return []string{"plugin_root", "registry_url", "api_key", "log_level"}
}

// Get returns the value of a settings key by name.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "plugin_root":
		return s.PluginRoot, nil
	case "registry_url":
		return s.RegistryURL, nil
	case "api_key":
		return s.APIKey, nil
	case "log_level":
		return s.LogLevel, nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

// Set updates a settings key by name.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "plugin_root":
		s.PluginRoot = value
	case "registry_url":
		s.RegistryURL = value
	case "api_key":
		s.APIKey = value
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
			s.LogLevel = value
		default:
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", value)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
