package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/skiffworks/skiff/internal/logging"
)

// Files the store maintains under the plugin root.
const (
	// EnabledFile persists the set of enabled plugin names.
	EnabledFile = "enabled.json"
	// ConfigFile is the optional per-plugin configuration file.
	ConfigFile = "config.json"
)

// Store reads and writes plugin metadata under a plugin root directory.
// Layout:
//
//	<root>/
//	  enabled.json            { "plugins": [name, ...] }
//	  <name>/
//	    package.json          descriptor
//	    config.json           optional configuration
//	    <entryPoint>          Lua module named by the descriptor
//
// Reads of the enabled-set and per-plugin config fail soft: a missing or
// corrupt file yields an empty result with a logged warning, so the host
// stays usable with a damaged state file. Writing the enabled-set is the
// one operation that fails hard.
type Store struct {
	root   string
	logger *logging.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Store{root: dir, logger: logger.WithComponent("store")}
}

// Root returns the plugin root directory.
func (s *Store) Root() string {
	return s.root
}

// PluginDir returns the directory for the named plugin.
func (s *Store) PluginDir(name string) string {
	return filepath.Join(s.root, name)
}

// Installed returns the names of all installed plugins, sorted. A plugin
// is installed when its directory contains a descriptor file. A missing
// root directory means no plugins are installed.
func (s *Store) Installed() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugin root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), DescriptorFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadDescriptor loads and validates the named plugin's descriptor.
// Returns ErrPluginNotFound if the descriptor file is absent and
// ErrInvalidMetadata if it is unparsable or incomplete.
func (s *Store) ReadDescriptor(name string) (*Descriptor, error) {
	return LoadDescriptorFromDir(s.PluginDir(name))
}

// ReadConfig returns the named plugin's configuration mapping. A missing
// config file yields an empty mapping; an unparsable one yields an empty
// mapping with a logged warning.
func (s *Store) ReadConfig(name string) map[string]any {
	path := filepath.Join(s.PluginDir(name), ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read config for %s: %v", name, err)
		}
		return map[string]any{}
	}

	if !gjson.ValidBytes(data) {
		s.logger.Warn("config for %s is not valid JSON, using empty config", name)
		return map[string]any{}
	}

	parsed := gjson.ParseBytes(data).Value()
	m, ok := parsed.(map[string]any)
	if !ok {
		s.logger.Warn("config for %s is not a JSON object, using empty config", name)
		return map[string]any{}
	}
	return m
}

// enabledSet is the persisted shape of the enabled-set file.
type enabledSet struct {
	Plugins []string `json:"plugins"`
}

// ReadEnabled returns the set of enabled plugin names. Reads fail soft: a
// missing file is an empty set, and a corrupt file is an empty set with a
// logged warning. Never returns an error.
func (s *Store) ReadEnabled() map[string]bool {
	enabled := make(map[string]bool)

	data, err := os.ReadFile(filepath.Join(s.root, EnabledFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read enabled plugins: %v", err)
		}
		return enabled
	}

	if !gjson.ValidBytes(data) {
		s.logger.Warn("enabled plugins file is not valid JSON, treating all plugins as disabled")
		return enabled
	}

	names := gjson.GetBytes(data, "plugins")
	if !names.IsArray() {
		s.logger.Warn("enabled plugins file has no plugin list, treating all plugins as disabled")
		return enabled
	}

	for _, name := range names.Array() {
		if name.Type == gjson.String {
			enabled[name.String()] = true
		}
	}
	return enabled
}

// WriteEnabled persists the set of enabled plugin names. The write goes
// through a temp file and rename so a crash cannot leave a half-written
// state file. Failures wrap ErrPersistenceFailure.
func (s *Store) WriteEnabled(names []string) error {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	data, err := json.MarshalIndent(enabledSet{Plugins: sorted}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	path := filepath.Join(s.root, EnabledFile)
	tmp, err := os.CreateTemp(s.root, EnabledFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return nil
}
