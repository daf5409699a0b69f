package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/skiffworks/skiff/internal/logging"
)

// Installer fetches plugin files into the plugin root and removes them
// again. The Manager never interprets sources itself; it only sequences
// installer calls with loading, registration, and persistence.
type Installer interface {
	// Install places the plugin's files under the plugin root.
	Install(ctx context.Context, name, source string) error

	// Uninstall removes the plugin's files from the plugin root.
	Uninstall(name string) error
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store provides descriptor, config, and enabled-set persistence.
	Store *Store

	// Registry receives plugin capabilities.
	Registry *Registry

	// Loader loads plugins. Built from Store and Registry when nil.
	Loader *Loader

	// Installer fetches and removes plugin files. Optional; without it
	// Install fails and Uninstall removes the plugin directory itself.
	Installer Installer

	// HostVersion is used for descriptor compatibility checks when the
	// Manager builds its own Loader.
	HostVersion string

	// Logger for lifecycle events. Defaults to the null logger.
	Logger *logging.Logger
}

// Manager owns the full plugin lifecycle: install, load, enable,
// disable, reload, and uninstall. It keeps the capability registry, the
// persisted enabled set, and the set of live instances consistent with
// each other.
//
// A single mutex serializes every operation. Lifecycle changes are rare
// and cheap next to the Lua work they trigger, so there is nothing to
// win by letting them interleave.
type Manager struct {
	mu sync.Mutex

	store     *Store
	registry  *Registry
	loader    *Loader
	installer Installer
	logger    *logging.Logger

	// Loaded instances by name, plus load order for deterministic
	// iteration.
	instances map[string]*Instance
	loadOrder []string

	// In-memory mirror of the persisted enabled set. Updated and
	// persisted together under mu.
	enabled map[string]bool
}

// NewManager creates a manager from config. The persisted enabled set is
// read immediately; plugins are not loaded until Load or LoadAll.
func NewManager(config ManagerConfig) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = logging.NullLogger
	}

	loader := config.Loader
	if loader == nil {
		loader = NewLoader(config.Store, config.Registry, logger, WithHostVersion(config.HostVersion))
	}

	return &Manager{
		store:     config.Store,
		registry:  config.Registry,
		loader:    loader,
		installer: config.Installer,
		logger:    logger.WithComponent("manager"),
		instances: make(map[string]*Instance),
		loadOrder: make([]string, 0),
		enabled:   config.Store.ReadEnabled(),
	}
}

// Load loads an installed plugin. Returns ErrAlreadyLoaded if the plugin
// is already live.
func (m *Manager) Load(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[name]; exists {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	return m.loadLocked(ctx, name)
}

// loadLocked runs the loader and records the instance. Must be called
// with mu held and name not loaded.
func (m *Manager) loadLocked(ctx context.Context, name string) (*Instance, error) {
	inst, err := m.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	m.instances[name] = inst
	m.loadOrder = append(m.loadOrder, name)
	return inst, nil
}

// LoadAll loads every installed plugin. Individual failures are logged
// and skipped so one broken plugin cannot block the rest; the combined
// failures come back as a single error.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.store.Installed()
	if err != nil {
		return err
	}

	var loadErrors []error
	for _, name := range names {
		if _, exists := m.instances[name]; exists {
			continue
		}
		if _, err := m.loadLocked(ctx, name); err != nil {
			m.logger.Warn("skipping plugin %s: %v", name, err)
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d plugins: %w", len(loadErrors), errors.Join(loadErrors...))
	}
	return nil
}

// Install fetches a plugin through the installer, loads it, and fires
// its onInstall hook. An installer failure is returned untouched and
// nothing is loaded.
func (m *Manager) Install(ctx context.Context, name, source string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[name]; exists {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	if m.installer == nil {
		return nil, fmt.Errorf("plugin %q: no installer configured", name)
	}

	if err := m.installer.Install(ctx, name, source); err != nil {
		return nil, err
	}

	inst, err := m.loadLocked(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := inst.callHook(hookOnInstall); err != nil {
		m.logger.Warn("%v", err)
	}

	m.logger.Info("installed plugin %s", inst.descriptor)
	return inst, nil
}

// Uninstall removes a plugin completely: its capabilities, its instance,
// its enabled entry, and finally its files. The onUninstall hook runs
// first and may fail without stopping the uninstall. A failure to
// persist the enabled set aborts before any files are removed.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, loaded := m.instances[name]
	if !loaded {
		if _, err := os.Stat(m.store.PluginDir(name)); err != nil {
			return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
		}
	}

	if loaded {
		if err := inst.callHook(hookOnUninstall); err != nil {
			m.logger.Warn("%v", err)
		}
	}

	m.registry.RevokeAll(name)

	if loaded {
		inst.close()
		delete(m.instances, name)
		m.removeFromLoadOrder(name)
	}

	if m.enabled[name] {
		delete(m.enabled, name)
		if err := m.persistEnabled(); err != nil {
			m.enabled[name] = true
			return err
		}
	}

	if m.installer != nil {
		if err := m.installer.Uninstall(name); err != nil {
			return fmt.Errorf("plugin %q: %w", name, err)
		}
	} else if err := os.RemoveAll(m.store.PluginDir(name)); err != nil {
		return fmt.Errorf("plugin %q: %w", name, err)
	}

	m.logger.Info("uninstalled plugin %s", name)
	return nil
}

// Enable marks a loaded plugin enabled, persists the change, and fires
// its onEnable hook. Enabling a plugin that is not loaded fails with
// ErrNotLoaded and leaves the enabled set untouched.
func (m *Manager) Enable(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.instances[name]
	if !exists {
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}
	if m.enabled[name] && inst.status == StateEnabled {
		return nil
	}

	m.enabled[name] = true
	if err := m.persistEnabled(); err != nil {
		delete(m.enabled, name)
		return err
	}

	if err := inst.callHook(hookOnEnable); err != nil {
		m.logger.Warn("%v", err)
	}
	inst.status = StateEnabled

	m.logger.Info("enabled plugin %s", name)
	return nil
}

// Disable fires a loaded plugin's onDisable hook, removes it from the
// enabled set, and persists the change. The plugin stays loaded and its
// capabilities stay registered; only the enabled flag changes.
func (m *Manager) Disable(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.instances[name]
	if !exists {
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}
	if !m.enabled[name] && inst.status != StateEnabled {
		return nil
	}

	if err := inst.callHook(hookOnDisable); err != nil {
		m.logger.Warn("%v", err)
	}

	delete(m.enabled, name)
	if err := m.persistEnabled(); err != nil {
		m.enabled[name] = true
		return err
	}
	inst.status = StateLoaded

	m.logger.Info("disabled plugin %s", name)
	return nil
}

// Reload tears a loaded plugin down and loads it fresh from disk. Its
// capabilities are revoked and re-registered by the new instance, so a
// reload never duplicates registrations. Returns ErrNotLoaded when the
// plugin is not live.
func (m *Manager) Reload(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.instances[name]
	if !exists {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}

	if inst.status == StateEnabled {
		if err := inst.callHook(hookOnDisable); err != nil {
			m.logger.Warn("%v", err)
		}
	}

	inst.close()
	delete(m.instances, name)
	m.removeFromLoadOrder(name)
	m.registry.RevokeAll(name)

	fresh, err := m.loadLocked(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reload of %q failed: %w", name, err)
	}

	m.logger.Info("reloaded plugin %s", name)
	return fresh, nil
}

// Unload drops a plugin from the session without touching its files or
// its persisted enabled state. Its capabilities are revoked; the next
// LoadAll brings it back.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.instances[name]
	if !exists {
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}

	if inst.status == StateEnabled {
		if err := inst.callHook(hookOnDisable); err != nil {
			m.logger.Warn("%v", err)
		}
	}

	m.registry.RevokeAll(name)
	inst.close()
	delete(m.instances, name)
	m.removeFromLoadOrder(name)

	m.logger.Debug("unloaded plugin %s", name)
	return nil
}

// Get returns a loaded instance by name.
func (m *Manager) Get(name string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.instances[name]
	return inst, exists
}

// List returns all loaded instances in load order.
func (m *Manager) List() []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Instance, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if inst, exists := m.instances[name]; exists {
			result = append(result, inst)
		}
	}
	return result
}

// IsEnabled reports whether a plugin is in the enabled set. The plugin
// does not have to be loaded.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[name]
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Store returns the manager's descriptor store.
func (m *Manager) Store() *Store {
	return m.store
}

// Registry returns the manager's capability registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Close tears down all loaded instances in reverse load order. No hooks
// fire and the enabled set is untouched; enabled plugins come back
// enabled next session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.loadOrder) - 1; i >= 0; i-- {
		if inst, exists := m.instances[m.loadOrder[i]]; exists {
			inst.close()
		}
	}
	m.instances = make(map[string]*Instance)
	m.loadOrder = m.loadOrder[:0]
}

// persistEnabled writes the in-memory enabled set through the store.
// Must be called with mu held.
func (m *Manager) persistEnabled() error {
	names := make([]string, 0, len(m.enabled))
	for name := range m.enabled {
		names = append(names, name)
	}
	return m.store.WriteEnabled(names)
}

// removeFromLoadOrder removes a name from the load order slice.
// Must be called with mu held.
func (m *Manager) removeFromLoadOrder(name string) {
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			return
		}
	}
}
