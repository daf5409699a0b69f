package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUninstalled - Plugin has no files on disk.
	StateUninstalled State = iota

	// StateInstalled - Plugin files are on disk but not loaded.
	StateInstalled

	// StateLoaded - Plugin is in memory with its capabilities registered,
	// but not enabled.
	StateLoaded

	// StateEnabled - Plugin is loaded and enabled.
	StateEnabled

	// StateError - Plugin failed to load.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateLoaded:
		return "loaded"
	case StateEnabled:
		return "enabled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsLoaded returns true if the plugin is resident in memory.
func (s State) IsLoaded() bool {
	return s == StateLoaded || s == StateEnabled
}
