package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin directory or its
	// descriptor cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInvalidMetadata is returned when a descriptor is unparsable or
	// missing required fields.
	ErrInvalidMetadata = errors.New("invalid plugin metadata")

	// ErrMissingEntryPoint is returned when the descriptor's entry point
	// file does not exist under the plugin directory.
	ErrMissingEntryPoint = errors.New("plugin entry point not found")

	// ErrNoPluginClass is returned when the entry module exposes no
	// recognizable plugin constructor.
	ErrNoPluginClass = errors.New("no plugin constructor found")

	// ErrInterfaceMismatch is returned when an instantiated plugin does not
	// match its descriptor, such as reporting a different name.
	ErrInterfaceMismatch = errors.New("plugin does not match its descriptor")

	// ErrHookFailure is returned when an optional lifecycle or registration
	// hook raises an error. Callers log it and continue.
	ErrHookFailure = errors.New("plugin hook failed")

	// ErrPersistenceFailure is returned when the enabled-set cannot be
	// written. This is the only error lifecycle operations propagate.
	ErrPersistenceFailure = errors.New("failed to persist enabled plugins")

	// ErrAlreadyLoaded is returned when attempting to load an already loaded plugin.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrNotLoaded is returned when attempting to use an unloaded plugin.
	ErrNotLoaded = errors.New("plugin is not loaded")
)
