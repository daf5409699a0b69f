package plugin

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

// Lifecycle hooks a plugin instance may expose. All are optional and take
// no arguments.
const (
	hookOnInstall   = "onInstall"
	hookOnUninstall = "onUninstall"
	hookOnEnable    = "onEnable"
	hookOnDisable   = "onDisable"
)

// Instance is a loaded, live plugin: its descriptor, its Lua runtime, the
// instantiated plugin object, and its execution context. Instances are
// owned by the Manager; they are created on load and destroyed on
// uninstall or reload.
type Instance struct {
	descriptor *Descriptor
	ctx        *ExecutionContext

	state  *plua.State
	bridge *plua.Bridge
	self   *lua.LTable // the instantiated plugin object

	status State
}

// Name returns the plugin's name.
func (in *Instance) Name() string {
	return in.descriptor.Name
}

// Descriptor returns a copy of the plugin's descriptor.
func (in *Instance) Descriptor() *Descriptor {
	return in.descriptor.Clone()
}

// Context returns the plugin's execution context.
func (in *Instance) Context() *ExecutionContext {
	return in.ctx
}

// Status returns the plugin's lifecycle state.
func (in *Instance) Status() State {
	return in.status
}

// callHook invokes an optional hook on the plugin object. Absent hooks are
// a silent no-op. A hook that raises returns an ErrHookFailure-wrapped
// error; callers log it and continue.
func (in *Instance) callHook(name string, args ...any) error {
	fn, ok := in.bridge.FieldFunc(in.self, name)
	if !ok {
		return nil
	}
	if _, err := in.bridge.CallFunc(fn, args...); err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrHookFailure, in.descriptor.Name, name, err)
	}
	return nil
}

// hasHook reports whether the plugin object exposes the named hook.
func (in *Instance) hasHook(name string) bool {
	_, ok := in.bridge.FieldFunc(in.self, name)
	return ok
}

// Hooks returns the lifecycle hooks the plugin implements, in invocation
// order.
func (in *Instance) Hooks() []string {
	var hooks []string
	for _, name := range []string{hookOnInstall, hookOnEnable, hookOnDisable, hookOnUninstall} {
		if in.hasHook(name) {
			hooks = append(hooks, name)
		}
	}
	return hooks
}

// close tears down the instance's Lua state. The instance is unusable
// afterwards; its files remain on disk.
func (in *Instance) close() {
	in.state.Close()
	in.status = StateInstalled
}
