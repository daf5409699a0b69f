package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/skiffworks/skiff/internal/logging"
	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

// Registration hooks a plugin instance may expose, one per capability
// kind. Each receives a registrar whose add function records the plugin
// as the owner of everything it registers.
var registrationHooks = []struct {
	kind CapabilityKind
	name string
}{
	{KindCommand, "registerCommands"},
	{KindTool, "registerTools"},
	{KindTheme, "registerThemes"},
	{KindExtension, "registerExtensions"},
}

// Fallback constructor globals checked when an entry module neither
// returns a value nor defines a global named after the plugin.
var fallbackConstructors = []string{"plugin", "Plugin"}

// Loader loads installed plugins: it validates descriptors, runs entry
// modules, instantiates plugin objects, and drives capability
// registration.
type Loader struct {
	store       *Store
	registry    *Registry
	logger      *logging.Logger
	hostVersion string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHostVersion sets the host version used for descriptor
// compatibility checks. Without it, compatibility is not checked.
func WithHostVersion(version string) LoaderOption {
	return func(l *Loader) {
		l.hostVersion = version
	}
}

// NewLoader creates a loader that reads plugins through store and
// registers their capabilities in registry.
func NewLoader(store *Store, registry *Registry, logger *logging.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = logging.NullLogger
	}
	l := &Loader{
		store:    store,
		registry: registry,
		logger:   logger.WithComponent("loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads the named plugin from disk and returns a live instance.
//
// The pipeline: resolve the plugin directory, read and validate the
// descriptor, resolve the entry point, run the entry module and locate
// its constructor, build the execution context, instantiate and verify
// the plugin object, invoke its registration hooks, and finally replay
// the persisted enabled state. Failures return one of the load-time
// sentinels (ErrPluginNotFound, ErrInvalidMetadata,
// ErrMissingEntryPoint, ErrNoPluginClass, ErrInterfaceMismatch).
//
// Load does not guard against double loading; calling it twice without
// an intervening unload registers every capability twice. The Manager
// prevents that.
func (l *Loader) Load(ctx context.Context, name string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := l.store.PluginDir(name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	desc, err := l.store.ReadDescriptor(name)
	if err != nil {
		return nil, err
	}
	if desc.Name != name {
		return nil, fmt.Errorf("%w: descriptor name %q does not match directory %q", ErrInvalidMetadata, desc.Name, name)
	}

	l.checkCompatibility(desc)

	entry, err := l.resolveEntryPoint(desc)
	if err != nil {
		return nil, err
	}

	state := plua.NewState()
	bridge := plua.NewBridge(state.LuaState())

	export, err := state.RunFile(entry)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("%w: entry module failed: %v", ErrNoPluginClass, err)
	}

	ctor := l.resolveConstructor(state, desc, export)
	if ctor == lua.LNil {
		state.Close()
		return nil, fmt.Errorf("%w: %s exports no constructor", ErrNoPluginClass, desc.EntryPoint)
	}

	execCtx := &ExecutionContext{
		WorkspaceRoot: filepath.Dir(dir),
		PluginRoot:    dir,
		Config:        l.store.ReadConfig(name),
		Logger:        l.logger.WithPrefix(name),
	}

	self, err := l.instantiate(bridge, ctor, execCtx)
	if err != nil {
		state.Close()
		return nil, err
	}
	if got, _ := bridge.FieldString(self, "name"); got != desc.Name {
		state.Close()
		return nil, fmt.Errorf("%w: instance reports name %q, descriptor says %q", ErrInterfaceMismatch, got, desc.Name)
	}

	inst := &Instance{
		descriptor: desc,
		ctx:        execCtx,
		state:      state,
		bridge:     bridge,
		self:       self,
		status:     StateLoaded,
	}

	l.registerCapabilities(inst)

	// Replay persisted state so loading an enabled plugin leaves it active.
	if l.store.ReadEnabled()[name] {
		if err := inst.callHook(hookOnEnable); err != nil {
			l.logger.Warn("%v", err)
		}
		inst.status = StateEnabled
	}

	l.logger.Debug("loaded plugin %s", desc)
	return inst, nil
}

// checkCompatibility logs a warning when the descriptor declares a host
// constraint the current host version does not satisfy. Incompatibility
// never fails a load.
func (l *Loader) checkCompatibility(desc *Descriptor) {
	if l.hostVersion == "" {
		return
	}
	ok, err := desc.CompatibleWith(HostName, l.hostVersion)
	if err != nil {
		l.logger.Debug("skipping compatibility check for %s: %v", desc.Name, err)
		return
	}
	if !ok {
		l.logger.Warn("plugin %s declares compatibility %q, host is %s",
			desc.Name, desc.Compatibility[HostName], l.hostVersion)
	}
}

// resolveEntryPoint returns the absolute path of the descriptor's entry
// point. The entry point must resolve inside the plugin directory and
// exist as a regular file.
func (l *Loader) resolveEntryPoint(desc *Descriptor) (string, error) {
	rel := filepath.Clean(desc.EntryPoint)
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes the plugin directory", ErrMissingEntryPoint, desc.EntryPoint)
	}

	path := filepath.Join(desc.Path(), rel)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingEntryPoint, desc.EntryPoint)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrMissingEntryPoint, desc.EntryPoint, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrMissingEntryPoint, desc.EntryPoint)
	}
	return path, nil
}

// resolveConstructor locates the plugin constructor: the entry module's
// return value first, then a global named after the descriptor (hyphens
// mapped to underscores), then the conventional fallback globals.
// Returns LNil when nothing usable is found.
func (l *Loader) resolveConstructor(state *plua.State, desc *Descriptor, export lua.LValue) lua.LValue {
	if usableConstructor(export) {
		return export
	}

	global := strings.ReplaceAll(desc.Name, "-", "_")
	if v := state.GetGlobal(global); usableConstructor(v) {
		return v
	}

	for _, name := range fallbackConstructors {
		if v := state.GetGlobal(name); usableConstructor(v) {
			return v
		}
	}
	return lua.LNil
}

// usableConstructor reports whether a value can produce a plugin object.
func usableConstructor(v lua.LValue) bool {
	if v == nil || v == lua.LNil {
		return false
	}
	return v.Type() == lua.LTFunction || v.Type() == lua.LTTable
}

// instantiate produces the plugin object from a constructor value. A
// function constructor is called with the context table. A table with a
// new function is constructed via new(ctx). A plain table is the object
// itself; its optional init(ctx) runs before use.
func (l *Loader) instantiate(bridge *plua.Bridge, ctor lua.LValue, execCtx *ExecutionContext) (*lua.LTable, error) {
	ctxTable := execCtx.toLua(bridge)

	switch v := ctor.(type) {
	case *lua.LFunction:
		return l.construct(bridge, v, ctxTable)

	case *lua.LTable:
		if newFn, ok := bridge.FieldFunc(v, "new"); ok {
			return l.construct(bridge, newFn, ctxTable)
		}
		if initFn, ok := bridge.FieldFunc(v, "init"); ok {
			if _, err := bridge.CallFunc(initFn, ctxTable); err != nil {
				return nil, fmt.Errorf("%w: init failed: %v", ErrInterfaceMismatch, err)
			}
		}
		return v, nil

	default:
		return nil, fmt.Errorf("%w: constructor is a %s", ErrNoPluginClass, ctor.Type())
	}
}

// construct calls a constructor function and requires a table back.
func (l *Loader) construct(bridge *plua.Bridge, fn *lua.LFunction, ctxTable *lua.LTable) (*lua.LTable, error) {
	self, err := bridge.CallFuncRaw(fn, ctxTable)
	if err != nil {
		return nil, fmt.Errorf("%w: constructor failed: %v", ErrInterfaceMismatch, err)
	}
	table, ok := self.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: constructor returned %s, want table", ErrInterfaceMismatch, self.Type())
	}
	return table, nil
}

// registerCapabilities invokes each registration hook the instance
// implements, passing a registrar that tags registrations with the
// plugin's name. Hook failures are logged and never fail the load.
func (l *Loader) registerCapabilities(inst *Instance) {
	for _, hook := range registrationHooks {
		if !inst.hasHook(hook.name) {
			continue
		}
		registrar := l.newRegistrar(inst, hook.kind)
		if err := inst.callHook(hook.name, registrar); err != nil {
			l.logger.Warn("%v", err)
		}
	}
}

// newRegistrar builds the Lua table handed to a registration hook. Its
// add function converts a definition table into a capability of the
// registrar's kind and registers it under the instance's name.
func (l *Loader) newRegistrar(inst *Instance, kind CapabilityKind) *lua.LTable {
	owner := inst.Name()
	bridge := inst.bridge

	registrar := bridge.NewTable()
	bridge.SetField(registrar, "add", inst.state.LuaState().NewFunction(func(L *lua.LState) int {
		def := L.CheckTable(1)
		cap, err := capabilityFromDef(bridge, kind, def)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		l.registry.Register(cap, owner)
		l.logger.Debug("plugin %s registered %s %q", owner, kind, cap.CapabilityName())
		return 0
	}))
	return registrar
}
