package plugin

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/skiffworks/skiff/internal/logging"
	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

// ExecutionContext is the per-plugin environment handed to a plugin at
// instantiation. Created once per load; immutable thereafter.
type ExecutionContext struct {
	// WorkspaceRoot is the parent of the plugin's install directory.
	WorkspaceRoot string
	// PluginRoot is the plugin's own directory.
	PluginRoot string
	// Config is the plugin's configuration mapping, empty if it has none.
	Config map[string]any
	// Logger is bound to the plugin's name for message prefixing.
	Logger *logging.Logger
}

// toLua renders the context as a Lua table. The log field exposes the
// plugin's logger as log.debug/info/warn/error functions.
func (c *ExecutionContext) toLua(bridge *plua.Bridge) *lua.LTable {
	t := bridge.NewTable()
	bridge.SetField(t, "workspaceRoot", c.WorkspaceRoot)
	bridge.SetField(t, "pluginRoot", c.PluginRoot)
	bridge.SetField(t, "config", c.Config)
	t.RawSetString("log", c.logTable(bridge))
	return t
}

// logTable builds the log functions table bound to the plugin's logger.
func (c *ExecutionContext) logTable(bridge *plua.Bridge) *lua.LTable {
	t := bridge.NewTable()
	bind := func(field string, logFn func(string, ...any)) {
		wrapped := bridge.WrapGoFunc(func(args []any) (any, error) {
			logFn("%s", joinLogArgs(args))
			return nil, nil
		})
		t.RawSetString(field, bridge.L.NewFunction(wrapped))
	}
	bind("debug", c.Logger.Debug)
	bind("info", c.Logger.Info)
	bind("warn", c.Logger.Warn)
	bind("error", c.Logger.Error)
	return t
}

// joinLogArgs renders Lua log arguments as a single space-joined message.
func joinLogArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	return strings.Join(parts, " ")
}
