package plugin

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

// defTable runs code that must assign a definition table to the global
// def, and returns it with the state's bridge.
func defTable(t *testing.T, code string) (*plua.Bridge, *lua.LTable, *plua.State) {
	t.Helper()
	state := plua.NewState()
	if err := state.DoString(code); err != nil {
		state.Close()
		t.Fatalf("DoString() error = %v", err)
	}
	def, ok := state.GetGlobal("def").(*lua.LTable)
	if !ok {
		state.Close()
		t.Fatal("def global is not a table")
	}
	return plua.NewBridge(state.LuaState()), def, state
}

func TestCapabilityFromDefCommand(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "greet",
			description = "say hello",
			usage = "greet [who]",
			handler = function(who) return "hello " .. who end,
		}
	`)
	defer state.Close()

	cap, err := capabilityFromDef(bridge, KindCommand, def)
	if err != nil {
		t.Fatalf("capabilityFromDef() error = %v", err)
	}

	cmd, ok := cap.(*Command)
	if !ok {
		t.Fatalf("capability is %T, want *Command", cap)
	}
	if cmd.Name != "greet" || cmd.Description != "say hello" || cmd.Usage != "greet [who]" {
		t.Errorf("Command = %+v, want populated fields", cmd)
	}
	if cmd.Handler == nil {
		t.Fatal("Command.Handler is nil")
	}

	result, err := cmd.Handler.Invoke("world")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result != "hello world" {
		t.Errorf("Invoke() = %v, want %q", result, "hello world")
	}
}

func TestCapabilityFromDefTool(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "search",
			description = "find things",
			inputSchema = {type = "object", required = {"query"}},
			handler = function(input) return input end,
		}
	`)
	defer state.Close()

	cap, err := capabilityFromDef(bridge, KindTool, def)
	if err != nil {
		t.Fatalf("capabilityFromDef() error = %v", err)
	}

	tool := cap.(*Tool)
	if tool.Name != "search" {
		t.Errorf("Name = %q, want search", tool.Name)
	}
	if tool.InputSchema["type"] != "object" {
		t.Errorf("InputSchema[type] = %v, want object", tool.InputSchema["type"])
	}
	if tool.Handler == nil {
		t.Error("Tool.Handler is nil")
	}
}

func TestCapabilityFromDefTheme(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "solarized",
			colors = {background = "#002b36", foreground = "#839496"},
		}
	`)
	defer state.Close()

	cap, err := capabilityFromDef(bridge, KindTheme, def)
	if err != nil {
		t.Fatalf("capabilityFromDef() error = %v", err)
	}

	theme := cap.(*Theme)
	if theme.Colors["background"] != "#002b36" {
		t.Errorf("Colors[background] = %q, want #002b36", theme.Colors["background"])
	}
}

func TestCapabilityFromDefExtension(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "watcher",
			events = {"file.saved", "file.opened"},
			handler = function(event) end,
		}
	`)
	defer state.Close()

	cap, err := capabilityFromDef(bridge, KindExtension, def)
	if err != nil {
		t.Fatalf("capabilityFromDef() error = %v", err)
	}

	ext := cap.(*Extension)
	if len(ext.Events) != 2 || ext.Events[0] != "file.saved" {
		t.Errorf("Events = %v, want [file.saved file.opened]", ext.Events)
	}
}

func TestCapabilityFromDefMissingName(t *testing.T) {
	bridge, def, state := defTable(t, `def = {description = "anonymous"}`)
	defer state.Close()

	_, err := capabilityFromDef(bridge, KindCommand, def)
	if err == nil {
		t.Fatal("capabilityFromDef() accepted a definition without a name")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error = %v, want mention of missing name", err)
	}
}

func TestHandlerInvokeError(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "boom",
			handler = function() error("kaboom") end,
		}
	`)
	defer state.Close()

	cap, err := capabilityFromDef(bridge, KindCommand, def)
	if err != nil {
		t.Fatalf("capabilityFromDef() error = %v", err)
	}

	_, err = cap.(*Command).Handler.Invoke()
	if err == nil {
		t.Fatal("Invoke() did not surface the Lua error")
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("error = %v, want the raised message", err)
	}
}

func TestHandlerInvokeNoReturn(t *testing.T) {
	bridge, def, state := defTable(t, `
		def = {
			name = "silent",
			handler = function() end,
		}
	`)
	defer state.Close()

	cap, _ := capabilityFromDef(bridge, KindCommand, def)
	result, err := cap.(*Command).Handler.Invoke()
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result != nil {
		t.Errorf("Invoke() = %v, want nil", result)
	}
}
