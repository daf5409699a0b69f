package plugin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/skiffworks/skiff/internal/logging"
	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

func TestExecutionContextToLua(t *testing.T) {
	state := plua.NewState()
	defer state.Close()
	bridge := plua.NewBridge(state.LuaState())

	ctx := &ExecutionContext{
		WorkspaceRoot: "/plugins",
		PluginRoot:    "/plugins/my-plugin",
		Config:        map[string]any{"greeting": "hi"},
		Logger:        logging.NullLogger,
	}

	table := ctx.toLua(bridge)

	if got, _ := bridge.FieldString(table, "workspaceRoot"); got != "/plugins" {
		t.Errorf("workspaceRoot = %q, want /plugins", got)
	}
	if got, _ := bridge.FieldString(table, "pluginRoot"); got != "/plugins/my-plugin" {
		t.Errorf("pluginRoot = %q, want /plugins/my-plugin", got)
	}

	config, ok := bridge.FieldTable(table, "config")
	if !ok {
		t.Fatal("context table has no config field")
	}
	if got, _ := bridge.FieldString(config, "greeting"); got != "hi" {
		t.Errorf("config.greeting = %q, want hi", got)
	}
}

func TestExecutionContextLogBinding(t *testing.T) {
	state := plua.NewState()
	defer state.Close()
	bridge := plua.NewBridge(state.LuaState())

	var buf bytes.Buffer
	logger := logging.New(logging.Config{
		Level:  logging.LevelDebug,
		Output: &buf,
		Prefix: "my-plugin",
	})

	ctx := &ExecutionContext{
		WorkspaceRoot: "/plugins",
		PluginRoot:    "/plugins/my-plugin",
		Config:        map[string]any{},
		Logger:        logger,
	}

	state.SetGlobal("ctx", ctx.toLua(bridge))
	if err := state.DoString(`
		ctx.log.info("hello", "from", "lua")
		ctx.log.warn("count", 3)
	`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "hello from lua") {
		t.Errorf("log output missing joined info message:\n%s", out)
	}
	if !strings.Contains(out, "count 3") {
		t.Errorf("log output missing warn message:\n%s", out)
	}
	if !strings.Contains(out, "my-plugin") {
		t.Errorf("log output missing plugin prefix:\n%s", out)
	}
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "[WARN]") {
		t.Errorf("log output missing level tags:\n%s", out)
	}
}

func TestExecutionContextLogLevels(t *testing.T) {
	state := plua.NewState()
	defer state.Close()
	bridge := plua.NewBridge(state.LuaState())

	var buf bytes.Buffer
	logger := logging.New(logging.Config{
		Level:  logging.LevelError,
		Output: &buf,
		Prefix: "quiet",
	})

	ctx := &ExecutionContext{Config: map[string]any{}, Logger: logger}
	state.SetGlobal("ctx", ctx.toLua(bridge))

	if err := state.DoString(`
		ctx.log.debug("invisible")
		ctx.log.error("visible")
	`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Errorf("debug message leaked past level filter:\n%s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("error message missing:\n%s", out)
	}
}
