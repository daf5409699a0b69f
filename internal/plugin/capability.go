package plugin

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/skiffworks/skiff/internal/plugin/lua"
)

// CapabilityKind classifies what a registered capability is.
type CapabilityKind int

// Capability kinds.
const (
	KindCommand CapabilityKind = iota
	KindTool
	KindTheme
	KindExtension
)

// String returns a string representation of the kind.
func (k CapabilityKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindTool:
		return "tool"
	case KindTheme:
		return "theme"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// Capability is a named record a plugin contributes to the host. Each kind
// carries its own schema; all are tracked by name within their kind.
type Capability interface {
	// CapabilityKind returns which kind of capability this is.
	CapabilityKind() CapabilityKind
	// CapabilityName returns the name the capability is registered under.
	CapabilityName() string
}

// Command is an invokable command contributed by a plugin.
type Command struct {
	Name        string
	Description string
	Usage       string
	Handler     *Handler
}

// CapabilityKind implements Capability.
func (c *Command) CapabilityKind() CapabilityKind { return KindCommand }

// CapabilityName implements Capability.
func (c *Command) CapabilityName() string { return c.Name }

// Tool is a model-facing tool with a declared input schema.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     *Handler
}

// CapabilityKind implements Capability.
func (t *Tool) CapabilityKind() CapabilityKind { return KindTool }

// CapabilityName implements Capability.
func (t *Tool) CapabilityName() string { return t.Name }

// Theme is a named color scheme.
type Theme struct {
	Name        string
	Description string
	Colors      map[string]string
}

// CapabilityKind implements Capability.
func (t *Theme) CapabilityKind() CapabilityKind { return KindTheme }

// CapabilityName implements Capability.
func (t *Theme) CapabilityName() string { return t.Name }

// Extension subscribes to host events.
type Extension struct {
	Name        string
	Description string
	Events      []string
	Handler     *Handler
}

// CapabilityKind implements Capability.
func (e *Extension) CapabilityKind() CapabilityKind { return KindExtension }

// CapabilityName implements Capability.
func (e *Extension) CapabilityName() string { return e.Name }

// Handler wraps a plugin-supplied Lua function so registered capabilities
// can be invoked from Go. A Handler is only valid while its plugin remains
// loaded; invoking the handler of an unloaded plugin returns an error.
type Handler struct {
	bridge *plua.Bridge
	fn     *lua.LFunction
}

// NewHandler creates a Handler bound to the plugin's bridge.
func NewHandler(bridge *plua.Bridge, fn *lua.LFunction) *Handler {
	return &Handler{bridge: bridge, fn: fn}
}

// Invoke calls the underlying function with the given arguments and
// returns its first return value converted to a Go value.
func (h *Handler) Invoke(args ...any) (any, error) {
	results, err := h.bridge.CallFunc(h.fn, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// capabilityFromDef builds a capability record of the given kind from a
// Lua definition table. Every definition requires a name.
func capabilityFromDef(b *plua.Bridge, kind CapabilityKind, def *lua.LTable) (Capability, error) {
	name, ok := b.FieldString(def, "name")
	if !ok || name == "" {
		return nil, errors.New("capability definition requires a name")
	}
	description, _ := b.FieldString(def, "description")

	switch kind {
	case KindCommand:
		cmd := &Command{Name: name, Description: description}
		if usage, ok := b.FieldString(def, "usage"); ok {
			cmd.Usage = usage
		}
		if fn, ok := b.FieldFunc(def, "handler"); ok {
			cmd.Handler = NewHandler(b, fn)
		}
		return cmd, nil

	case KindTool:
		tool := &Tool{Name: name, Description: description}
		tool.InputSchema = b.FieldMap(def, "inputSchema")
		if fn, ok := b.FieldFunc(def, "handler"); ok {
			tool.Handler = NewHandler(b, fn)
		}
		return tool, nil

	case KindTheme:
		return &Theme{Name: name, Description: description, Colors: b.FieldStringMap(def, "colors")}, nil

	case KindExtension:
		ext := &Extension{Name: name, Description: description, Events: b.FieldStringSlice(def, "events")}
		if fn, ok := b.FieldFunc(def, "handler"); ok {
			ext.Handler = NewHandler(b, fn)
		}
		return ext, nil

	default:
		return nil, fmt.Errorf("unknown capability kind %d", kind)
	}
}
