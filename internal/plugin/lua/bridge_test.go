package lua

import (
	"reflect"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestBridgeToGoValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tests := []struct {
		name     string
		input    glua.LValue
		expected any
	}{
		{"nil", glua.LNil, nil},
		{"true", glua.LTrue, true},
		{"false", glua.LFalse, false},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(3.14), 3.14},
		{"string", glua.LString("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bridge.ToGoValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ToGoValue(%v) = %v (%T), want %v (%T)",
					tt.input, result, result, tt.expected, tt.expected)
			}
		})
	}
}

func TestBridgeToGoValueTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	t.Run("array", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetInt(1, glua.LString("a"))
		tbl.RawSetInt(2, glua.LString("b"))
		tbl.RawSetInt(3, glua.LString("c"))

		result := bridge.ToGoValue(tbl)
		arr, ok := result.([]any)
		if !ok {
			t.Fatalf("ToGoValue(array table) = %T, want []any", result)
		}
		if len(arr) != 3 || arr[0] != "a" || arr[2] != "c" {
			t.Errorf("ToGoValue(array table) = %v", arr)
		}
	})

	t.Run("map", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetString("name", glua.LString("test"))
		tbl.RawSetString("count", glua.LNumber(2))

		result := bridge.ToGoValue(tbl)
		m, ok := result.(map[string]any)
		if !ok {
			t.Fatalf("ToGoValue(map table) = %T, want map[string]any", result)
		}
		if m["name"] != "test" || m["count"] != int64(2) {
			t.Errorf("ToGoValue(map table) = %v", m)
		}
	})

	t.Run("sparse integer keys become map", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetInt(1, glua.LString("a"))
		tbl.RawSetInt(3, glua.LString("c"))

		result := bridge.ToGoValue(tbl)
		if _, ok := result.(map[string]any); !ok {
			t.Fatalf("ToGoValue(sparse table) = %T, want map[string]any", result)
		}
	})

	t.Run("nested", func(t *testing.T) {
		inner := L.NewTable()
		inner.RawSetString("deep", glua.LTrue)
		tbl := L.NewTable()
		tbl.RawSetString("inner", inner)

		result := bridge.ToGoValue(tbl)
		m := result.(map[string]any)
		innerMap, ok := m["inner"].(map[string]any)
		if !ok {
			t.Fatalf("nested table = %T, want map[string]any", m["inner"])
		}
		if innerMap["deep"] != true {
			t.Errorf("nested value = %v, want true", innerMap["deep"])
		}
	})

	t.Run("circular reference", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetString("self", tbl)

		// Must terminate; the cycle converts to nil.
		result := bridge.ToGoValue(tbl)
		m := result.(map[string]any)
		if m["self"] != nil {
			t.Errorf("circular reference = %v, want nil", m["self"])
		}
	})
}

func TestBridgeToLuaValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	t.Run("primitives", func(t *testing.T) {
		if v := bridge.ToLuaValue(nil); v != glua.LNil {
			t.Errorf("ToLuaValue(nil) = %v", v)
		}
		if v := bridge.ToLuaValue(true); v != glua.LTrue {
			t.Errorf("ToLuaValue(true) = %v", v)
		}
		if v := bridge.ToLuaValue(42); v.(glua.LNumber) != 42 {
			t.Errorf("ToLuaValue(42) = %v", v)
		}
		if v := bridge.ToLuaValue("s"); v.(glua.LString) != "s" {
			t.Errorf("ToLuaValue(s) = %v", v)
		}
	})

	t.Run("string slice", func(t *testing.T) {
		v := bridge.ToLuaValue([]string{"x", "y"})
		tbl, ok := v.(*glua.LTable)
		if !ok {
			t.Fatalf("ToLuaValue([]string) = %T", v)
		}
		if tbl.RawGetInt(1).String() != "x" || tbl.RawGetInt(2).String() != "y" {
			t.Errorf("slice table contents wrong")
		}
	})

	t.Run("map", func(t *testing.T) {
		v := bridge.ToLuaValue(map[string]any{"k": int64(1)})
		tbl, ok := v.(*glua.LTable)
		if !ok {
			t.Fatalf("ToLuaValue(map) = %T", v)
		}
		if n := tbl.RawGetString("k"); n.(glua.LNumber) != 1 {
			t.Errorf("map table k = %v", n)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		orig := map[string]any{
			"name":  "plug",
			"count": int64(3),
			"tags":  []any{"a", "b"},
		}
		back := bridge.ToGoValue(bridge.ToLuaValue(orig))
		if !reflect.DeepEqual(back, orig) {
			t.Errorf("round trip = %#v, want %#v", back, orig)
		}
	})
}

func TestBridgeFieldGetters(t *testing.T) {
	state := NewState()
	defer state.Close()
	bridge := NewBridge(state.LuaState())

	if err := state.DoString(`
		def = {
			name = "greet",
			hidden = false,
			handler = function() return "ok" end,
			tags = {"one", "two"},
			colors = { fg = "#ffffff", bg = "#000000" },
			schema = { type = "object", required = {"q"} },
		}
	`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	def := state.GetGlobal("def").(*glua.LTable)

	if s, ok := bridge.FieldString(def, "name"); !ok || s != "greet" {
		t.Errorf("FieldString(name) = %q, %v", s, ok)
	}
	if _, ok := bridge.FieldString(def, "missing"); ok {
		t.Error("FieldString(missing) should report absent")
	}
	if v, ok := bridge.FieldBool(def, "hidden"); !ok || v {
		t.Errorf("FieldBool(hidden) = %v, %v", v, ok)
	}
	if _, ok := bridge.FieldFunc(def, "handler"); !ok {
		t.Error("FieldFunc(handler) should find function")
	}
	if _, ok := bridge.FieldFunc(def, "name"); ok {
		t.Error("FieldFunc(name) should report absent for non-function")
	}
	if tags := bridge.FieldStringSlice(def, "tags"); len(tags) != 2 || tags[0] != "one" {
		t.Errorf("FieldStringSlice(tags) = %v", tags)
	}
	if colors := bridge.FieldStringMap(def, "colors"); colors["fg"] != "#ffffff" {
		t.Errorf("FieldStringMap(colors) = %v", colors)
	}
	schema := bridge.FieldMap(def, "schema")
	if schema == nil || schema["type"] != "object" {
		t.Errorf("FieldMap(schema) = %v", schema)
	}
}

func TestBridgeCallFunc(t *testing.T) {
	state := NewState()
	defer state.Close()
	bridge := NewBridge(state.LuaState())

	if err := state.DoString(`
		function add(a, b) return a + b end
		function multi() return 1, "two" end
		function fail() error("intentional") end
		function silent() end
	`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	t.Run("returns value", func(t *testing.T) {
		fn := state.GetGlobal("add").(*glua.LFunction)
		results, err := bridge.CallFunc(fn, 2, 3)
		if err != nil {
			t.Fatalf("CallFunc() error = %v", err)
		}
		if len(results) != 1 || results[0] != int64(5) {
			t.Errorf("CallFunc(add) = %v", results)
		}
	})

	t.Run("multiple returns", func(t *testing.T) {
		fn := state.GetGlobal("multi").(*glua.LFunction)
		results, err := bridge.CallFunc(fn)
		if err != nil {
			t.Fatalf("CallFunc() error = %v", err)
		}
		if len(results) != 2 || results[0] != int64(1) || results[1] != "two" {
			t.Errorf("CallFunc(multi) = %v", results)
		}
	})

	t.Run("lua error", func(t *testing.T) {
		fn := state.GetGlobal("fail").(*glua.LFunction)
		_, err := bridge.CallFunc(fn)
		if err == nil {
			t.Fatal("CallFunc(fail) should return error")
		}
		if !strings.Contains(err.Error(), "intentional") {
			t.Errorf("CallFunc(fail) error = %v, want message preserved", err)
		}
	})

	t.Run("no returns", func(t *testing.T) {
		fn := state.GetGlobal("silent").(*glua.LFunction)
		results, err := bridge.CallFunc(fn)
		if err != nil {
			t.Fatalf("CallFunc() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("CallFunc(silent) = %v, want none", results)
		}
	})

	t.Run("stack is balanced", func(t *testing.T) {
		fn := state.GetGlobal("add").(*glua.LFunction)
		before := state.LuaState().GetTop()
		for i := 0; i < 10; i++ {
			if _, err := bridge.CallFunc(fn, i, i); err != nil {
				t.Fatalf("CallFunc() error = %v", err)
			}
		}
		if after := state.LuaState().GetTop(); after != before {
			t.Errorf("stack top = %d after calls, want %d", after, before)
		}
	})
}

func TestBridgeWrapGoFunc(t *testing.T) {
	state := NewState()
	defer state.Close()
	bridge := NewBridge(state.LuaState())

	var got []any
	fn := bridge.WrapGoFunc(func(args []any) (any, error) {
		got = args
		return "done", nil
	})
	state.SetGlobal("gofn", state.LuaState().NewFunction(fn))

	if err := state.DoString(`result = gofn("a", 2)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if len(got) != 2 || got[0] != "a" || got[1] != int64(2) {
		t.Errorf("wrapped func args = %v", got)
	}
	if v := state.GetGlobal("result"); v.String() != "done" {
		t.Errorf("result = %v, want done", v)
	}
}
