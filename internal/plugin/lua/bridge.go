package lua

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between Go and Lua and calls Lua functions with
// Go arguments.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value. Tables become maps, or
// slices when their keys form a contiguous 1-based integer sequence.
// Functions convert to nil; use FieldFunc to extract callable fields.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGoValue(lv, make(map[*lua.LTable]bool))
}

// toGoValue converts a Lua value, tracking visited tables to cut cycles.
func (b *Bridge) toGoValue(lv lua.LValue, visited map[*lua.LTable]bool) any {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil // cycle
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	case *lua.LNilType:
		return nil
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

// tableToGo converts a Lua table to either a Go slice or map.
func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	count := 0
	maxN := 0
	intKeys := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok {
			intKeys = false
			return
		}
		n := int(kn)
		if float64(n) != float64(kn) || n < 1 {
			intKeys = false
			return
		}
		if n > maxN {
			maxN = n
		}
	})

	// A contiguous 1..n integer key set is an array.
	if intKeys && count > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGoValue(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGoValue(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLuaValue(e))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLuaValue(e))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, lua.LString(e))
		}
		return t
	case lua.LValue:
		return val
	default:
		return b.reflectToLua(v)
	}
}

// reflectToLua converts remaining Go kinds via reflection. Values with no
// Lua representation become userdata.
func (b *Bridge) reflectToLua(v any) lua.LValue {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return lua.LNil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
		return b.reflectToLua(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t

	case reflect.Map:
		t := b.L.NewTable()
		for _, key := range rv.MapKeys() {
			t.RawSet(b.ToLuaValue(key.Interface()), b.ToLuaValue(rv.MapIndex(key).Interface()))
		}
		return t

	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

// FieldString returns a string field of a Lua table.
func (b *Bridge) FieldString(t *lua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

// FieldBool returns a bool field of a Lua table.
func (b *Bridge) FieldBool(t *lua.LTable, key string) (bool, bool) {
	if v, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(v), true
	}
	return false, false
}

// FieldFunc returns a function field of a Lua table.
func (b *Bridge) FieldFunc(t *lua.LTable, key string) (*lua.LFunction, bool) {
	if f, ok := t.RawGetString(key).(*lua.LFunction); ok {
		return f, true
	}
	return nil, false
}

// FieldTable returns a table field of a Lua table.
func (b *Bridge) FieldTable(t *lua.LTable, key string) (*lua.LTable, bool) {
	if ft, ok := t.RawGetString(key).(*lua.LTable); ok {
		return ft, true
	}
	return nil, false
}

// FieldStringSlice returns an array-of-strings field of a Lua table.
// Non-string elements are skipped.
func (b *Bridge) FieldStringSlice(t *lua.LTable, key string) []string {
	ft, ok := b.FieldTable(t, key)
	if !ok {
		return nil
	}
	var out []string
	ft.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

// FieldStringMap returns a string-to-string map field of a Lua table.
// Non-string values are rendered with their Lua string form.
func (b *Bridge) FieldStringMap(t *lua.LTable, key string) map[string]string {
	ft, ok := b.FieldTable(t, key)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	ft.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			out[string(ks)] = v.String()
		}
	})
	return out
}

// FieldMap returns a table field of a Lua table converted to a Go map.
func (b *Bridge) FieldMap(t *lua.LTable, key string) map[string]any {
	ft, ok := b.FieldTable(t, key)
	if !ok {
		return nil
	}
	if m, ok := b.ToGoValue(ft).(map[string]any); ok {
		return m
	}
	return nil
}

// CallFunc calls a Lua function with Go arguments and returns Go values.
// Lua errors and panics surface as Go errors.
func (b *Bridge) CallFunc(fn *lua.LFunction, args ...any) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	// Everything above stackTop after the call is a return value.
	stackTop := b.L.GetTop()

	b.L.Push(fn)
	for _, arg := range args {
		b.L.Push(b.ToLuaValue(arg))
	}

	if err := b.L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	nRet := b.L.GetTop() - stackTop
	if nRet <= 0 {
		return nil, nil
	}
	results = make([]any, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = b.ToGoValue(b.L.Get(stackTop + i + 1))
	}
	b.L.Pop(nRet)

	return results, nil
}

// CallFuncRaw calls a Lua function with Go arguments and returns the
// first result without converting it, preserving table and function
// identity. LNil is returned when the function yields nothing.
func (b *Bridge) CallFuncRaw(fn *lua.LFunction, args ...any) (result lua.LValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	stackTop := b.L.GetTop()

	b.L.Push(fn)
	for _, arg := range args {
		b.L.Push(b.ToLuaValue(arg))
	}

	if err := b.L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	nRet := b.L.GetTop() - stackTop
	if nRet <= 0 {
		return lua.LNil, nil
	}
	result = b.L.Get(stackTop + 1)
	b.L.Pop(nRet)

	return result, nil
}

// WrapGoFunc wraps a Go function for use in Lua.
// The Go function receives converted arguments and may return one value.
func (b *Bridge) WrapGoFunc(fn func(args []any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		nArgs := L.GetTop()
		args := make([]any, nArgs)
		for i := 1; i <= nArgs; i++ {
			args[i-1] = b.ToGoValue(L.Get(i))
		}

		result, err := fn(args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}

		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}

// NewTable creates a new empty Lua table.
func (b *Bridge) NewTable() *lua.LTable {
	return b.L.NewTable()
}

// SetField sets a field in a Lua table.
func (b *Bridge) SetField(t *lua.LTable, key string, value any) {
	t.RawSetString(key, b.ToLuaValue(value))
}
