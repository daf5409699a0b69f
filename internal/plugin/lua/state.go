package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua state for plugin execution.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes access
// from Go code; Lua execution itself is single-threaded.
//
// All Lua standard libraries are open. Plugin code is trusted fully; no
// sandboxing or resource limits are applied.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

// NewState creates a new Lua state with the full standard library.
func NewState() *State {
	return &State{L: lua.NewState()}
}

// RunFile executes a Lua file and returns the chunk's first return value,
// or LNil if the chunk returns nothing. This is how an entry module's
// default export is captured.
func (s *State) RunFile(path string) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	var ret lua.LValue = lua.LNil
	err := s.doWithRecovery(func() error {
		fn, err := s.L.LoadFile(path)
		if err != nil {
			return err
		}

		stackTop := s.L.GetTop()
		s.L.Push(fn)
		if err := s.L.PCall(0, lua.MultRet, nil); err != nil {
			return err
		}

		nRet := s.L.GetTop() - stackTop
		if nRet > 0 {
			ret = s.L.Get(stackTop + 1)
			s.L.Pop(nRet)
		}
		return nil
	})
	return ret, err
}

// DoString executes a Lua source string, blocking until it completes or
// fails.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// doWithRecovery converts a panic inside fn into an error. gopher-lua
// panics on some malformed input rather than returning an error.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// GetGlobal returns the value of a Lua global, or LNil on a closed state.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}

	return s.L.GetGlobal(name)
}

// SetGlobal assigns a Lua global. No-op on a closed state.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.L.SetGlobal(name, value)
}

// LuaState returns the underlying gopher-lua state.
//
// Direct access bypasses the mutex. The caller is responsible for ensuring
// calls happen from a single goroutine.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close shuts down the Lua state. Later calls fail with ErrStateClosed.
// Closing twice is safe.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
