// Package lua provides the Lua runtime for skiff plugins.
//
// Each plugin runs in its own Lua state. Entry points are ordinary Lua
// modules; the conventional shape returns a constructor table:
//
//	-- init.lua
//	return {
//	    new = function(ctx)
//	        return {
//	            name = "my-plugin",
//	            registerCommands = function(registrar)
//	                registrar.add({
//	                    name = "greet",
//	                    description = "Say hello",
//	                    handler = function(args)
//	                        ctx.log.info("hello " .. (args[1] or "world"))
//	                    end,
//	                })
//	            end,
//	        }
//	    end,
//	}
//
// Plugin code is fully trusted: all Lua standard libraries are open and no
// resource limits are imposed. Hosts that need isolation must run plugins
// they do not trust elsewhere.
//
// # State
//
// State wraps a gopher-lua LState with a mutex and panic recovery:
//
//	state := lua.NewState()
//	defer state.Close()
//
//	export, err := state.RunFile("init.lua")
//
// RunFile returns the chunk's first return value, which is how an entry
// module's default export is captured.
//
// # Bridge
//
// Bridge converts values across the Go/Lua boundary in both directions and
// calls Lua functions with Go arguments:
//
//	bridge := lua.NewBridge(state.LuaState())
//	results, err := bridge.CallFunc(fn, "arg", 42)
//
// Lua tables become Go maps, or slices when their keys form a contiguous
// 1-based integer sequence. Circular table references are cut to nil.
package lua
