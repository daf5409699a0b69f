// Package plugin provides the plugin system for skiff.
//
// Plugins extend the CLI with Lua scripts that can:
//   - Register commands runnable through skiff run
//   - Register tools with JSON-schema inputs
//   - Register themes and extensions
//   - React to lifecycle changes through optional hooks
//
// # Quick Start
//
// The Manager coordinates everything:
//
//	store := plugin.NewStore(pluginRoot, logger)
//	registry := plugin.NewRegistry()
//
//	mgr := plugin.NewManager(plugin.ManagerConfig{
//	    Store:       store,
//	    Registry:    registry,
//	    Installer:   installer,
//	    HostVersion: version,
//	    Logger:      logger,
//	})
//	defer mgr.Close()
//
//	if err := mgr.LoadAll(ctx); err != nil {
//	    logger.Warn("some plugins failed to load: %v", err)
//	}
//
// # Plugin Structure
//
// Every plugin is a directory under the plugin root:
//
//	~/.skiff/plugins/my-plugin/
//	├── package.json     # Descriptor (required)
//	├── config.json      # User configuration (optional)
//	└── init.lua         # Entry point
//
// The plugin root also holds enabled.json, the persisted set of enabled
// plugin names.
//
// # Descriptor
//
// The package.json descriptor identifies the plugin:
//
//	{
//	  "name": "my-plugin",
//	  "version": "1.0.0",
//	  "description": "A helpful plugin",
//	  "author": "someone",
//	  "type": "tool",
//	  "entryPoint": "init.lua",
//	  "compatibility": {"skiff": ">=0.1.0"}
//	}
//
// All seven fields are required. Type is one of tool, theme, extension,
// utility, or mcp-server. Tags, dependencies, and permissions are
// accepted but only recorded.
//
// # Plugin Lifecycle
//
// Plugins move through these states:
//
//	installed -> Load() -> loaded
//	loaded -> Enable() -> enabled
//	enabled -> Disable() -> loaded
//	loaded -> Unload() -> installed
//
// Enabled state is persisted; a plugin enabled today loads enabled
// tomorrow. Capabilities are registered at load time and stay registered
// while the plugin is disabled. Only Uninstall, Unload, and Reload
// revoke them.
//
// # Architecture
//
//   - Manager: sequences lifecycle operations and owns all instances
//   - Loader: turns an installed plugin into a live Instance
//   - Registry: maps capability kind and name to handlers, with owners
//   - Store: reads descriptors and configs, persists the enabled set
//   - Instance: one loaded plugin with its own Lua state
//
// An Installer implementation fetches and removes plugin files; the
// marketplace and installer packages provide the real one.
//
// # Example Plugin
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
//	            onEnable = function()
//	                ctx.log.debug("enabled")
//	            end,
//	        }
//	    end,
//	}
//
// The constructor receives an execution context with the workspace root,
// the plugin's own directory, its config.json contents, and a logger
// prefixed with the plugin's name. Plugin code runs fully trusted; all
// Lua standard libraries are available.
package plugin
