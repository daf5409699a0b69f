// Package config loads and persists the CLI's settings.
//
// Settings live in ~/.skiff/config.toml and resolve in layers: built-in
// defaults, then the file, then SKIFF_* environment variables. Flags
// are applied by the CLI on top of the loaded result, so the effective
// precedence is flag > environment > file > default.
package config
