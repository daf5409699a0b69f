// Package cli builds the skiff command tree.
//
// Commands are thin: they resolve settings (flag > environment > file >
// default), construct a plugin manager rooted at the effective plugin
// directory, and delegate to the plugin, installer, and marketplace
// packages. Each invocation is one session; plugins load, run, and are
// closed before the process exits.
package cli
