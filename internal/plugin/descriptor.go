package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DescriptorFile is the metadata file name inside each plugin directory.
const DescriptorFile = "package.json"

// Type classifies what a plugin primarily contributes.
type Type string

// Plugin types.
const (
	TypeTool      Type = "tool"
	TypeTheme     Type = "theme"
	TypeExtension Type = "extension"
	TypeUtility   Type = "utility"
	TypeMcpServer Type = "mcp-server"
)

// normalizeType maps accepted spellings onto canonical Type values.
func normalizeType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tool":
		return TypeTool, true
	case "theme":
		return TypeTheme, true
	case "extension":
		return TypeExtension, true
	case "utility":
		return TypeUtility, true
	case "mcp-server", "mcpserver", "mcp_server":
		return TypeMcpServer, true
	default:
		return "", false
	}
}

// Descriptor describes a plugin's metadata. Immutable once loaded.
type Descriptor struct {
	// Identity
	Name        string `json:"name"`        // Unique identifier (e.g., "git-tools")
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org
	Type        Type   `json:"type"`        // What the plugin contributes

	// Entry point, relative to the plugin directory
	EntryPoint string `json:"entryPoint"`

	// Compatibility maps host names to semver range constraints,
	// e.g. {"skiff": ">=0.1.0"}.
	Compatibility map[string]string `json:"compatibility"`

	// Optional
	Tags         []string `json:"tags,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"` // Declared, not resolved
	Permissions  []string `json:"permissions,omitempty"`  // Declared, not enforced

	// Internal: path to the plugin directory
	path string
}

// Validation errors. All wrap ErrInvalidMetadata.
var (
	ErrMissingName          = fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	ErrInvalidName          = fmt.Errorf("%w: name must be lowercase alphanumeric with hyphens", ErrInvalidMetadata)
	ErrMissingVersion       = fmt.Errorf("%w: version is required", ErrInvalidMetadata)
	ErrInvalidVersion       = fmt.Errorf("%w: version must be valid semver", ErrInvalidMetadata)
	ErrMissingDescription   = fmt.Errorf("%w: description is required", ErrInvalidMetadata)
	ErrMissingAuthor        = fmt.Errorf("%w: author is required", ErrInvalidMetadata)
	ErrMissingType          = fmt.Errorf("%w: type is required", ErrInvalidMetadata)
	ErrInvalidType          = fmt.Errorf("%w: type must be one of tool, theme, extension, utility, mcp-server", ErrInvalidMetadata)
	ErrMissingEntry         = fmt.Errorf("%w: entryPoint is required", ErrInvalidMetadata)
	ErrMissingCompatibility = fmt.Errorf("%w: compatibility is required", ErrInvalidMetadata)
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// LoadDescriptor loads and validates a plugin descriptor from a file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s at %s", ErrPluginNotFound, DescriptorFile, filepath.Dir(path))
		}
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	// Set the path to the plugin directory
	d.path = filepath.Dir(path)

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// LoadDescriptorFromDir loads a descriptor from a plugin directory.
func LoadDescriptorFromDir(dir string) (*Descriptor, error) {
	return LoadDescriptor(filepath.Join(dir, DescriptorFile))
}

// Validate checks that all required descriptor fields are present and well
// formed. The type field is normalized to its canonical spelling.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
	}

	if d.Version == "" {
		return ErrMissingVersion
	}
	if _, err := semver.NewVersion(d.Version); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, d.Version)
	}

	if d.Description == "" {
		return ErrMissingDescription
	}
	if d.Author == "" {
		return ErrMissingAuthor
	}

	if d.Type == "" {
		return ErrMissingType
	}
	normalized, ok := normalizeType(string(d.Type))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	d.Type = normalized

	if d.EntryPoint == "" {
		return ErrMissingEntry
	}

	if d.Compatibility == nil {
		return ErrMissingCompatibility
	}

	return nil
}

// Path returns the path to the plugin directory.
func (d *Descriptor) Path() string {
	return d.path
}

// EntryPath returns the full path to the entry point file.
func (d *Descriptor) EntryPath() string {
	return filepath.Join(d.path, d.EntryPoint)
}

// String returns a string representation of the descriptor.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s v%s", d.Name, d.Version)
}

// Clone creates a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	clone := *d

	if d.Compatibility != nil {
		clone.Compatibility = make(map[string]string, len(d.Compatibility))
		for k, v := range d.Compatibility {
			clone.Compatibility[k] = v
		}
	}
	if d.Tags != nil {
		clone.Tags = make([]string, len(d.Tags))
		copy(clone.Tags, d.Tags)
	}
	if d.Dependencies != nil {
		clone.Dependencies = make([]string, len(d.Dependencies))
		copy(clone.Dependencies, d.Dependencies)
	}
	if d.Permissions != nil {
		clone.Permissions = make([]string, len(d.Permissions))
		copy(clone.Permissions, d.Permissions)
	}

	return &clone
}
