package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/skiffworks/skiff/internal/logging"
	"github.com/skiffworks/skiff/internal/marketplace"
	"github.com/skiffworks/skiff/internal/plugin"
)

// Installer errors.
var (
	// ErrAlreadyInstalled is returned when the destination directory
	// already exists under the plugin root.
	ErrAlreadyInstalled = errors.New("plugin already installed")

	// ErrUnrecognizedSource is returned when a source string matches no
	// supported install source form.
	ErrUnrecognizedSource = errors.New("unrecognized install source")

	// ErrNoRegistry is returned for registry installs when no registry
	// client is configured.
	ErrNoRegistry = errors.New("no plugin registry configured")
)

// Installer places plugin trees under the plugin root. It accepts four
// source forms:
//
//	""               registry, latest release
//	"1.2.0"          registry, that release
//	"https://... "   a zip archive fetched over HTTP
//	"file:///path"   a local zip archive or plugin directory
//	"./path"         a local zip archive or plugin directory
//
// Every install ends by validating the staged tree's descriptor; a tree
// that is not a valid plugin, or whose descriptor names a different
// plugin, is removed again.
type Installer struct {
	root       string
	market     *marketplace.Client
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithMarketplace sets the registry client used for registry sources.
func WithMarketplace(client *marketplace.Client) Option {
	return func(i *Installer) {
		i.market = client
	}
}

// WithHTTPClient replaces the HTTP client used for direct URL sources.
func WithHTTPClient(hc *http.Client) Option {
	return func(i *Installer) {
		i.httpClient = hc
	}
}

// WithLogger sets the installer's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(i *Installer) {
		i.logger = logger.WithComponent("installer")
	}
}

// New creates an Installer that installs under root.
func New(root string, opts ...Option) *Installer {
	inst := &Installer{
		root: root,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logging.NullLogger,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Install stages the plugin named name from source into the plugin root.
// The destination directory is removed again when staging or descriptor
// validation fails, so a failed install leaves no partial tree behind.
func (i *Installer) Install(ctx context.Context, name, source string) error {
	dest := filepath.Join(i.root, name)
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, name)
	}

	if err := i.stage(ctx, name, source, dest); err != nil {
		os.RemoveAll(dest)
		return err
	}

	desc, err := plugin.LoadDescriptorFromDir(dest)
	if err != nil {
		os.RemoveAll(dest)
		return fmt.Errorf("installed tree is not a valid plugin: %w", err)
	}
	if desc.Name != name {
		os.RemoveAll(dest)
		return fmt.Errorf("descriptor names %q, expected %q", desc.Name, name)
	}

	i.logger.Info("installed %s", desc)
	return nil
}

// Uninstall removes the plugin's directory. Removing a plugin that is
// not on disk is not an error.
func (i *Installer) Uninstall(name string) error {
	dir := filepath.Join(i.root, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	i.logger.Info("uninstalled %s", name)
	return nil
}

// stage dispatches on the source form and materializes the plugin tree
// at dest.
func (i *Installer) stage(ctx context.Context, name, source, dest string) error {
	switch {
	case source == "":
		return i.stageFromRegistry(ctx, name, "", dest)

	case looksLikeVersion(source):
		return i.stageFromRegistry(ctx, name, source, dest)

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return i.stageFromURL(ctx, source, dest)

	case strings.HasPrefix(source, "file://"):
		u, err := url.Parse(source)
		if err != nil || u.Path == "" {
			return fmt.Errorf("%w: %s", ErrUnrecognizedSource, source)
		}
		return i.stageFromPath(u.Path, dest)

	default:
		if _, err := os.Stat(source); err == nil {
			return i.stageFromPath(source, dest)
		}
		return fmt.Errorf("%w: %s", ErrUnrecognizedSource, source)
	}
}

func (i *Installer) stageFromRegistry(ctx context.Context, name, version, dest string) error {
	if i.market == nil {
		return ErrNoRegistry
	}

	i.logger.Debug("fetching %s from registry", name)
	archive, err := i.market.Download(ctx, name, version)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	return extractZip(archive, dest)
}

func (i *Installer) stageFromURL(ctx context.Context, source, dest string) error {
	i.logger.Debug("fetching archive from %s", source)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "skiff-install-*.zip")
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("saving download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving download: %w", err)
	}

	return extractZip(tmp.Name(), dest)
}

// stageFromPath installs from a local directory or zip archive.
func (i *Installer) stageFromPath(source, dest string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	if info.IsDir() {
		return copyDir(source, dest)
	}
	if strings.EqualFold(filepath.Ext(source), ".zip") {
		return extractZip(source, dest)
	}
	return fmt.Errorf("%w: %s is neither a directory nor a zip archive", ErrUnrecognizedSource, source)
}

// looksLikeVersion reports whether source parses as a semantic version,
// which selects a registry install at that release.
func looksLikeVersion(source string) bool {
	_, err := semver.NewVersion(source)
	return err == nil
}
