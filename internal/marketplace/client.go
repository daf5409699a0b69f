package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/skiffworks/skiff/internal/logging"
)

// DefaultBaseURL is the public skiff plugin registry.
const DefaultBaseURL = "https://plugins.skiff.dev"

const userAgent = "skiff-cli"

// Marketplace errors.
var (
	// ErrNotFound is returned when the registry has no such plugin.
	ErrNotFound = errors.New("plugin not found in registry")

	// ErrChecksumMismatch is returned when a downloaded archive does not
	// match its published checksum.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
)

// Summary is one row of a registry search result.
type Summary struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Type        string    `json:"type"`
	Tags        []string  `json:"tags,omitempty"`
	Downloads   int       `json:"downloads"`
	Rating      float64   `json:"rating,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Release is one downloadable version of a plugin.
type Release struct {
	Version string `json:"version"`
	// URL points at the release archive, absolute or relative to the
	// registry base URL.
	URL string `json:"url"`
	// Checksum is the hex SHA-256 of the archive. Optional; verified
	// when present.
	Checksum string `json:"checksum,omitempty"`
}

// Listing is the registry's full record for one plugin.
type Listing struct {
	Summary
	Versions []Release `json:"versions"`
	Readme   string    `json:"readme,omitempty"`
}

// SearchOptions narrow a registry search.
type SearchOptions struct {
	// Query matches against plugin names and descriptions.
	Query string
	// Type restricts results to one plugin type when non-empty.
	Type string
	// Limit caps the number of results. Zero means the server default.
	Limit int
}

// Client talks to a skiff plugin registry over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger.WithComponent("marketplace")
	}
}

// NewClient creates a registry client. An empty baseURL means the default
// public registry.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NullLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the registry and returns matching plugins. When a query
// is given, results come back re-ranked by fuzzy match quality against
// plugin names, with non-matching entries after the matches in server
// order.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Summary, error) {
	params := url.Values{}
	if opts.Query != "" {
		params.Set("q", opts.Query)
	}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	endpoint := c.baseURL + "/api/v1/plugins"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var payload struct {
		Plugins []Summary `json:"plugins"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := payload.Plugins
	if opts.Query != "" {
		results = rankByName(opts.Query, results)
	}
	return results, nil
}

// Get fetches the registry's full record for one plugin. Returns
// ErrNotFound when the registry does not know the name.
func (c *Client) Get(ctx context.Context, name string) (*Listing, error) {
	endpoint := c.baseURL + "/api/v1/plugins/" + url.PathEscape(name)

	var listing Listing
	if err := c.getJSON(ctx, endpoint, &listing); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}
	return &listing, nil
}

// Download fetches a release archive to a temporary file and returns its
// path. An empty version means the latest release. The caller owns the
// file and removes it when done. The archive's checksum is verified when
// the registry publishes one.
func (c *Client) Download(ctx context.Context, name, version string) (string, error) {
	listing, err := c.Get(ctx, name)
	if err != nil {
		return "", err
	}

	release, err := pickRelease(listing, version)
	if err != nil {
		return "", err
	}

	archiveURL := release.URL
	if strings.HasPrefix(archiveURL, "/") {
		archiveURL = c.baseURL + archiveURL
	}

	req, err := c.newRequest(ctx, archiveURL)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "skiff-plugin-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("saving download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("saving download: %w", err)
	}

	if release.Checksum != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(sum, release.Checksum) {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, release.Checksum)
		}
	}

	c.logger.Debug("downloaded %s %s to %s", name, release.Version, tmp.Name())
	return tmp.Name(), nil
}

// pickRelease selects the requested version, or the listing's current
// version when the request is empty.
func pickRelease(listing *Listing, version string) (Release, error) {
	if version == "" {
		version = listing.Version
	}
	for _, rel := range listing.Versions {
		if rel.Version == version {
			return rel, nil
		}
	}
	return Release{}, fmt.Errorf("%s has no release %s", listing.Name, version)
}

// rankByName reorders results so fuzzy matches on the query come first,
// best match leading. Entries the query does not match keep their server
// order after the matches.
func rankByName(query string, results []Summary) []Summary {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}

	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return results
	}

	ranked := make([]Summary, 0, len(results))
	seen := make(map[int]bool, len(matches))
	for _, match := range matches {
		ranked = append(ranked, results[match.Index])
		seen[match.Index] = true
	}
	for i, r := range results {
		if !seen[i] {
			ranked = append(ranked, r)
		}
	}
	return ranked
}

// newRequest builds a GET request with the client's standing headers.
func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// getJSON performs a GET and decodes the JSON response body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
