package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func serveJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func TestClientSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plugins" {
			t.Errorf("path = %q, want /api/v1/plugins", r.URL.Path)
		}
		serveJSON(t, w, map[string]any{
			"plugins": []Summary{
				{Name: "git-helper", Version: "1.2.0", Type: "tool", Downloads: 420, Rating: 4.5},
				{Name: "dark-theme", Version: "0.3.1", Type: "theme"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	results, err := client.Search(context.Background(), SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Name != "git-helper" {
		t.Errorf("results[0].Name = %q, want %q", results[0].Name, "git-helper")
	}
	if results[0].Downloads != 420 {
		t.Errorf("results[0].Downloads = %d, want 420", results[0].Downloads)
	}
	if results[0].Rating != 4.5 {
		t.Errorf("results[0].Rating = %v, want 4.5", results[0].Rating)
	}
	if results[1].Type != "theme" {
		t.Errorf("results[1].Type = %q, want %q", results[1].Type, "theme")
	}
}

func TestClientSearchParams(t *testing.T) {
	var gotQuery, gotType, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotType = r.URL.Query().Get("type")
		gotLimit = r.URL.Query().Get("limit")
		serveJSON(t, w, map[string]any{"plugins": []Summary{}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), SearchOptions{
		Query: "git",
		Type:  "tool",
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotQuery != "git" {
		t.Errorf("q = %q, want %q", gotQuery, "git")
	}
	if gotType != "tool" {
		t.Errorf("type = %q, want %q", gotType, "tool")
	}
	if gotLimit != "5" {
		t.Errorf("limit = %q, want %q", gotLimit, "5")
	}
}

func TestClientSearchFuzzyRank(t *testing.T) {
	// Server order buries the best name match; the client reorders.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, map[string]any{
			"plugins": []Summary{
				{Name: "zebra-tools"},
				{Name: "digit-span"},
				{Name: "git-helper"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	results, err := client.Search(context.Background(), SearchOptions{Query: "git"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Name != "git-helper" {
		t.Errorf("results[0].Name = %q, want %q", results[0].Name, "git-helper")
	}
	// zebra-tools has no match and sinks below every match.
	if results[2].Name != "zebra-tools" {
		t.Errorf("results[2].Name = %q, want %q", results[2].Name, "zebra-tools")
	}
}

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plugins/git-helper" {
			t.Errorf("path = %q, want /api/v1/plugins/git-helper", r.URL.Path)
		}
		serveJSON(t, w, Listing{
			Summary: Summary{Name: "git-helper", Version: "1.2.0", Author: "skiff"},
			Versions: []Release{
				{Version: "1.2.0", URL: "/archives/git-helper-1.2.0.zip"},
				{Version: "1.1.0", URL: "/archives/git-helper-1.1.0.zip"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	listing, err := client.Get(context.Background(), "git-helper")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if listing.Name != "git-helper" {
		t.Errorf("Name = %q, want %q", listing.Name, "git-helper")
	}
	if len(listing.Versions) != 2 {
		t.Fatalf("len(Versions) = %d, want 2", len(listing.Versions))
	}
	if listing.Versions[0].Version != "1.2.0" {
		t.Errorf("Versions[0].Version = %q, want %q", listing.Versions[0].Version, "1.2.0")
	}
}

func TestClientGetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), SearchOptions{})
	if err == nil {
		t.Fatal("Search() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want mention of status 500", err)
	}
}

func TestClientAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		serveJSON(t, w, map[string]any{"plugins": []Summary{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("secret-token"))
	if _, err := client.Search(context.Background(), SearchOptions{}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret-token")
	}
}

func TestClientDownload(t *testing.T) {
	archive := []byte("fake zip bytes")
	sum := sha256.Sum256(archive)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/plugins/git-helper":
			serveJSON(t, w, Listing{
				Summary: Summary{Name: "git-helper", Version: "1.2.0"},
				Versions: []Release{
					{
						Version:  "1.2.0",
						URL:      "/archives/git-helper-1.2.0.zip",
						Checksum: hex.EncodeToString(sum[:]),
					},
				},
			})
		case "/archives/git-helper-1.2.0.zip":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	path, err := client.Download(context.Background(), "git-helper", "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(got) != string(archive) {
		t.Errorf("downloaded bytes = %q, want %q", got, archive)
	}
}

func TestClientDownloadChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/plugins/git-helper":
			serveJSON(t, w, Listing{
				Summary: Summary{Name: "git-helper", Version: "1.2.0"},
				Versions: []Release{
					{
						Version:  "1.2.0",
						URL:      "/archives/git-helper-1.2.0.zip",
						Checksum: strings.Repeat("ab", 32),
					},
				},
			})
		case "/archives/git-helper-1.2.0.zip":
			w.Write([]byte("tampered bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Download(context.Background(), "git-helper", "")
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Download() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestClientDownloadUnknownVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, Listing{
			Summary:  Summary{Name: "git-helper", Version: "1.2.0"},
			Versions: []Release{{Version: "1.2.0", URL: "/a.zip"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Download(context.Background(), "git-helper", "9.9.9")
	if err == nil {
		t.Fatal("Download() error = nil, want unknown version error")
	}
	if !strings.Contains(err.Error(), "9.9.9") {
		t.Errorf("error = %v, want mention of 9.9.9", err)
	}
}

func TestClientDefaultBaseURL(t *testing.T) {
	client := NewClient("")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
}

func TestRankByNameNoMatches(t *testing.T) {
	results := []Summary{{Name: "alpha"}, {Name: "beta"}}
	ranked := rankByName("zzz", results)
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2", len(ranked))
	}
	if ranked[0].Name != "alpha" || ranked[1].Name != "beta" {
		t.Errorf("ranked = %v, want server order preserved", ranked)
	}
}
