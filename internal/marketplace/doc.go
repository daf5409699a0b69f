// Package marketplace is the HTTP client for skiff plugin registries.
//
// A registry serves plugin metadata and release archives over a small
// JSON API. The client covers the three operations the CLI needs:
// searching the catalog, fetching one plugin's listing, and downloading
// a release archive with checksum verification.
//
//	client := marketplace.NewClient("", marketplace.WithAPIKey(key))
//	results, err := client.Search(ctx, marketplace.SearchOptions{Query: "git"})
//
// Search results are re-ranked client side by fuzzy match quality
// against plugin names so the best hits surface first regardless of
// server ordering.
package marketplace
