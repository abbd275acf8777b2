package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultListURL is the canonical solc release list for linux builds.
const DefaultListURL = "https://solc-bin.ethereum.org/linux-amd64/list.json"

// ListFetcher resolves versions through a remote list.json manifest in the
// solc-bin format: a "builds" array associating each long version with a
// download path and sha256 checksum.
type ListFetcher struct {
	listURL *url.URL
	client  *http.Client
}

// NewListFetcher creates a fetcher backed by the manifest at listURL.
func NewListFetcher(listURL string) (*ListFetcher, error) {
	u, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("parsing list url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("list url %q is not absolute", listURL)
	}
	return &ListFetcher{
		listURL: u,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// listManifest mirrors the solc-bin list.json format.
type listManifest struct {
	Builds []listBuild `json:"builds"`
}

type listBuild struct {
	Path        string `json:"path"`
	LongVersion string `json:"longVersion"`
	Sha256      string `json:"sha256"`
}

// fetchManifest downloads and indexes the manifest by canonical version.
// Failure to reach the manifest is an infrastructure error, never a
// version-not-found error.
func (f *ListFetcher) fetchManifest(ctx context.Context) (map[string]listBuild, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.listURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching compiler list: %v", ErrFetchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: compiler list returned status %d", ErrFetchUnavailable, resp.StatusCode)
	}

	var manifest listManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: decoding compiler list: %v", ErrFetchUnavailable, err)
	}

	builds := make(map[string]listBuild, len(manifest.Builds))
	for _, b := range manifest.Builds {
		v, err := ParseVersion(b.LongVersion)
		if err != nil {
			continue // skip malformed entries rather than failing the whole list
		}
		builds[v.String()] = b
	}
	return builds, nil
}

// Fetch downloads and checksum-verifies the binary for the given version.
func (f *ListFetcher) Fetch(ctx context.Context, v Version) ([]byte, error) {
	builds, err := f.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	build, ok := builds[v.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, v)
	}

	downloadURL, err := f.buildURL(build.Path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading compiler %s: %v", ErrFetchUnavailable, v, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: compiler download returned status %d", ErrFetchUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading compiler body: %v", ErrFetchUnavailable, err)
	}

	if err := verifyChecksum(data, build.Sha256); err != nil {
		return nil, err
	}
	return data, nil
}

// ListAvailable returns every version the manifest currently lists.
func (f *ListFetcher) ListAvailable(ctx context.Context) ([]Version, error) {
	builds, err := f.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]Version, 0, len(builds))
	for raw := range builds {
		v, err := ParseVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// buildURL resolves a manifest path against the list URL directory. Absolute
// paths are used as-is.
func (f *ListFetcher) buildURL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing build path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return f.listURL.ResolveReference(ref).String(), nil
}

// verifyChecksum checks data against a hex sha256 digest. An empty expected
// digest skips verification (the source published none).
func verifyChecksum(data []byte, expected string) error {
	expected = strings.TrimPrefix(strings.TrimSpace(expected), "0x")
	if expected == "" {
		return nil
	}
	sum := sha256.Sum256(data)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), expected) {
		return fmt.Errorf("%w: sha256 mismatch", ErrCorruptArtifact)
	}
	return nil
}
