package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newListServer serves a list.json plus the binaries it references.
func newListServer(t *testing.T, binaries map[string][]byte, corruptChecksums bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var manifest listManifest
	for version, data := range binaries {
		sum := sha256.Sum256(data)
		checksum := "0x" + hex.EncodeToString(sum[:])
		if corruptChecksums {
			checksum = "0x" + hex.EncodeToString(make([]byte, 32))
		}
		path := "solc-" + version
		manifest.Builds = append(manifest.Builds, listBuild{
			Path:        path,
			LongVersion: version,
			Sha256:      checksum,
		})
		mux.HandleFunc("/"+path, func(data []byte) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				w.Write(data)
			}
		}(data))
	}

	mux.HandleFunc("/list.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(manifest)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListFetcherFetch(t *testing.T) {
	binary := []byte("fake solc binary")
	srv := newListServer(t, map[string][]byte{"0.8.28+commit.7893614a": binary}, false)

	fetcher, err := NewListFetcher(srv.URL + "/list.json")
	require.NoError(t, err)

	data, err := fetcher.Fetch(context.Background(), mustVersion(t, "v0.8.28+commit.7893614a"))
	require.NoError(t, err)
	assert.Equal(t, binary, data)
}

func TestListFetcherVersionNotFound(t *testing.T) {
	srv := newListServer(t, map[string][]byte{"0.8.28+commit.7893614a": []byte("x")}, false)

	fetcher, err := NewListFetcher(srv.URL + "/list.json")
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), mustVersion(t, "v0.4.24+commit.e67f0147"))
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestListFetcherChecksumMismatch(t *testing.T) {
	srv := newListServer(t, map[string][]byte{"0.8.28+commit.7893614a": []byte("x")}, true)

	fetcher, err := NewListFetcher(srv.URL + "/list.json")
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), mustVersion(t, "v0.8.28+commit.7893614a"))
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestListFetcherUnreachableManifest(t *testing.T) {
	// A closed server: reaching the manifest fails, which is an
	// infrastructure error, not version-not-found.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	fetcher, err := NewListFetcher(srv.URL + "/list.json")
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), mustVersion(t, "v0.8.28+commit.7893614a"))
	assert.ErrorIs(t, err, ErrFetchUnavailable)

	_, err = fetcher.ListAvailable(context.Background())
	assert.ErrorIs(t, err, ErrFetchUnavailable)
}

func TestListFetcherListAvailable(t *testing.T) {
	srv := newListServer(t, map[string][]byte{
		"0.8.28+commit.7893614a": []byte("a"),
		"0.8.27+commit.40a35a09": []byte("b"),
	}, false)

	fetcher, err := NewListFetcher(srv.URL + "/list.json")
	require.NoError(t, err)

	versions, err := fetcher.ListAvailable(context.Background())
	require.NoError(t, err)

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}
	assert.ElementsMatch(t, []string{"v0.8.28+commit.7893614a", "v0.8.27+commit.40a35a09"}, got)
}

func TestNewListFetcherRejectsRelativeURL(t *testing.T) {
	_, err := NewListFetcher("list.json")
	assert.Error(t, err)
}
