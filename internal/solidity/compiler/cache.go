package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Holytrade/blockscout-rs/internal/observability/metrics"
)

// binaryName is the file each cached version materializes to.
const binaryName = "solc"

// Cache materializes fetched compiler binaries on disk, keyed by version.
// Downloads are single-flighted per version and written atomically (temp file
// then rename) so a concurrent lookup never observes a partial binary.
//
// The known-version set is an immutable snapshot swapped atomically: the
// Refresher publishes new snapshots while readers keep whatever they loaded,
// and a handle already handed out is never invalidated.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger

	group singleflight.Group
	known atomic.Pointer[map[string]Version]
}

// NewCache creates a cache rooted at dir, creating the directory if needed.
func NewCache(dir string, fetcher Fetcher, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating compilers dir: %w", err)
	}
	c := &Cache{dir: dir, fetcher: fetcher, logger: logger}
	empty := map[string]Version{}
	c.known.Store(&empty)
	return c, nil
}

// path returns the executable location for a version, whether present or not.
func (c *Cache) path(v Version) string {
	return filepath.Join(c.dir, v.String(), binaryName)
}

// GetOrFetch returns an executable path for the version, downloading on a
// cache miss. Concurrent misses for the same version collapse into a single
// download; duplicate requesters wait for the in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, v Version) (string, error) {
	dst := c.path(v)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	res, err, _ := c.group.Do(v.String(), func() (any, error) {
		// Re-check under the single-flight lock; a concurrent caller may
		// have completed the download while we waited.
		if _, err := os.Stat(dst); err == nil {
			return dst, nil
		}
		if err := c.download(ctx, v, dst); err != nil {
			return "", err
		}
		return dst, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// download fetches the binary and moves it into place atomically.
func (c *Cache) download(ctx context.Context, v Version, dst string) error {
	data, err := c.fetcher.Fetch(ctx, v)
	if err != nil {
		metrics.ObserveCompilerFetch("error")
		return err
	}
	metrics.ObserveCompilerFetch("success")

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating version dir: %w", err)
	}

	tmp := filepath.Join(c.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o755); err != nil {
		return fmt.Errorf("writing compiler binary: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing compiler binary: %w", err)
	}

	c.logger.Info("compiler installed", "version", v.String(), "path", dst)
	c.AddVersions([]Version{v})
	return nil
}

// Knows reports whether the version appears in the current known-version
// snapshot.
func (c *Cache) Knows(v Version) bool {
	_, ok := (*c.known.Load())[v.String()]
	return ok
}

// KnownCount returns the size of the current known-version snapshot.
func (c *Cache) KnownCount() int {
	return len(*c.known.Load())
}

// Versions returns the current known-version snapshot.
func (c *Cache) Versions() []Version {
	known := *c.known.Load()
	out := make([]Version, 0, len(known))
	for _, v := range known {
		out = append(out, v)
	}
	return out
}

// AddVersions merges versions into the known set via copy-on-write and
// returns how many were new. Entries are never removed, so a version already
// cached and referenced stays resolvable.
func (c *Cache) AddVersions(versions []Version) int {
	for {
		old := c.known.Load()
		added := 0
		for _, v := range versions {
			if _, ok := (*old)[v.String()]; !ok {
				added++
			}
		}
		if added == 0 {
			return 0
		}

		next := make(map[string]Version, len(*old)+added)
		for k, v := range *old {
			next[k] = v
		}
		for _, v := range versions {
			next[v.String()] = v
		}
		if c.known.CompareAndSwap(old, &next) {
			return added
		}
		// Lost the race against another publisher; retry on the new snapshot.
	}
}

// Latest returns the highest known version, for refresh bookkeeping only.
// Correctness of explicit version requests never depends on this ordering.
func (c *Cache) Latest() (Version, bool) {
	var best Version
	for _, v := range *c.known.Load() {
		if best.IsZero() || v.Compare(best) > 0 {
			best = v
		}
	}
	return best, !best.IsZero()
}
