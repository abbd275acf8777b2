package compiler

import (
	"context"
	"errors"
)

// Common errors returned by fetchers and the cache.
var (
	// ErrVersionNotFound means the requested version is unknown to the
	// fetcher's source of truth. Not retryable.
	ErrVersionNotFound = errors.New("compiler version not found")

	// ErrFetchUnavailable is a transient failure reaching the compiler list
	// or the storage bucket. Safe to retry.
	ErrFetchUnavailable = errors.New("compiler fetch unavailable")

	// ErrCorruptArtifact means a downloaded binary failed its checksum check.
	// The artifact is discarded, never cached; the next request re-downloads.
	ErrCorruptArtifact = errors.New("downloaded compiler failed checksum verification")
)

// Fetcher resolves compiler versions to downloadable binaries. Implementations
// perform network I/O only and never touch local state; the Cache owns disk.
type Fetcher interface {
	// Fetch downloads the compiler binary for the given version, verifying
	// its integrity when the source publishes a checksum. Returns
	// ErrVersionNotFound for unknown versions, ErrFetchUnavailable for
	// infrastructure failures and ErrCorruptArtifact on checksum mismatch.
	Fetch(ctx context.Context, v Version) ([]byte, error)

	// ListAvailable returns every version the source currently offers.
	ListAvailable(ctx context.Context) ([]Version, error)
}
