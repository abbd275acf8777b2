package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ManagerSettings configures the compiler manager.
type ManagerSettings struct {
	// Dir is the local directory binaries are cached under.
	Dir string
	// RefreshSchedule is a six-field cron expression (seconds first) for the
	// background version refresh. Defaults to hourly.
	RefreshSchedule string
	// FetchRetries is how many times a transient fetch failure is retried
	// inside the manager before surfacing to the caller. Zero leaves retry
	// policy entirely to the caller.
	FetchRetries int
}

// Manager is the facade the verification engine depends on: it combines the
// on-disk cache with the scheduled refresher and answers "give me an
// executable for version V".
type Manager struct {
	settings ManagerSettings
	cache    *Cache
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds the cache, seeds the known-version set with an initial
// listing, and starts the refresher in the background. Call Shutdown to stop
// it.
func NewManager(ctx context.Context, settings ManagerSettings, fetcher Fetcher, logger *slog.Logger) (*Manager, error) {
	expr := settings.RefreshSchedule
	if expr == "" {
		expr = DefaultRefreshSchedule
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", expr, err)
	}

	cache, err := NewCache(settings.Dir, fetcher, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		settings: settings,
		cache:    cache,
		logger:   logger,
		done:     make(chan struct{}),
	}

	refresher := NewRefresher(schedule, fetcher, cache, logger)

	// Seed the known set synchronously so explicit lookups can fail fast on
	// unknown versions. A failure here is tolerated: the set stays empty and
	// lookups fall through to the fetcher until the next tick succeeds.
	refresher.Tick(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go func() {
		defer close(m.done)
		refresher.Run(runCtx)
	}()

	return m, nil
}

// CompilerFor resolves the version to a ready-to-run executable path,
// fetching and caching transparently. Transient fetch failures are retried up
// to the configured count.
func (m *Manager) CompilerFor(ctx context.Context, v Version) (string, error) {
	// Fast rejection against the known set; skipped while the set is empty
	// (initial listing unavailable) so the fetcher stays the source of truth.
	if m.cache.KnownCount() > 0 && !m.cache.Knows(v) {
		return "", fmt.Errorf("%w: %s", ErrVersionNotFound, v)
	}

	var lastErr error
	for attempt := 0; attempt <= m.settings.FetchRetries; attempt++ {
		path, err := m.cache.GetOrFetch(ctx, v)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if !errors.Is(err, ErrFetchUnavailable) {
			return "", err
		}
		if attempt < m.settings.FetchRetries {
			m.logger.Warn("compiler fetch failed, retrying",
				"version", v.String(), "attempt", attempt+1, "error", err)
		}
	}
	return "", lastErr
}

// Versions returns the currently known compiler versions.
func (m *Manager) Versions() []Version {
	return m.cache.Versions()
}

// Shutdown stops the background refresher and waits for it to exit.
func (m *Manager) Shutdown() {
	m.cancel()
	<-m.done
}
