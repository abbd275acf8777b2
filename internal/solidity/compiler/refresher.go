package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule re-lists available versions hourly.
const DefaultRefreshSchedule = "0 0 * * * *"

// scheduleParser accepts six-field cron expressions (seconds first), matching
// the schedule format the service has historically been configured with.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a refresh schedule expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// Refresher periodically re-lists the fetcher's available versions and merges
// newly discovered ones into the cache's known set. Binaries are downloaded
// lazily on first use, never eagerly by the refresher.
type Refresher struct {
	schedule cron.Schedule
	fetcher  Fetcher
	cache    *Cache
	logger   *slog.Logger
}

// NewRefresher creates a refresher driving cache updates from fetcher.
func NewRefresher(schedule cron.Schedule, fetcher Fetcher, cache *Cache, logger *slog.Logger) *Refresher {
	return &Refresher{schedule: schedule, fetcher: fetcher, cache: cache, logger: logger}
}

// Run loops until ctx is cancelled. The shutdown signal is observed at the
// top of each schedule wait, so cancellation never interrupts a tick
// mid-fetch.
func (r *Refresher) Run(ctx context.Context) {
	for {
		next := r.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		r.Tick(ctx)
	}
}

// Tick performs one refresh. A failed tick is logged and retried on the next
// schedule wait; it never crashes the owning process. Running Tick twice
// against an unchanged listing is a no-op.
func (r *Refresher) Tick(ctx context.Context) {
	versions, err := r.fetcher.ListAvailable(ctx)
	if err != nil {
		r.logger.Warn("compiler version refresh failed", "error", err)
		return
	}
	if added := r.cache.AddVersions(versions); added > 0 {
		latest, _ := r.cache.Latest()
		r.logger.Info("compiler versions refreshed",
			"discovered", added,
			"known", r.cache.KnownCount(),
			"latest", latest.String(),
		)
	}
}
