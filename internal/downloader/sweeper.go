package downloader

import (
	"context"
	"log/slog"
	"time"

	"ytfetch/internal/platform/metrics"
)

// Sweeper periodically reclaims disk space from abandoned files. Failures are
// logged and swallowed; a bad cycle must never take down the host process.
type Sweeper struct {
	storage   *Storage
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewSweeper returns a Sweeper over storage that runs every interval and
// deletes files older than retention. Metrics may be nil.
func NewSweeper(storage *Storage, interval, retention time.Duration, log *slog.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		storage:   storage,
		interval:  interval,
		retention: retention,
		log:       log,
		metrics:   m,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. It is tied to the
// process lifetime by the caller; tests use SweepOnce instead of waiting on
// the wall clock.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single best-effort sweep cycle.
func (s *Sweeper) SweepOnce() {
	removed, err := s.storage.Sweep(time.Now(), s.retention)
	if err != nil {
		s.log.Warn("sweep cycle aborted", slog.String("error", err.Error()))
	}
	if removed > 0 {
		s.log.Info("swept expired files", slog.Int("removed", removed))
	}
	if s.metrics != nil {
		s.metrics.AddFilesSwept(removed)
	}
}
