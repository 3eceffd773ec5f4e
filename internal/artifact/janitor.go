package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Janitor removes synthesized files once they are older than maxAge
type Janitor struct {
	store    *Store
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewJanitor creates a janitor for the store
func NewJanitor(store *Store, maxAge, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps the cache every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Artifact janitor started",
		zap.String("dir", j.store.Dir()),
		zap.Duration("maxAge", j.maxAge),
		zap.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Artifact janitor stopped")
			return nil
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep removes expired files and returns how many were deleted
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.store.Dir())
	if err != nil {
		j.logger.Error("Failed to list cache dir", zap.Error(err))
		return 0
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.store.Dir(), entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("Failed to remove expired artifact", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("Expired artifacts removed", zap.Int("count", removed))
	}
	return removed
}
