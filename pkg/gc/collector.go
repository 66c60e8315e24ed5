// Package gc removes blobs and storage key reservations left behind by
// interrupted uploads.
//
// Upload writes bytes before the registry record commits, so a crash in
// between leaves one of:
//   - a pending reservation that will never be bound
//   - a blob with no reservation at all (the reservation was released but
//     the blob delete failed)
//
// Neither is visible to callers. The collector finds both and removes them.
// Every blob delete happens while the collector holds a pending reservation
// on the key, so a concurrent upload can never resolve to a key whose bytes
// are being removed.
package gc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Config contains configuration for the orphan collector.
type Config struct {
	// Enabled controls whether periodic collection runs (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is how often to run (default: 1h)
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// ReservationTTL is the age after which a pending reservation is
	// considered abandoned (default: 1h). Must exceed the longest upload.
	ReservationTTL time.Duration `mapstructure:"reservation_ttl" yaml:"reservation_ttl"`

	// RunTimeout bounds a single periodic pass (default: 10m)
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`

	// DryRun logs what would be removed without removing it (default: false)
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// ApplyDefaults fills zero durations.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = time.Hour
	}
	if c.ReservationTTL == 0 {
		c.ReservationTTL = time.Hour
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = 10 * time.Minute
	}
}

// Collector performs periodic collection.
//
// Thread Safety: Safe for concurrent use. Passes never overlap; RunNow
// waits for a running periodic pass. Start and Stop may race; a Start that
// loses to Stop does not launch the worker.
type Collector struct {
	registry metadata.Registry
	blobs    content.ListableStore
	config   Config
	metrics  metrics.GCMetrics
	now      func() time.Time

	runMu sync.Mutex

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	stopOnce    sync.Once
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewCollector creates a collector. It is not started.
//
// Returns an error if blobs cannot enumerate its keys. m may be nil.
func NewCollector(registry metadata.Registry, blobs content.BlobStore, config Config, m metrics.GCMetrics) (*Collector, error) {
	listable, ok := blobs.(content.ListableStore)
	if !ok {
		return nil, errors.New("blob store does not implement ListableStore")
	}

	config.ApplyDefaults()
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		registry: registry,
		blobs:    listable,
		config:   config,
		metrics:  m,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the background worker. No-op when disabled.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Orphan collector disabled")
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.started || c.stopped {
		return
	}

	logger.Info("Starting orphan collector: interval=%s reservation_ttl=%s dry_run=%v",
		c.config.Interval, c.config.ReservationTTL, c.config.DryRun)

	c.started = true
	go c.worker()
}

// Stop signals the worker and waits for it, bounded by ctx.
func (c *Collector) Stop(ctx context.Context) error {
	c.lifecycleMu.Lock()
	c.stopped = true
	started := c.started
	c.lifecycleMu.Unlock()

	if !started {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Orphan collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Orphan collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one pass immediately and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running orphan collection (manual trigger)")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RunTimeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Orphan collection failed: %v", err)
			} else {
				logger.Info("Orphan collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single pass:
//  1. List blob keys
//  2. List reservations (after the blobs, so a blob written mid-pass is
//     never mistaken for an orphan)
//  3. Delete the blobs of pending reservations older than ReservationTTL,
//     then release the reservations
//  4. Claim each blob with no reservation, delete it, release the claim
//
// The snapshots from steps 1 and 2 go stale as soon as they are taken: a
// key can be freed by a delete and reserved again by an upload in between.
// Step 4 therefore decides through ClaimStorageKey, not the snapshot; a key
// that cannot be claimed is in use and is left alone.
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats = &Stats{StartTime: c.now(), DryRun: c.config.DryRun}
	defer func() {
		stats.EndTime = c.now()
		c.metrics.RecordRun(stats.Duration(), stats.OrphansDeleted, stats.ReservationsReleased, err)
	}()

	// Step 1: blobs
	keys, err := c.blobs.ListKeys(ctx)
	if err != nil {
		return stats, fmt.Errorf("list blobs: %w", err)
	}
	stats.Blobs = len(keys)

	// Step 2: reservations
	reservations, err := c.registry.ListStorageKeys(ctx)
	if err != nil {
		return stats, fmt.Errorf("list reservations: %w", err)
	}
	stats.Reservations = len(reservations)

	reserved := make(map[string]struct{}, len(reservations))
	for _, r := range reservations {
		reserved[r.Key] = struct{}{}
	}

	// Step 3: stale pending reservations
	cutoff := c.now().Add(-c.config.ReservationTTL)
	for _, r := range reservations {
		if r.State != metadata.ReservationPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.StaleReservations++
		if c.config.DryRun {
			logger.Info("GC: DRY RUN - would release %s (pending since %s)", r.Key, r.CreatedAt.Format(time.RFC3339))
			continue
		}

		// The reservation stays until the bytes are gone, so the key cannot
		// be handed out while they still exist.
		if err := c.deleteBlob(ctx, r.Key); err != nil {
			logger.Warn("GC: delete blob %s: %v", r.Key, err)
			stats.Failed++
			continue
		}

		if err := c.registry.ReleaseStorageKey(ctx, r.Key); err != nil {
			logger.Warn("GC: release %s: %v", r.Key, err)
			stats.Failed++
			continue
		}
		stats.ReservationsReleased++
	}

	// Step 4: orphan blobs
	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if c.config.DryRun {
			stats.Orphans++
			logger.Info("GC: DRY RUN - would delete orphan blob %s", key)
			continue
		}

		claimed, err := c.registry.ClaimStorageKey(ctx, key)
		if err != nil {
			logger.Warn("GC: claim %s: %v", key, err)
			stats.Failed++
			continue
		}
		if !claimed {
			logger.Debug("GC: %s was reserved during the pass, keeping it", key)
			continue
		}
		stats.Orphans++

		deleteErr := c.deleteBlob(ctx, key)
		if err := c.registry.ReleaseStorageKey(ctx, key); err != nil {
			// The claim ages out as a stale reservation on a later pass
			logger.Warn("GC: release claim %s: %v", key, err)
		}
		if deleteErr != nil {
			logger.Warn("GC: delete orphan %s: %v", key, deleteErr)
			stats.Failed++
			continue
		}
		stats.OrphansDeleted++
		logger.Debug("GC: deleted orphan blob %s", key)
	}

	return stats, nil
}

// deleteBlob removes key from the blob store. A blob that is already gone
// counts as deleted.
func (c *Collector) deleteBlob(ctx context.Context, key string) error {
	err := c.blobs.Delete(ctx, key)
	if errors.Is(err, content.ErrBlobNotFound) {
		return nil
	}
	return err
}

// Stats contains statistics from a collection pass.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	DryRun    bool

	Blobs        int // keys on the blob store
	Reservations int // reservations in the registry, pending and bound

	StaleReservations    int // pending reservations past the TTL
	ReservationsReleased int
	Orphans              int // blobs with no reservation
	OrphansDeleted       int
	Failed               int
}

// Duration returns the pass duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the pass.
func (s *Stats) Summary() string {
	return fmt.Sprintf("blobs=%d reservations=%d stale=%d released=%d orphans=%d deleted=%d failed=%d dry_run=%v duration=%s",
		s.Blobs, s.Reservations, s.StaleReservations, s.ReservationsReleased,
		s.Orphans, s.OrphansDeleted, s.Failed, s.DryRun, s.Duration())
}
