package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// MoodStatsSource is the part of the audit store the aggregator reads
type MoodStatsSource interface {
	MoodStats(ctx context.Context, since time.Time) ([]domain.MoodCount, error)
}

// Aggregator periodically refreshes the stored-mood gauges from the audit store
type Aggregator struct {
	source   MoodStatsSource
	metrics  *Metrics
	logger   *slog.Logger
	interval time.Duration
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewAggregator creates a new metrics aggregator worker. window limits the
// statistics to recent analyses; zero means all of them.
func NewAggregator(source MoodStatsSource, m *Metrics, logger *slog.Logger, interval, window time.Duration) *Aggregator {
	if interval == 0 {
		interval = 1 * time.Minute
	}

	return &Aggregator{
		source:   source,
		metrics:  m,
		logger:   logger,
		interval: interval,
		window:   window,
		done:     make(chan struct{}),
	}
}

// Start begins the aggregation worker and blocks until ctx ends or Stop is called
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("metrics aggregator started", "interval", a.interval)
	a.aggregate(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("metrics aggregator stopped")
			return
		case <-ticker.C:
			a.aggregate(ctx)
		}
	}
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *Aggregator) aggregate(ctx context.Context) {
	a.logger.Debug("running metrics aggregation")

	var since time.Time
	if a.window > 0 {
		since = time.Now().Add(-a.window)
	}

	qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	counts, err := a.source.MoodStats(qctx, since)
	if err != nil {
		a.logger.Error("failed to aggregate mood stats", "error", err)
		return
	}
	a.metrics.SetMoodDistribution(counts)
}
