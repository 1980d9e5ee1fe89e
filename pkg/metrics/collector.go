package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StoreProbe is the part of the store the collector polls
type StoreProbe interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Collector periodically samples store state into gauges and the health checker
type Collector struct {
	store    StoreProbe
	health   *HealthChecker
	logger   zerolog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store StoreProbe, health *HealthChecker, logger zerolog.Logger, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		store:    store,
		health:   health,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Store ping failed")
		c.health.UpdateComponent("store", false, err.Error())
		return
	}
	c.health.UpdateComponent("store", true, "")

	n, err := c.store.Count(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to count documents")
		return
	}
	DocumentsTotal.Set(float64(n))
}
