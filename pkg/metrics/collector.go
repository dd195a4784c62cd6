package metrics

import (
	"time"
)

// QueueStats is the snapshot the collector publishes as gauges
type QueueStats struct {
	Backlog  int `json:"backlog"`
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

// QueueStatsSource provides queue occupancy
type QueueStatsSource interface {
	Stats() QueueStats
}

// Collector periodically copies queue occupancy into gauges
type Collector struct {
	source   QueueStatsSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source QueueStatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
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
	stats := c.source.Stats()
	QueueBacklog.Set(float64(stats.Backlog))
	QueuePending.Set(float64(stats.Pending))
}
