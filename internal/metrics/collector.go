package metrics

import (
	"time"

	"mqtt-zenoh-bridge/internal/stats"
)

// MetricsCollector periodically copies derived values from the stats
// collector into prometheus gauges.
type MetricsCollector struct {
	metrics  *Metrics
	stats    *stats.Collector
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewMetricsCollector creates a collector that updates every interval
func NewMetricsCollector(m *Metrics, s *stats.Collector, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:  m,
		stats:    s,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *MetricsCollector) Start() {
	go func() {
		defer close(c.stopped)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop halts periodic collection and waits for the worker to exit
func (c *MetricsCollector) Stop() {
	close(c.done)
	<-c.stopped
}

func (c *MetricsCollector) collect() {
	c.metrics.SetUptime(time.Since(c.stats.StartTime).Seconds())
	c.metrics.SetRelayRate(c.stats.CalculateRate())
}
