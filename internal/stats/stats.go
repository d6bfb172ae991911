// Package stats tracks relay counters shared by the pipelines and the
// metrics collector.
package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Drop reasons reported by the pipelines.
const (
	DropNoRule       = "no_rule"
	DropLoopGuard    = "loop_guard"
	DropNotConnected = "not_connected"
	DropRejected     = "rejected"
)

// PipelineStats holds counters for one relay direction. All fields are
// updated atomically.
type PipelineStats struct {
	Received            uint64
	Relayed             uint64
	DroppedNoRule       uint64
	DroppedLoopGuard    uint64
	DroppedNotConnected uint64
	DroppedRejected     uint64
}

// Collector manages bridge-wide statistics
type Collector struct {
	StartTime   time.Time
	MQTTToZenoh PipelineStats
	ZenohToMQTT PipelineStats
	Reconnects  uint64
	Errors      uint64
}

// NewCollector creates a new stats collector
func NewCollector() *Collector {
	return &Collector{
		StartTime: time.Now(),
	}
}

// IncReceived records a message pulled from a source stream
func (p *PipelineStats) IncReceived() {
	atomic.AddUint64(&p.Received, 1)
}

// IncRelayed records a successful destination publish
func (p *PipelineStats) IncRelayed() {
	atomic.AddUint64(&p.Relayed, 1)
}

// IncDropped records a dropped message by reason
func (p *PipelineStats) IncDropped(reason string) {
	switch reason {
	case DropNoRule:
		atomic.AddUint64(&p.DroppedNoRule, 1)
	case DropLoopGuard:
		atomic.AddUint64(&p.DroppedLoopGuard, 1)
	case DropNotConnected:
		atomic.AddUint64(&p.DroppedNotConnected, 1)
	case DropRejected:
		atomic.AddUint64(&p.DroppedRejected, 1)
	}
}

// Dropped returns the total number of dropped messages
func (p *PipelineStats) Dropped() uint64 {
	return atomic.LoadUint64(&p.DroppedNoRule) +
		atomic.LoadUint64(&p.DroppedLoopGuard) +
		atomic.LoadUint64(&p.DroppedNotConnected) +
		atomic.LoadUint64(&p.DroppedRejected)
}

func (p *PipelineStats) snapshot() map[string]interface{} {
	return map[string]interface{}{
		"received":              atomic.LoadUint64(&p.Received),
		"relayed":               atomic.LoadUint64(&p.Relayed),
		"dropped_no_rule":       atomic.LoadUint64(&p.DroppedNoRule),
		"dropped_loop_guard":    atomic.LoadUint64(&p.DroppedLoopGuard),
		"dropped_not_connected": atomic.LoadUint64(&p.DroppedNotConnected),
		"dropped_rejected":      atomic.LoadUint64(&p.DroppedRejected),
	}
}

// IncReconnects records a transport reconnection
func (c *Collector) IncReconnects() {
	atomic.AddUint64(&c.Reconnects, 1)
}

// IncErrors records a transport-level error
func (c *Collector) IncErrors() {
	atomic.AddUint64(&c.Errors, 1)
}

// GetStats returns current statistics
func (c *Collector) GetStats() map[string]interface{} {
	uptime := time.Since(c.StartTime)
	return map[string]interface{}{
		"uptime":        uptime.String(),
		"mqtt_to_zenoh": c.MQTTToZenoh.snapshot(),
		"zenoh_to_mqtt": c.ZenohToMQTT.snapshot(),
		"reconnects":    atomic.LoadUint64(&c.Reconnects),
		"errors":        atomic.LoadUint64(&c.Errors),
	}
}

// GetStatsJSON returns stats as JSON
func (c *Collector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(c.GetStats())
}

// CalculateRate calculates the overall relay rate in messages per second
func (c *Collector) CalculateRate() float64 {
	uptime := time.Since(c.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	relayed := atomic.LoadUint64(&c.MQTTToZenoh.Relayed) +
		atomic.LoadUint64(&c.ZenohToMQTT.Relayed)
	return float64(relayed) / uptime
}
