package bridge

import (
	"context"
	"errors"
	"sync"

	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/mapping"
	"mqtt-zenoh-bridge/internal/metrics"
	"mqtt-zenoh-bridge/internal/stats"
	"mqtt-zenoh-bridge/internal/transport"
)

// Pipeline relays one direction: it consumes a source stream, translates
// names through the mapper, and publishes to the destination adapter through
// a bounded queue. The queue is the only buffer; when the destination stalls
// and the queue fills, backpressure propagates to the source stream.
//
// The source stream arrives through a handoff channel rather than at
// construction, because the supervisor replaces it on every reconnect. The
// queue survives those swaps, so messages accepted before a disconnect are
// still delivered after.
type Pipeline struct {
	direction mapping.Direction
	mapper    *mapping.Mapper
	dest      transport.Adapter

	streams chan (<-chan transport.Message)
	queue   chan transport.Message

	// srcEcho holds reflections expected on this pipeline's source
	// transport; dstEcho is where this pipeline registers its own
	// bidirectional-rule publishes for the opposite pipeline to consume.
	srcEcho *echoGuard
	dstEcho *echoGuard

	defaultQoS byte

	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.PipelineStats
}

// NewPipeline creates a relay pipeline for one direction. defaultQoS applies
// to destination publishes when no rule override is set.
func NewPipeline(direction mapping.Direction, mapper *mapping.Mapper, dest transport.Adapter,
	queueSize int, defaultQoS byte, srcEcho, dstEcho *echoGuard,
	log *logger.Logger, m *metrics.Metrics, ps *stats.PipelineStats) *Pipeline {

	return &Pipeline{
		direction:  direction,
		mapper:     mapper,
		dest:       dest,
		streams:    make(chan (<-chan transport.Message), 1),
		queue:      make(chan transport.Message, queueSize),
		srcEcho:    srcEcho,
		dstEcho:    dstEcho,
		defaultQoS: defaultQoS,
		logger:     log,
		metrics:    m,
		stats:      ps,
	}
}

// Streams returns the channel the supervisor delivers fresh source streams
// on after each reconnect.
func (p *Pipeline) Streams() chan<- (<-chan transport.Message) {
	return p.streams
}

// Run processes messages until ctx is cancelled. It blocks.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.ingest(ctx)
	}()
	go func() {
		defer wg.Done()
		p.drain(ctx)
	}()
	wg.Wait()
}

// ingest pulls from the current source stream, applies the mapper, and
// enqueues translated messages. A nil stream blocks in the select until the
// supervisor hands one over.
func (p *Pipeline) ingest(ctx context.Context) {
	dir := string(p.direction)
	var stream <-chan transport.Message

	for {
		select {
		case <-ctx.Done():
			return
		case stream = <-p.streams:
			p.logger.Debug("source stream attached", "direction", dir)
		case msg, ok := <-stream:
			if !ok {
				stream = nil
				continue
			}
			p.stats.IncReceived()
			p.metrics.IncMessagesReceived(dir)

			out, ok := p.translate(msg)
			if !ok {
				continue
			}

			select {
			case p.queue <- out:
				p.metrics.SetQueueDepth(dir, float64(len(p.queue)))
			case <-ctx.Done():
				return
			}
		}
	}
}

// translate maps one inbound message to its outbound form, accounting for
// drops. ok is false when the message should not be relayed.
func (p *Pipeline) translate(msg transport.Message) (transport.Message, bool) {
	dir := string(p.direction)

	if p.srcEcho.observe(msg.Name) {
		p.stats.IncDropped(stats.DropLoopGuard)
		p.metrics.IncMessagesDropped(dir, stats.DropLoopGuard)
		p.logger.Debug("dropped reflection of own publish", "direction", dir, "name", msg.Name)
		return transport.Message{}, false
	}

	if p.mapper.Loopback(msg.Name, p.direction) {
		p.stats.IncDropped(stats.DropLoopGuard)
		p.metrics.IncMessagesDropped(dir, stats.DropLoopGuard)
		p.logger.Debug("dropped echoed message", "direction", dir, "name", msg.Name)
		return transport.Message{}, false
	}

	mapped, rule, ok := p.mapper.Translate(msg.Name, p.direction)
	if !ok {
		p.stats.IncDropped(stats.DropNoRule)
		p.metrics.IncMessagesDropped(dir, stats.DropNoRule)
		p.logger.Debug("no mapping rule for message", "direction", dir, "name", msg.Name)
		return transport.Message{}, false
	}

	out := msg
	out.Name = mapped
	out.QoS = p.defaultQoS
	if rule.QoS != nil {
		out.QoS = *rule.QoS
	}
	if rule.Retain != nil {
		out.Retain = *rule.Retain
	}

	// A bidirectional rule publishes into the space the opposite pipeline
	// subscribes to, so the destination transport will reflect this
	// message back; mark it for suppression before it can arrive.
	if rule.Direction == mapping.DirectionBoth {
		p.dstEcho.register(out.Name)
	}
	return out, true
}

// drain publishes queued messages to the destination adapter. Failed
// publishes are dropped, never retried; a dead destination must not wedge
// the queue.
func (p *Pipeline) drain(ctx context.Context) {
	dir := string(p.direction)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			p.metrics.SetQueueDepth(dir, float64(len(p.queue)))

			err := p.dest.Publish(ctx, msg)
			switch {
			case err == nil:
				p.stats.IncRelayed()
				p.metrics.IncMessagesRelayed(dir)
			case errors.Is(err, transport.ErrNotConnected):
				p.stats.IncDropped(stats.DropNotConnected)
				p.metrics.IncMessagesDropped(dir, stats.DropNotConnected)
				p.logger.Debug("dropped message, destination not connected",
					"direction", dir, "name", msg.Name)
			case errors.Is(err, transport.ErrPublishRejected):
				p.stats.IncDropped(stats.DropRejected)
				p.metrics.IncMessagesDropped(dir, stats.DropRejected)
				p.logger.Error("destination rejected message",
					"direction", dir, "name", msg.Name, "error", err)
			default:
				if ctx.Err() != nil {
					return
				}
				p.stats.IncDropped(stats.DropRejected)
				p.metrics.IncMessagesDropped(dir, stats.DropRejected)
				p.logger.Error("failed to publish message",
					"direction", dir, "name", msg.Name, "error", err)
			}
		}
	}
}
