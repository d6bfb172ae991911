// Package bridge contains the relay engine: two independent one-direction
// pipelines fed by supervised transport sessions.
package bridge

import (
	"context"
	"sync"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/mapping"
	"mqtt-zenoh-bridge/internal/metrics"
	"mqtt-zenoh-bridge/internal/stats"
	"mqtt-zenoh-bridge/internal/transport"
)

// Bridge ties the two transports together: a supervisor per transport keeps
// its session alive, and a pipeline per direction relays messages between
// them. The directions share nothing but the mapper, so a stall on one never
// slows the other.
type Bridge struct {
	mqttToZenoh *Pipeline
	zenohToMQTT *Pipeline
	mqttSup     *Supervisor
	zenohSup    *Supervisor
	logger      *logger.Logger
}

// NewBridge wires pipelines and supervisors around the two adapters.
func NewBridge(cfg *config.Config, mapper *mapping.Mapper, mqttAdapter, zenohAdapter transport.Adapter,
	log *logger.Logger, m *metrics.Metrics, st *stats.Collector) (*Bridge, error) {

	// one reflection guard per transport, shared by the two pipelines
	mqttEcho := newEchoGuard()
	zenohEcho := newEchoGuard()

	mqttToZenoh := NewPipeline(mapping.DirectionMQTTToZenoh, mapper, zenohAdapter,
		cfg.Bridge.QueueSize, 0, mqttEcho, zenohEcho, log, m, &st.MQTTToZenoh)
	zenohToMQTT := NewPipeline(mapping.DirectionZenohToMQTT, mapper, mqttAdapter,
		cfg.Bridge.QueueSize, cfg.MQTT.DefaultQoS, zenohEcho, mqttEcho, log, m, &st.ZenohToMQTT)

	mqttSup, err := NewSupervisor(mqttAdapter, mqttToZenoh.Streams(), cfg.Bridge.Backoff, log, m, st)
	if err != nil {
		return nil, err
	}
	zenohSup, err := NewSupervisor(zenohAdapter, zenohToMQTT.Streams(), cfg.Bridge.Backoff, log, m, st)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		mqttToZenoh: mqttToZenoh,
		zenohToMQTT: zenohToMQTT,
		mqttSup:     mqttSup,
		zenohSup:    zenohSup,
		logger:      log,
	}, nil
}

// Run starts both supervisors and both pipelines and blocks until ctx is
// cancelled and everything has wound down.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info("bridge starting")

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){
		b.mqttSup.Run,
		b.zenohSup.Run,
		b.mqttToZenoh.Run,
		b.zenohToMQTT.Run,
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	wg.Wait()

	b.logger.Info("bridge stopped")
}

// States returns the current connection states, keyed by transport name.
func (b *Bridge) States() map[string]ConnectionState {
	return map[string]ConnectionState{
		b.mqttSup.adapter.Name():  b.mqttSup.State(),
		b.zenohSup.adapter.Name(): b.zenohSup.State(),
	}
}
