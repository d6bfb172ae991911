package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/metrics"
	"mqtt-zenoh-bridge/internal/stats"
	"mqtt-zenoh-bridge/internal/transport"
)

// closeTimeout bounds how long a draining session may take to shut down.
const closeTimeout = 5 * time.Second

// Supervisor owns one transport session end to end: it connects with
// exponential backoff, establishes subscriptions, hands the inbound stream
// to the pipeline, and reacts to session loss by starting over. Retries
// never give up; only context cancellation ends the loop.
type Supervisor struct {
	adapter transport.Adapter
	streams chan<- (<-chan transport.Message)
	backoff *backoff
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.Collector

	state atomic.Int32
}

// NewSupervisor creates a supervisor for one adapter. Streams produced by
// successful subscriptions are delivered on the streams channel.
func NewSupervisor(adapter transport.Adapter, streams chan<- (<-chan transport.Message),
	cfg config.BackoffConfig, log *logger.Logger, m *metrics.Metrics, st *stats.Collector) (*Supervisor, error) {

	b, err := newBackoff(cfg)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		adapter: adapter,
		streams: streams,
		backoff: b,
		logger:  log,
		metrics: m,
		stats:   st,
	}, nil
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Run drives the session lifecycle until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	name := s.adapter.Name()
	attempt := 0

	for {
		s.transition(StateConnecting)
		if attempt > 0 {
			s.metrics.IncReconnects(name)
			s.stats.IncReconnects()
		}
		attempt++

		if err := s.adapter.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				s.drain(name)
				return
			}
			s.logConnectFailure(name, err)
			s.stats.IncErrors()
			s.transition(StateDisconnected)
			if !s.sleep(ctx) {
				s.drain(name)
				return
			}
			continue
		}

		stream, err := s.adapter.SubscribeAll(ctx)
		if err != nil {
			s.logger.Error("subscription setup failed", "transport", name, "error", err)
			s.stats.IncErrors()
			s.adapter.Close(ctx)
			s.transition(StateDisconnected)
			if !s.sleep(ctx) {
				s.drain(name)
				return
			}
			continue
		}

		s.backoff.Reset()
		s.transition(StateConnected)
		s.metrics.SetConnectionStatus(name, true)
		s.logger.Info("transport session established", "transport", name)

		select {
		case s.streams <- stream:
		case <-ctx.Done():
			s.drain(name)
			return
		}

		select {
		case err := <-s.adapter.Lost():
			s.logger.Warn("transport session lost", "transport", name, "error", err)
			s.stats.IncErrors()
			s.metrics.SetConnectionStatus(name, false)
			s.transition(StateDisconnected)
			if !s.sleep(ctx) {
				s.drain(name)
				return
			}
		case <-ctx.Done():
			s.drain(name)
			return
		}
	}
}

// sleep waits out the current backoff delay. It returns false when ctx is
// cancelled during the wait.
func (s *Supervisor) sleep(ctx context.Context) bool {
	delay := s.backoff.Next()
	s.logger.Debug("waiting before reconnect",
		"transport", s.adapter.Name(),
		"delay", delay.String())

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain closes the session for good on shutdown.
func (s *Supervisor) drain(name string) {
	s.transition(StateDraining)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := s.adapter.Close(closeCtx); err != nil {
		s.logger.Error("failed to close transport session", "transport", name, "error", err)
	}
	s.metrics.SetConnectionStatus(name, false)
	s.logger.Info("transport session drained", "transport", name)
}

func (s *Supervisor) transition(state ConnectionState) {
	s.state.Store(int32(state))
	s.metrics.IncStateTransitions(s.adapter.Name(), state.String())
}

func (s *Supervisor) logConnectFailure(name string, err error) {
	switch {
	case errors.Is(err, transport.ErrRejected):
		s.logger.Error("transport rejected the connection", "transport", name, "error", err)
	default:
		s.logger.Warn("transport unreachable", "transport", name, "error", err)
	}
}
