package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/metrics"
	"mqtt-zenoh-bridge/internal/transport"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "error",
		Encoding:   "console",
		OutputPath: "stdout",
	})
	require.NoError(t, err)
	return log
}

func testMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.NewMetrics(nil)
	require.NoError(t, err)
	return m
}

func testBackoffConfig() config.BackoffConfig {
	return config.BackoffConfig{
		InitialDelay: "1ms",
		MaxDelay:     "5ms",
		Multiplier:   2.0,
	}
}

// mockAdapter is a scriptable transport.Adapter. Inbound messages are
// injected with inject; outbound publishes land on the published channel.
type mockAdapter struct {
	name string

	mu          sync.Mutex
	stream      chan transport.Message
	connectErrs []error
	publishErr  error
	publishGate chan struct{}

	connectCalls   atomic.Int32
	subscribeCalls atomic.Int32
	closed         atomic.Bool
	connected      atomic.Bool

	lost      chan error
	published chan transport.Message
}

func newMockAdapter(name string) *mockAdapter {
	return &mockAdapter{
		name:      name,
		lost:      make(chan error, 1),
		published: make(chan transport.Message, 128),
	}
}

// failConnects queues errors returned by successive Connect calls before
// attempts start succeeding.
func (m *mockAdapter) failConnects(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErrs = append(m.connectErrs, errs...)
}

func (m *mockAdapter) setPublishErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// gatePublishes makes Publish block until the returned channel is closed,
// simulating a stalled destination.
func (m *mockAdapter) gatePublishes() chan struct{} {
	gate := make(chan struct{})
	m.mu.Lock()
	m.publishGate = gate
	m.mu.Unlock()
	return gate
}

// inject feeds one message into the current subscription stream.
func (m *mockAdapter) inject(msg transport.Message) {
	m.mu.Lock()
	ch := m.stream
	m.mu.Unlock()
	ch <- msg
}

// dropSession simulates a session loss.
func (m *mockAdapter) dropSession(err error) {
	m.connected.Store(false)
	m.lost <- err
}

func (m *mockAdapter) Name() string {
	return m.name
}

func (m *mockAdapter) Connect(ctx context.Context) error {
	m.connectCalls.Add(1)

	m.mu.Lock()
	var err error
	if len(m.connectErrs) > 0 {
		err = m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.connected.Store(true)
	return nil
}

func (m *mockAdapter) SubscribeAll(ctx context.Context) (<-chan transport.Message, error) {
	m.subscribeCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = make(chan transport.Message, 16)
	return m.stream, nil
}

func (m *mockAdapter) Publish(ctx context.Context, msg transport.Message) error {
	m.mu.Lock()
	err := m.publishErr
	gate := m.publishGate
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.published <- msg
	return nil
}

func (m *mockAdapter) Connected() bool {
	return m.connected.Load()
}

func (m *mockAdapter) Lost() <-chan error {
	return m.lost
}

func (m *mockAdapter) Close(ctx context.Context) error {
	m.closed.Store(true)
	m.connected.Store(false)
	return nil
}
