package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqtt-zenoh-bridge/internal/stats"
	"mqtt-zenoh-bridge/internal/transport"
)

func startSupervisor(t *testing.T, adapter *mockAdapter, st *stats.Collector) (chan (<-chan transport.Message), context.CancelFunc, chan struct{}) {
	t.Helper()

	streams := make(chan (<-chan transport.Message), 1)
	sup, err := NewSupervisor(adapter, streams, testBackoffConfig(),
		testLogger(t), testMetrics(t), st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("supervisor never stopped")
		}
	})
	return streams, cancel, done
}

func waitForStream(t *testing.T, streams chan (<-chan transport.Message)) <-chan transport.Message {
	t.Helper()
	select {
	case stream := <-streams:
		return stream
	case <-time.After(2 * time.Second):
		t.Fatal("no stream delivered")
		return nil
	}
}

func TestSupervisorEstablishesSession(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	streams, _, _ := startSupervisor(t, adapter, stats.NewCollector())

	stream := waitForStream(t, streams)
	assert.NotNil(t, stream)
	assert.True(t, adapter.Connected())
	assert.Equal(t, int32(1), adapter.connectCalls.Load())
}

func TestSupervisorRetriesUntilConnected(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	adapter.failConnects(
		fmt.Errorf("%w: connection refused", transport.ErrUnreachable),
		fmt.Errorf("%w: connection refused", transport.ErrUnreachable),
	)
	st := stats.NewCollector()
	streams, _, _ := startSupervisor(t, adapter, st)

	waitForStream(t, streams)
	assert.Equal(t, int32(3), adapter.connectCalls.Load())
	assert.Equal(t, uint64(2), atomic.LoadUint64(&st.Reconnects))
}

func TestSupervisorRetriesRejectedCredentials(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	adapter.failConnects(fmt.Errorf("%w: bad credentials", transport.ErrRejected))
	streams, _, _ := startSupervisor(t, adapter, stats.NewCollector())

	// rejection is retried like unreachability, it never aborts the loop
	waitForStream(t, streams)
	assert.Equal(t, int32(2), adapter.connectCalls.Load())
}

func TestSupervisorReconnectsAfterLoss(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	st := stats.NewCollector()
	streams, _, _ := startSupervisor(t, adapter, st)

	waitForStream(t, streams)
	adapter.dropSession(fmt.Errorf("broker went away"))

	second := waitForStream(t, streams)
	assert.NotNil(t, second)
	assert.Equal(t, int32(2), adapter.subscribeCalls.Load())
	assert.Equal(t, uint64(1), atomic.LoadUint64(&st.Reconnects))
}

func TestSupervisorShutdownWhileConnected(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	streams, cancel, done := startSupervisor(t, adapter, stats.NewCollector())

	waitForStream(t, streams)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never drained")
	}
	assert.True(t, adapter.closed.Load())
	assert.False(t, adapter.Connected())
}

func TestSupervisorShutdownDuringRetries(t *testing.T) {
	adapter := newMockAdapter("mqtt")
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = fmt.Errorf("%w: connection refused", transport.ErrUnreachable)
	}
	adapter.failConnects(errs...)

	_, cancel, done := startSupervisor(t, adapter, stats.NewCollector())

	require.Eventually(t, func() bool {
		return adapter.connectCalls.Load() >= 2
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never stopped")
	}
}
