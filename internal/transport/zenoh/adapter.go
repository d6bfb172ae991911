// Package zenoh implements the transport adapter for the Zenoh side of the
// bridge, speaking to a Zenoh router through its REST plugin: HTTP PUT to
// publish a sample, a server-sent-event stream per key expression to
// subscribe.
package zenoh

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/transport"
)

// adminKeyExpr is the router admin-space key used as a liveness probe.
const adminKeyExpr = "@/router/local"

// Adapter implements transport.Adapter over the Zenoh REST plugin.
type Adapter struct {
	cfg    config.ZenohConfig
	logger *logger.Logger
	httpc  *http.Client
	base   string

	connectTimeout time.Duration

	connected atomic.Bool
	lost      chan error

	mu  sync.Mutex
	sub *subscription
}

// subscription groups the SSE reader goroutines feeding one inbound stream.
type subscription struct {
	ch     chan transport.Message
	cancel context.CancelFunc
}

// NewAdapter creates a Zenoh adapter from configuration. The router is not
// contacted until Connect.
func NewAdapter(cfg config.ZenohConfig, log *logger.Logger) (*Adapter, error) {
	connectTimeout, err := time.ParseDuration(cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid connect timeout: %w", err)
	}

	return &Adapter{
		cfg:            cfg,
		logger:         log,
		httpc:          &http.Client{},
		base:           strings.TrimRight(cfg.RouterURL, "/"),
		connectTimeout: connectTimeout,
		lost:           make(chan error, 1),
	}, nil
}

// Name implements transport.Adapter
func (a *Adapter) Name() string {
	return "zenoh"
}

// Connect implements transport.Adapter. The REST plugin is stateless, so
// connecting means probing the router admin space for liveness.
func (a *Adapter) Connect(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, a.connectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, a.keyURL(adminKeyExpr), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrRejected, err)
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: router returned %d", transport.ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: router returned %d", transport.ErrUnreachable, resp.StatusCode)
	}

	a.connected.Store(true)
	a.logger.Info("zenoh router reachable", "router", a.cfg.RouterURL)
	return nil
}

// SubscribeAll implements transport.Adapter. One SSE stream is opened per
// configured scope; all feed a single inbound channel. A failure on any
// stream reports the session as lost so the supervisor reconnects.
func (a *Adapter) SubscribeAll(ctx context.Context) (<-chan transport.Message, error) {
	if !a.connected.Load() {
		return nil, transport.ErrNotConnected
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sub != nil {
		a.sub.cancel()
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		ch:     make(chan transport.Message),
		cancel: cancel,
	}
	a.sub = sub

	for _, scope := range a.cfg.Scopes {
		go a.runScope(subCtx, scope, sub.ch)
	}

	a.logger.Info("zenoh subscriptions established", "scopes", len(a.cfg.Scopes))
	return sub.ch, nil
}

// runScope holds one SSE subscription open and forwards its samples.
func (a *Adapter) runScope(ctx context.Context, scope config.ZenohScope, out chan<- transport.Message) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.keyURL(scope.KeyExpr), nil)
	if err != nil {
		a.reportLost(fmt.Errorf("subscribe to %q: %w", scope.KeyExpr, err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpc.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			a.reportLost(fmt.Errorf("subscribe to %q: %w", scope.KeyExpr, err))
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.reportLost(fmt.Errorf("subscribe to %q: router returned %d", scope.KeyExpr, resp.StatusCode))
		return
	}

	a.logger.Debug("zenoh scope subscribed", "keyExpr", scope.KeyExpr, "retained", scope.Retained)

	err = readEvents(resp.Body, func(ev event) {
		// deletions have no payload to relay
		if ev.name != "" && ev.name != "PUT" {
			return
		}
		sample, err := decodeSample(ev.data)
		if err != nil {
			a.logger.Error("failed to decode zenoh sample",
				"keyExpr", scope.KeyExpr,
				"error", err)
			return
		}
		msg := transport.Message{
			Name:      sample.Key,
			Payload:   sample.payload(),
			QoS:       0,
			Retain:    scope.Retained,
			Timestamp: time.Now(),
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		a.reportLost(fmt.Errorf("subscription to %q ended: %w", scope.KeyExpr, err))
	}
}

// Publish implements transport.Adapter
func (a *Adapter) Publish(ctx context.Context, msg transport.Message) error {
	if !a.connected.Load() {
		return transport.ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.keyURL(msg.Name), bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPublishRejected, err)
	}
	req.Header.Set("Content-Type", a.cfg.Encoding)

	resp, err := a.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", transport.ErrNotConnected, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: router returned %d for %q", transport.ErrPublishRejected, resp.StatusCode, msg.Name)
	default:
		return fmt.Errorf("%w: router returned %d", transport.ErrNotConnected, resp.StatusCode)
	}
}

// Connected implements transport.Adapter
func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// Lost implements transport.Adapter
func (a *Adapter) Lost() <-chan error {
	return a.lost
}

// Close implements transport.Adapter
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.sub != nil {
		a.sub.cancel()
		a.sub = nil
	}
	a.mu.Unlock()

	a.connected.Store(false)
	a.logger.Info("zenoh session closed")
	return nil
}

func (a *Adapter) reportLost(err error) {
	a.logger.Error("zenoh session lost", "error", err)
	a.connected.Store(false)
	select {
	case a.lost <- err:
	default:
	}
}

// keyURL maps a key expression onto the REST plugin's path space. Key
// expressions contain slashes and wildcard stars, both legal in a URL path.
func (a *Adapter) keyURL(keyExpr string) string {
	return a.base + "/" + keyExpr
}
