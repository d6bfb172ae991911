// Package mqtt implements the transport adapter for the MQTT broker side
// of the bridge, backed by the paho client.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/transport"
)

// keepAlive matches the broker liveness interval the relay has always used.
const keepAlive = 5 * time.Second

// Adapter implements transport.Adapter over an MQTT session.
type Adapter struct {
	cfg    config.MQTTConfig
	logger *logger.Logger
	client paho.Client

	connectTimeout time.Duration
	publishTimeout time.Duration

	connected atomic.Bool
	lost      chan error

	mu     sync.Mutex
	stream *stream
}

// stream is one inbound message stream. The channel is never closed;
// abandoning a stream closes done so blocked handler sends unwind.
type stream struct {
	ch   chan transport.Message
	done chan struct{}
	once sync.Once
}

func (s *stream) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewAdapter creates an MQTT adapter from configuration. The session is
// not established until Connect.
func NewAdapter(cfg config.MQTTConfig, log *logger.Logger) (*Adapter, error) {
	connectTimeout, err := time.ParseDuration(cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid connect timeout: %w", err)
	}
	publishTimeout, err := time.ParseDuration(cfg.PublishTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid publish timeout: %w", err)
	}

	a := &Adapter{
		cfg:            cfg,
		logger:         log,
		connectTimeout: connectTimeout,
		publishTimeout: publishTimeout,
		lost:           make(chan error, 1),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "mqtt-zenoh-bridge-" + uuid.NewString()[:8]
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(false). // reconnection belongs to the supervisor
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		a.handleConnectionLost(err)
	})

	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	a.client = paho.NewClient(opts)
	return a, nil
}

// NewAdapterWithClient creates an adapter around a provided client (for testing)
func NewAdapterWithClient(cfg config.MQTTConfig, log *logger.Logger, client paho.Client) *Adapter {
	a := &Adapter{
		cfg:            cfg,
		logger:         log,
		client:         client,
		connectTimeout: 5 * time.Second,
		publishTimeout: 5 * time.Second,
		lost:           make(chan error, 1),
	}
	a.connected.Store(true)
	return a
}

// Name implements transport.Adapter
func (a *Adapter) Name() string {
	return "mqtt"
}

// Connect implements transport.Adapter
func (a *Adapter) Connect(ctx context.Context) error {
	token := a.client.Connect()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.connectTimeout):
		return fmt.Errorf("%w: connect timed out after %v", transport.ErrUnreachable, a.connectTimeout)
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return classifyConnectError(err)
	}

	a.connected.Store(true)
	a.logger.Info("mqtt client connected", "broker", a.cfg.Broker)
	return nil
}

// SubscribeAll implements transport.Adapter. Each call replaces the
// previous inbound stream; nothing received before the call is replayed.
func (a *Adapter) SubscribeAll(ctx context.Context) (<-chan transport.Message, error) {
	if !a.connected.Load() {
		return nil, transport.ErrNotConnected
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream != nil {
		a.stream.stop()
	}
	st := &stream{
		ch:   make(chan transport.Message),
		done: make(chan struct{}),
	}
	a.stream = st

	handler := func(_ paho.Client, m paho.Message) {
		msg := transport.Message{
			Name:      m.Topic(),
			Payload:   m.Payload(),
			QoS:       m.Qos(),
			Retain:    m.Retained(),
			Timestamp: time.Now(),
		}
		// Blocking here throttles the paho receive path, which is the
		// backpressure the relay relies on when its queue is full.
		select {
		case st.ch <- msg:
		case <-st.done:
		}
	}

	for _, filter := range a.cfg.Subscriptions {
		token := a.client.Subscribe(filter, a.cfg.DefaultQoS, handler)
		if !token.WaitTimeout(a.connectTimeout) {
			return nil, fmt.Errorf("%w: subscribe to %q timed out", transport.ErrNotConnected, filter)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %q: %w", filter, err)
		}
		a.logger.Debug("subscribed to topic", "filter", filter, "qos", a.cfg.DefaultQoS)
	}

	a.logger.Info("mqtt subscriptions established", "count", len(a.cfg.Subscriptions))
	return st.ch, nil
}

// Publish implements transport.Adapter
func (a *Adapter) Publish(ctx context.Context, msg transport.Message) error {
	if !a.connected.Load() {
		return transport.ErrNotConnected
	}
	if strings.ContainsAny(msg.Name, "+#") {
		return fmt.Errorf("%w: topic %q contains wildcard characters", transport.ErrPublishRejected, msg.Name)
	}

	token := a.client.Publish(msg.Name, msg.QoS, msg.Retain, msg.Payload)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.publishTimeout):
		return fmt.Errorf("%w: publish timed out after %v", transport.ErrNotConnected, a.publishTimeout)
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrNotConnected, err)
	}
	return nil
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
	if a.stream != nil {
		a.stream.stop()
		a.stream = nil
	}
	a.mu.Unlock()

	a.connected.Store(false)
	a.client.Disconnect(250)
	a.logger.Info("mqtt client disconnected")
	return nil
}

func (a *Adapter) handleConnectionLost(err error) {
	a.logger.Error("mqtt connection lost", "error", err)
	a.connected.Store(false)

	a.mu.Lock()
	if a.stream != nil {
		a.stream.stop()
		a.stream = nil
	}
	a.mu.Unlock()

	select {
	case a.lost <- err:
	default:
	}
}

// classifyConnectError maps a paho connect failure onto the transport
// error taxonomy: CONNACK refusals are rejections, everything else is the
// endpoint being unreachable.
func classifyConnectError(err error) error {
	rejections := []error{
		packets.ErrorRefusedBadProtocolVersion,
		packets.ErrorRefusedIDRejected,
		packets.ErrorRefusedBadUsernameOrPassword,
		packets.ErrorRefusedNotAuthorised,
	}
	for _, rej := range rejections {
		if errors.Is(err, rej) {
			return fmt.Errorf("%w: %v", transport.ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: %v", transport.ErrUnreachable, err)
}

// newTLSConfig creates a new TLS configuration
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
