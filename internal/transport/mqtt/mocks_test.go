package mqtt

import (
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MockToken implements paho.Token for testing. It is already resolved when
// created so callers waiting on Done() proceed immediately.
type MockToken struct {
	err  error
	done chan struct{}
}

func NewMockToken(err error) *MockToken {
	t := &MockToken{
		err:  err,
		done: make(chan struct{}),
	}
	close(t.done)
	return t
}

func (t *MockToken) Wait() bool                       { return true }
func (t *MockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *MockToken) Error() error                     { return t.err }
func (t *MockToken) Done() <-chan struct{}            { return t.done }

// MockClient implements paho.Client for testing
type MockClient struct {
	connected   atomic.Bool
	publishErr  error
	connectErr  error
	subscribeFn func(topic string, qos byte, callback paho.MessageHandler)

	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

func NewMockClient() *MockClient {
	c := &MockClient{}
	c.connected.Store(true)
	return c
}

func (m *MockClient) Published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockClient) Connect() paho.Token {
	return NewMockToken(m.connectErr)
}

func (m *MockClient) Disconnect(quiesce uint) {
	m.connected.Store(false)
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if m.publishErr == nil {
		m.mu.Lock()
		m.published = append(m.published, publishedMessage{
			topic:   topic,
			qos:     qos,
			retain:  retained,
			payload: payload.([]byte),
		})
		m.mu.Unlock()
	}
	return NewMockToken(m.publishErr)
}

func (m *MockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	if m.subscribeFn != nil {
		m.subscribeFn(topic, qos, callback)
	}
	return NewMockToken(nil)
}

func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	return NewMockToken(nil)
}

func (m *MockClient) Unsubscribe(topics ...string) paho.Token { return NewMockToken(nil) }
func (m *MockClient) AddRoute(topic string, callback paho.MessageHandler) {
}
func (m *MockClient) IsConnected() bool                       { return m.connected.Load() }
func (m *MockClient) IsConnectionOpen() bool                  { return m.connected.Load() }
func (m *MockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

// MockMessage implements paho.Message for testing
type MockMessage struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return m.qos }
func (m *MockMessage) Retained() bool    { return m.retain }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}
