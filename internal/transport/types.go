// Package transport defines the uniform adapter surface the relay engine
// drives: an inbound message stream plus an outbound publish sink per
// transport. Adapters are dumb pipes; mapping and filtering happen in the
// relay engine.
package transport

import (
	"context"
	"time"
)

// Message is one relayed unit: payload bytes plus the source name and the
// best-effort delivery metadata that survives translation between the two
// transports. Messages are immutable once created.
type Message struct {
	// Name is the MQTT topic or Zenoh key expression, depending on which
	// adapter produced or consumes the message.
	Name      string
	Payload   []byte
	QoS       byte
	Retain    bool
	Timestamp time.Time
}

// Adapter wraps one transport endpoint.
type Adapter interface {
	// Name identifies the transport for logs and metrics.
	Name() string

	// Connect establishes the session. Errors wrap ErrUnreachable or
	// ErrRejected; either way the attempt is over and the caller decides
	// when to retry.
	Connect(ctx context.Context) error

	// SubscribeAll subscribes to every configured filter or scope and
	// returns a fresh inbound stream. Calling it again replaces the
	// previous stream with no replay of prior messages.
	SubscribeAll(ctx context.Context) (<-chan Message, error)

	// Publish sends one message. Errors wrap ErrNotConnected or
	// ErrPublishRejected.
	Publish(ctx context.Context, msg Message) error

	// Connected reports the current session state.
	Connected() bool

	// Lost yields a value when an established session drops.
	Lost() <-chan error

	// Close tears the session down for good.
	Close(ctx context.Context) error
}
