package transport

import "errors"

// Sentinel errors for adapter operations. Check with errors.Is().
var (
	// ErrUnreachable is returned when the endpoint cannot be reached at
	// the network level (DNS, dial, timeout).
	ErrUnreachable = errors.New("transport: endpoint unreachable")

	// ErrRejected is returned when the endpoint refuses the session
	// (authentication or protocol handshake failure).
	ErrRejected = errors.New("transport: connection rejected")

	// ErrNotConnected is returned by Publish when the session has dropped.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrPublishRejected is returned by Publish when the transport refuses
	// the message itself (invalid name or payload). Retrying would repeat
	// the same rejection.
	ErrPublishRejected = errors.New("transport: publish rejected")
)
