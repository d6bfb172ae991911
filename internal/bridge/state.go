package bridge

// ConnectionState tracks where a supervised transport session is in its
// lifecycle.
type ConnectionState int

const (
	// StateDisconnected means no session exists and a reconnect is pending.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateConnected means the session is live and streaming.
	StateConnected
	// StateDraining means shutdown has begun and the session is closing.
	StateDraining
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}
