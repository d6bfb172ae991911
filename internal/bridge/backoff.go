package bridge

import (
	"fmt"
	"time"

	"mqtt-zenoh-bridge/config"
)

// backoff produces exponentially increasing reconnect delays, capped at a
// maximum. It is not safe for concurrent use; each supervisor owns its own.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	next       time.Duration
}

func newBackoff(cfg config.BackoffConfig) (*backoff, error) {
	initial, err := time.ParseDuration(cfg.InitialDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid initial delay: %w", err)
	}
	max, err := time.ParseDuration(cfg.MaxDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid max delay: %w", err)
	}
	if initial <= 0 || max < initial {
		return nil, fmt.Errorf("backoff delays must satisfy 0 < initial <= max")
	}
	if cfg.Multiplier < 1 {
		return nil, fmt.Errorf("backoff multiplier must be >= 1")
	}

	return &backoff{
		initial:    initial,
		max:        max,
		multiplier: cfg.Multiplier,
		next:       initial,
	}, nil
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *backoff) Next() time.Duration {
	d := b.next
	b.next = time.Duration(float64(b.next) * b.multiplier)
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset restores the initial delay, called after a successful connect.
func (b *backoff) Reset() {
	b.next = b.initial
}
