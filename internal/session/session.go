// Package session keeps short-lived conversation history for Hub chats.
package session

import (
	"context"
	"time"
)

// Turn is one remembered exchange half: "user" or "assistant".
type Turn struct {
	Role    string
	Content string
}

// Store remembers recent turns per session id. Sessions idle past the
// configured timeout are forgotten.
type Store interface {
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// Options tune retention. Timeout bounds idle age, MaxTurns bounds length.
type Options struct {
	Timeout  time.Duration
	MaxTurns int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Minute
	}
	if o.MaxTurns < 1 {
		o.MaxTurns = 20
	}
	return o
}

// Tail returns the newest n turns.
func Tail(turns []Turn, n int) []Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
