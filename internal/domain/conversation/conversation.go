package conversation

import (
	"context"
	"time"
)

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Turn is one message in a session.
type Turn struct {
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(sender Sender, content string) Turn {
	return Turn{Sender: sender, Content: content, Timestamp: time.Now().UTC()}
}

// Store holds bounded per-session turn windows. Append must keep at most
// limit turns for the session, evicting the oldest first.
type Store interface {
	Append(ctx context.Context, sessionID string, limit int, turns ...Turn) error
	Window(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
