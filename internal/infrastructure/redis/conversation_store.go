package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Ntarekp/teamSynth/internal/domain/conversation"
)

const (
	keyPrefix  = "teamsynth:session:"
	sessionTTL = 7 * 24 * time.Hour
)

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// ConversationStore keeps each session as a capped Redis list of JSON turns.
type ConversationStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewConversationStore creates a store on rdb.
func NewConversationStore(rdb *goredis.Client) *ConversationStore {
	return &ConversationStore{rdb: rdb, ttl: sessionTTL}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Append pushes turns and trims the list to the newest limit entries in one
// MULTI/EXEC transaction.
func (s *ConversationStore) Append(ctx context.Context, sessionID string, limit int, turns ...conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, b)
	}

	key := sessionKey(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if limit > 0 {
			pipe.LTrim(ctx, key, int64(-limit), -1)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return nil
}

// Window returns up to limit of the newest turns, oldest first.
func (s *ConversationStore) Window(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.LRange(ctx, sessionKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	turns := make([]conversation.Turn, 0, len(raw))
	for _, r := range raw {
		var t conversation.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear removes a session.
func (s *ConversationStore) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}
