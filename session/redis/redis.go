package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arashpm/reporter/session/session_models"
)

type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(sessionID string) string { return "session:" + sessionID }

func (store *Store) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error {
	msg := session_models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal session message: %w", err)
	}
	if err := store.client.RPush(ctx, key(sessionID), raw).Err(); err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	if store.ttl > 0 {
		store.client.Expire(ctx, key(sessionID), store.ttl)
	}
	return nil
}

func (store *Store) Messages(ctx context.Context, sessionID string) ([]session_models.Message, error) {
	raws, err := store.client.LRange(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session messages: %w", err)
	}
	out := make([]session_models.Message, 0, len(raws))
	for _, raw := range raws {
		var msg session_models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
