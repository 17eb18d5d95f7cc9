package session

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arashpm/reporter/session/inmemory"
	sessredis "github.com/arashpm/reporter/session/redis"
	"github.com/arashpm/reporter/session/session_models"
)

// Store interface for conversation session management
type Store interface {
	AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error
	Messages(ctx context.Context, sessionID string) ([]session_models.Message, error)
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewStore builds a session store. The redis backend requires a client.
func NewStore(storeType StoreType, client *goredis.Client, ttl time.Duration) Store {
	switch storeType {
	case InMemoryStore:
		return inmemory.NewInMemorySessionStore()
	case RedisStore:
		if client == nil {
			panic("redis session store requires a redis client")
		}
		return sessredis.NewRedisSessionStore(client, ttl)
	default:
		panic(fmt.Sprintf("unsupported store type: %s", storeType))
	}
}
