package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	core "github.com/arashpm/reporter/internal/agent/core"
	"github.com/arashpm/reporter/config"
)

// TaskStore is the persistence contract shared by the Postgres and Redis
// backends. It is a superset of what the pipeline executor needs.
type TaskStore interface {
	CreateTask(ctx context.Context, id, title, prompt string) error
	UpdateTask(ctx context.Context, id, status string, result *core.TaskResult) error
	GetTask(ctx context.Context, id string) (Task, bool, error)
	ListCompleted(ctx context.Context) ([]TaskSummary, error)
}

// NewStorage picks a task store backend: Postgres when configured,
// otherwise Redis.
func NewStorage(ctx context.Context, cfg config.StorageConfig, rdb *goredis.Client, logger *log.Logger) (TaskStore, error) {
	if dsn, err := cfg.Postgres.DSN(); err == nil {
		st, perr := NewWithDSN(ctx, dsn)
		if perr == nil {
			logger.Printf("task store: postgres")
			return st, nil
		}
		logger.Printf("postgres unavailable, falling back to redis: %v", perr)
	}
	if rdb == nil {
		return nil, fmt.Errorf("no task store available: postgres not configured and redis client missing")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("no task store available: redis ping failed: %w", err)
	}
	logger.Printf("task store: redis")
	return NewRedisStore(rdb), nil
}

// TitleFromPrompt derives a short display title from a prompt.
func TitleFromPrompt(prompt string) string {
	collapsed := strings.Join(strings.Fields(prompt), " ")
	if collapsed == "" {
		return "Untitled Research"
	}
	if runes := []rune(collapsed); len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return collapsed
}
