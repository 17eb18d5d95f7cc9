package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	core "github.com/arashpm/reporter/internal/agent/core"
)

// RedisStore persists task records in Redis hashes. Used when Postgres is
// not configured.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

const taskIndexKey = "tasks:index"

func taskKey(id string) string { return "task:" + id }

func (s *RedisStore) CreateTask(ctx context.Context, id, title, prompt string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id), map[string]any{
		"id":         id,
		"title":      title,
		"prompt":     prompt,
		"status":     core.TaskRunning,
		"created_at": now,
		"updated_at": now,
	})
	pipe.LPush(ctx, taskIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *RedisStore) UpdateTask(ctx context.Context, id, status string, result *core.TaskResult) error {
	fields := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
		fields["result"] = string(raw)
		fields["final_report"] = result.FinalReport
	}
	if err := s.client.HSet(ctx, taskKey(id), fields).Err(); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *RedisStore) GetTask(ctx context.Context, id string) (Task, bool, error) {
	vals, err := s.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return Task{}, false, fmt.Errorf("get task: %w", err)
	}
	if len(vals) == 0 {
		return Task{}, false, nil
	}
	return taskFromHash(vals), true, nil
}

func (s *RedisStore) ListCompleted(ctx context.Context) ([]TaskSummary, error) {
	ids, err := s.client.LRange(ctx, taskIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var out []TaskSummary
	for _, id := range ids {
		vals, err := s.client.HGetAll(ctx, taskKey(id)).Result()
		if err != nil || len(vals) == 0 || vals["status"] != core.TaskDone {
			continue
		}
		t := taskFromHash(vals)
		out = append(out, TaskSummary{
			ID:        t.ID,
			Title:     t.Title,
			Prompt:    t.Prompt,
			HasReport: t.FinalReport != "",
			CreatedAt: t.CreatedAt,
		})
	}
	return out, nil
}

func taskFromHash(vals map[string]string) Task {
	t := Task{
		ID:          vals["id"],
		Title:       vals["title"],
		Prompt:      vals["prompt"],
		Status:      vals["status"],
		FinalReport: vals["final_report"],
	}
	if raw := vals["result"]; raw != "" {
		t.Result = json.RawMessage(raw)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, vals["created_at"])
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	return t
}
