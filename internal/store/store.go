package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	core "github.com/arashpm/reporter/internal/agent/core"
)

// Store persists task records in Postgres.
type Store struct {
	DB *sql.DB
}

// Task is the durable record of one report run.
type Task struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Prompt      string          `json:"prompt"`
	Status      string          `json:"status"`
	FinalReport string          `json:"final_report,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TaskSummary is the listing shape for the history endpoints.
type TaskSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	HasReport bool      `json:"has_report"`
	CreatedAt time.Time `json:"created_at"`
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

// CreateTask inserts a new running task.
func (s *Store) CreateTask(ctx context.Context, id, title, prompt string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tasks (id, title, prompt, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		id, title, prompt, core.TaskRunning)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTask writes a task's status, and on done its result payload.
func (s *Store) UpdateTask(ctx context.Context, id, status string, result *core.TaskResult) error {
	var finalReport sql.NullString
	var raw []byte
	if result != nil {
		var err error
		raw, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
		finalReport = sql.NullString{String: result.FinalReport, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE tasks SET status = $2, final_report = $3, result = $4, updated_at = now() WHERE id = $1`,
		id, status, finalReport, nullBytes(raw))
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetTask looks a task up by id.
func (s *Store) GetTask(ctx context.Context, id string) (Task, bool, error) {
	var t Task
	var finalReport sql.NullString
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, prompt, status, final_report, result, created_at, updated_at
		 FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.Prompt, &t.Status, &finalReport, &raw, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("get task: %w", err)
	}
	t.FinalReport = finalReport.String
	t.Result = raw
	return t, true, nil
}

// ListCompleted returns finished tasks, newest first.
func (s *Store) ListCompleted(ctx context.Context) ([]TaskSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, prompt, final_report IS NOT NULL, created_at
		 FROM tasks WHERE status = $1 ORDER BY created_at DESC`, core.TaskDone)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []TaskSummary
	for rows.Next() {
		var t TaskSummary
		if err := rows.Scan(&t.ID, &t.Title, &t.Prompt, &t.HasReport, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
