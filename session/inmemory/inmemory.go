package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arashpm/reporter/session/session_models"
)

type Store struct {
	sessions map[string][]session_models.Message
	mu       sync.RWMutex
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[string][]session_models.Message)}
}

func (store *Store) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[sessionID] = append(store.sessions[sessionID], session_models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (store *Store) Messages(ctx context.Context, sessionID string) ([]session_models.Message, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	msgs := store.sessions[sessionID]
	out := make([]session_models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
