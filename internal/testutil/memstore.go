package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/johndosdos/chatsync/internal/database"
)

// MemStore is an in-memory stand-in for database.Queries.
type MemStore struct {
	mu   sync.Mutex
	next int64
	rows map[int64]database.Message
	fail error
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[int64]database.Message)}
}

// Fail makes ListMessages and CreateMessage return err. Pass nil to recover.
func (s *MemStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemStore) ListMessages(_ context.Context, limit int32) ([]database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}

	out := make([]database.Message, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) GetMessage(_ context.Context, id int64) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return r, database.ErrNotFound
	}
	return r, nil
}

func (s *MemStore) CreateMessage(_ context.Context, arg database.CreateMessageParams) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return database.Message{}, s.fail
	}
	s.next++
	r := database.Message{
		ID:        s.next,
		UserID:    arg.UserID,
		Username:  arg.Username,
		Text:      arg.Text,
		CreatedAt: arg.CreatedAt,
		UpdatedAt: arg.CreatedAt,
	}
	s.rows[r.ID] = r
	return r, nil
}

func (s *MemStore) UpdateMessageText(_ context.Context, id int64, text string) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return r, database.ErrNotFound
	}
	r.Text = text
	s.rows[id] = r
	return r, nil
}

func (s *MemStore) DeleteMessage(_ context.Context, id int64) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return r, database.ErrNotFound
	}
	delete(s.rows, id)
	return r, nil
}
