package repositories

import (
	"context"
	"sync"

	"alfredoptarigan/resume-screener/internal/models"
)

// memoryStore keeps the encoded blob per user so callers never share
// decoded state. Each user has its own lock.
type memoryStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	locks map[string]*sync.Mutex
}

func NewMemoryStore() UserDataStore {
	return &memoryStore{
		data:  make(map[string][]byte),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *memoryStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *memoryStore) Find(ctx context.Context, userID string) (*models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	raw, ok := s.data[userID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return models.DecodeUserRecord(raw)
}

func (s *memoryStore) Mutate(ctx context.Context, userID string, fn func(*models.UserRecord) error) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	raw := s.data[userID]
	s.mu.Unlock()

	rec, err := models.DecodeUserRecord(raw)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	data, err := rec.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[userID] = data
	s.mu.Unlock()
	return nil
}
