package session

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mutex      sync.RWMutex
	credential string
	present    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, credential string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = credential
	s.present = credential != ""
	return nil
}

func (s *MemoryStore) Read(_ context.Context) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.credential, s.present, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = ""
	s.present = false
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
