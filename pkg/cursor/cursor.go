// Package cursor stores the last acknowledged post signature per channel.
package cursor

import (
	"context"
	"sync"

	"github.com/zfogg/solfeed/pkg/feed"
)

// Store holds one cursor per channel. An empty string means unset.
type Store interface {
	Get(ctx context.Context, channel feed.Channel) (string, error)
	Set(ctx context.Context, channel feed.Channel, signature string) error
	Clear(ctx context.Context, channel feed.Channel) error
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[feed.Channel]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[feed.Channel]string)}
}

func (s *MemoryStore) Get(_ context.Context, channel feed.Channel) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[channel], nil
}

func (s *MemoryStore) Set(_ context.Context, channel feed.Channel, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if signature == "" {
		delete(s.cursors, channel)
		return nil
	}
	s.cursors[channel] = signature
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, channel feed.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, channel)
	return nil
}
