// Package memory provides the default in-process SubscriptionStore.
package memory

import (
	"context"
	"sort"
	"sync"
)

// Store keeps topic membership in a map. It is the store used when the host
// does not configure durable storage.
type Store struct {
	mu     sync.Mutex
	topics map[string]struct{}
}

func NewStore() *Store {
	return &Store{topics: make(map[string]struct{})}
}

func (s *Store) Add(_ context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = struct{}{}
	return nil
}

func (s *Store) Remove(_ context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = make(map[string]struct{})
	return nil
}
