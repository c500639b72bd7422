package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps collections in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]json.RawMessage{}}
}

func (s *MemoryStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	if key != "" {
		body, ok := records[key]
		if !ok {
			return nil, nil
		}
		return cloneRaw(body), nil
	}

	if len(records) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return payload, nil
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set %s: marshal json: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.collections[collection]
	if !ok {
		records = map[string]json.RawMessage{}
		s.collections[collection] = records
	}
	records[key] = body
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, patch map[string]any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.collections[collection]
	if !ok {
		records = map[string]json.RawMessage{}
		s.collections[collection] = records
	}

	merged, err := mergePatch(records[key], patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	records[key] = merged
	return nil
}

func (s *MemoryStore) Push(_ context.Context, path string) (string, error) {
	if _, _, err := splitPath(path); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return NewPushID(), nil
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		delete(s.collections, collection)
		return nil
	}
	delete(s.collections[collection], key)
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
