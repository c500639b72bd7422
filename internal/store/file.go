package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON file per record under dataDir/<collection>/.
type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

func (s *FileStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	if key != "" {
		content, err := os.ReadFile(s.recordPath(collection, key))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("get %s: read file: %w", path, err)
		}
		return content, nil
	}

	entries, err := os.ReadDir(s.collectionDir(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: read dir: %w", path, err)
	}

	records := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(s.collectionDir(collection), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("get %s: read %s: %w", path, entry.Name(), err)
		}
		if !json.Valid(content) {
			log.Warn().Str("path", path).Str("file", entry.Name()).Msg("store: skipping record with invalid json")
			continue
		}
		records[strings.TrimSuffix(entry.Name(), ".json")] = content
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

func (s *FileStore) Set(_ context.Context, path string, value any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("set %s: marshal json: %w", path, err)
	}
	if err := s.write(collection, key, payload); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Update(_ context.Context, path string, patch map[string]any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	current, err := os.ReadFile(s.recordPath(collection, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("update %s: read file: %w", path, err)
	}

	merged, err := mergePatch(current, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := s.write(collection, key, merged); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Push(_ context.Context, path string) (string, error) {
	if _, _, err := splitPath(path); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return NewPushID(), nil
}

func (s *FileStore) Remove(_ context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if key == "" {
		if err := os.RemoveAll(s.collectionDir(collection)); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}

	if err := os.Remove(s.recordPath(collection, key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove %s: remove file: %w", path, err)
	}
	return nil
}

func (s *FileStore) write(collection, key string, payload []byte) error {
	if err := os.MkdirAll(s.collectionDir(collection), 0o755); err != nil {
		return fmt.Errorf("ensure collection dir: %w", err)
	}

	path := s.recordPath(collection, key)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) collectionDir(collection string) string {
	return filepath.Join(s.dataDir, collection)
}

func (s *FileStore) recordPath(collection, key string) string {
	return filepath.Join(s.collectionDir(collection), key+".json")
}
