// Package store is the boundary to the hosted key-value store holding the
// account collection. Paths are either a collection ("vpsAccounts") or a
// record inside one ("vpsAccounts/<key>").
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnavailable wraps every network or remote failure reported by a backend.
var ErrUnavailable = errors.New("store unavailable")

// Store exposes the get/set/update/push/remove operations of the hosted store.
//
// Get returns nil (and no error) when nothing exists at path. For a
// collection path it returns a JSON object keyed by record key.
// Update merges patch into the record at path; nil values delete fields.
// Push returns a fresh chronological key under path for the caller to Set.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, patch map[string]any) error
	Push(ctx context.Context, path string) (string, error)
	Remove(ctx context.Context, path string) error
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidKey reports whether key can address a record.
func ValidKey(key string) bool {
	return segmentPattern.MatchString(key)
}

// splitPath parses "collection" or "collection/key".
func splitPath(path string) (collection, key string, err error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(path), "/"), "/")
	if len(parts) == 0 || len(parts) > 2 {
		return "", "", fmt.Errorf("invalid path %q", path)
	}
	for _, part := range parts {
		if !segmentPattern.MatchString(part) {
			return "", "", fmt.Errorf("invalid path %q", path)
		}
	}

	collection = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return collection, key, nil
}

func recordPath(path string) (collection, key string, err error) {
	collection, key, err = splitPath(path)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("path %q does not address a record", path)
	}
	return collection, key, nil
}

// mergePatch applies patch to the JSON object in body and returns the result.
func mergePatch(body json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
	}

	for name, value := range patch {
		if value == nil {
			delete(fields, name)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		fields[name] = encoded
	}

	return json.Marshal(fields)
}
