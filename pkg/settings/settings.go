// Package settings provides the process-wide hierarchical configuration
// consumed by the ORM core. Keys use dotted paths ("properties.primary_key").
// A connection snapshots the settings once at connect time; later changes to
// the global object never reach an already-open connection.
package settings

import (
	"strconv"
	"strings"
	"sync"
)

// Default key templates consumed by the core.
const (
	// KeyPrimaryKey names the default primary-key column.
	KeyPrimaryKey = "properties.primary_key"
	// KeyAssociationKey names the foreign-key template; "{name}" expands to
	// the association name.
	KeyAssociationKey = "properties.association_key"
)

// Settings is a thread-safe hierarchical key/value store.
type Settings struct {
	mu   sync.RWMutex
	data map[string]any
}

// Defaults returns the built-in settings tree.
func Defaults() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"primary_key":     "id",
			"association_key": "{name}_id",
		},
		"instance": map[string]any{
			"cache":          true,
			"autoSave":       false,
			"autoFetch":      false,
			"autoFetchLimit": 1,
		},
	}
}

// New creates a Settings instance populated with Defaults.
func New() *Settings {
	return &Settings{data: Defaults()}
}

// NewFrom creates a Settings instance over an existing tree. The tree is
// deep-copied; the caller keeps ownership of its map.
func NewFrom(data map[string]any) *Settings {
	return &Settings{data: deepCopyMap(data)}
}

// Get resolves a dotted key. The second result reports whether the key
// exists.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := any(s.data)
	for _, part := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetString resolves a dotted key as a string, falling back to def.
func (s *Settings) GetString(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return def
}

// GetInt resolves a dotted key as an int, falling back to def.
func (s *Settings) GetInt(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

// GetFloat resolves a dotted key as a float64, falling back to def.
func (s *Settings) GetFloat(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// GetBool resolves a dotted key as a bool, falling back to def.
func (s *Settings) GetBool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Set stores a value under a dotted key, creating intermediate maps as
// needed. Setting a key through a non-map node replaces that node.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(key, ".")
	node := s.data
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

// Snapshot returns an independent deep copy. Mutations on either side never
// reach the other.
func (s *Settings) Snapshot() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Settings{data: deepCopyMap(s.data)}
}

// Merge overlays a tree onto the current settings, map nodes merging
// recursively and scalars overwriting.
func (s *Settings) Merge(overlay map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeMaps(s.data, overlay)
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = deepCopyValue(v)
	}
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return deepCopyMap(node)
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = deepCopyValue(item)
		}
		return out
	}
	return v
}
