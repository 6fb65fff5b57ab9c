package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists conversations as JSON files under <baseDir>/<id>.json.
// Writes are atomic (temp file + rename) so a crash mid-save never leaves
// a truncated record behind.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a conversation store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("store base directory is empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, sanitizeID(id)+".json")
}

func sanitizeID(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(id)
}

// Save writes the conversation record for the given ID.
func (s *Store) Save(id string, conv *Conversation) error {
	if id == "" {
		return fmt.Errorf("conversation ID is empty")
	}
	if conv == nil {
		return fmt.Errorf("conversation is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	path := s.path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write conversation file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename conversation file: %w", err)
	}
	return nil
}

// Load reads the conversation record for the given ID. A missing record
// returns (nil, nil): no prior session.
func (s *Store) Load(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversation file: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// List returns the IDs of all persisted conversations, most recently
// written first.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	type record struct {
		id  string
		mod time.Time
	}
	var records []record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, record{strings.TrimSuffix(name, ".json"), info.ModTime()})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].mod.Equal(records[j].mod) {
			return records[i].id < records[j].id
		}
		return records[i].mod.After(records[j].mod)
	})

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.id
	}
	return ids, nil
}
