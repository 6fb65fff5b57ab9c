package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parleyhq/parley/logging"
)

// FSArtifactStore is a filesystem-backed ArtifactStore: artifacts live
// under <baseDir>/<contextID>/<relativePath>.
type FSArtifactStore struct {
	baseDir string
}

// NewFSArtifactStore creates an artifact store rooted at baseDir.
func NewFSArtifactStore(baseDir string) *FSArtifactStore {
	return &FSArtifactStore{baseDir: baseDir}
}

// SaveArtifact writes an artifact. Callers treat this as fire-and-forget;
// the error is returned for logging only.
func (s *FSArtifactStore) SaveArtifact(contextID, stepID, relativePath, content string) error {
	path := filepath.Join(s.baseDir, sanitizeID(contextID), relativePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write artifact %s/%s: %w", stepID, relativePath, err)
	}
	return nil
}

// ReadArtifact returns the artifact content and whether a non-empty
// artifact exists at the given path.
func (s *FSArtifactStore) ReadArtifact(contextID, relativePath string) (string, bool) {
	path := filepath.Join(s.baseDir, sanitizeID(contextID), relativePath)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warnf("artifact store: read %s: %v", path, err)
		}
		return "", false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", false
	}
	return string(data), true
}
