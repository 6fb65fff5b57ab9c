package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sonnet", cfg.Model)
	assert.Equal(t, 30, cfg.MaxTurns)
	assert.Equal(t, 90, cfg.StallAfterSeconds)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.LogFile)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := `model: opus
data_dir: /tmp/parley-test
max_turns: 5
allowed_tools:
  - Read
  - Bash
artifact_path: /tmp/decision.md
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".parley.yaml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "opus", cfg.Model)
	assert.Equal(t, "/tmp/parley-test", cfg.DataDir)
	assert.Equal(t, 5, cfg.MaxTurns)
	assert.Equal(t, []string{"Read", "Bash"}, cfg.AllowedTools)
	assert.Equal(t, "/tmp/decision.md", cfg.ArtifactPath)
	assert.Equal(t, filepath.Join("/tmp/parley-test", "conversations"), cfg.ConversationsDir())
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".parley.yaml"), []byte("model: [unclosed"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
