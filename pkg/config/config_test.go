package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriftWarn, cfg.Sync.DriftPolicy)
	assert.Equal(t, 0, cfg.Sync.Workers)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.Backoff)
	assert.Equal(t, "#", cfg.Sync.CommentPrefixes[".yaml"])
	assert.Equal(t, "//", cfg.Sync.CommentPrefixes[".go"])
	assert.Equal(t, "#", cfg.Sync.CommentPrefixes["Dockerfile"])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `sync:
  drift_policy: conflict
  workers: 4
  comment_prefixes:
    ".star": "#"
fetch:
  retries: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tplsync.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DriftConflict, cfg.Sync.DriftPolicy)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 1, cfg.Fetch.Retries)
	// custom prefixes extend the defaults
	assert.Equal(t, "#", cfg.Sync.CommentPrefixes[".star"])
	assert.Equal(t, "//", cfg.Sync.CommentPrefixes[".go"])
}

func TestLoadRejectsBadDriftPolicy(t *testing.T) {
	dir := t.TempDir()
	content := "sync:\n  drift_policy: yolo\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tplsync.yaml"), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drift_policy")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Sync.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Fetch.Retries = -2
	assert.Error(t, cfg.Validate())
}
