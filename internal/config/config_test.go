package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Crawler.Workers)
	require.Equal(t, 0.9, cfg.Crawler.SimilarityThreshold)
	require.Equal(t, int64(2097152), cfg.MaxFileSizeBytes())
	require.Contains(t, cfg.Crawler.AllowedDomains, "ics.uci.edu")
	require.True(t, cfg.Server.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
crawler:
  workers: 3
  seed_urls:
    - https://www.ics.uci.edu
  delay_seconds: 1.5
store:
  dir: /tmp/crawlstate
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Crawler.Workers)
	require.Equal(t, []string{"https://www.ics.uci.edu"}, cfg.Crawler.SeedURLs)
	require.InDelta(t, 1.5, cfg.DefaultDelay().Seconds(), 0.001)
	require.Equal(t, "/tmp/crawlstate", cfg.Store.Dir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Crawler.Workers = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Crawler.SimilarityThreshold = 1.2
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Store.Dir = " "
	require.Error(t, bad.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
