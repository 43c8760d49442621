package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerate(t *testing.T) {
	require := require.New(t)
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadOrGenerate(cfgFile)
	require.NoError(err)
	require.Equal("pgsql", cfg.Database.Type)
	require.Equal(5*time.Minute, cfg.Tracking.SnapshotTTL.Duration)
	require.Contains(cfg.Tracking.Entities, "lead")

	// Generated file round-trips.
	reloaded, err := NewFromFile(cfgFile)
	require.NoError(err)
	require.Equal(cfg, reloaded)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "unsupported database type",
			contents: "database:\n  type: oracle\n",
		},
		{
			name:     "non-positive snapshot ttl",
			contents: "database:\n  type: sqlite\n  name: test.db\ntracking:\n  snapshotTTL: 0s\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			cfgFile := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(os.WriteFile(cfgFile, []byte(test.contents), 0600))

			_, err := NewFromFile(cfgFile)
			require.Error(err)
		})
	}
}

func TestDurationsParseFromStrings(t *testing.T) {
	require := require.New(t)
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	contents := "database:\n  type: sqlite\n  name: test.db\ntracking:\n  snapshotTTL: 90s\n  retentionWindow: 720h\n"
	require.NoError(os.WriteFile(cfgFile, []byte(contents), 0600))

	cfg, err := NewFromFile(cfgFile)
	require.NoError(err)
	require.Equal(90*time.Second, cfg.Tracking.SnapshotTTL.Duration)
	require.Equal(720*time.Hour, cfg.Tracking.RetentionWindow.Duration)
}
