package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().Server, s.Server)

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults are persisted")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestLoadBackfillsOlderFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 8123},
		"manifest": {"concurrency": 2},
		"enrichment": {"onPrimaryFailure": "bogus"}
	}`), 0o644))

	s, err := NewManager(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", s.Server.Host)
	assert.Equal(t, 8123, s.Server.Port)
	assert.Equal(t, 2, s.Manifest.Concurrency)
	assert.Equal(t, 5, s.Manifest.MaxEntries)
	assert.Equal(t, 5*time.Minute, s.Manifest.CacheTTL())
	assert.Equal(t, 24*time.Hour, s.Cache.MetadataTTL())
	assert.Equal(t, 10*time.Minute, s.Cache.NegativeTTL())
	assert.Equal(t, "leaveUnenriched", s.Enrichment.OnPrimaryFailure)
	assert.Equal(t, 50, s.Enrichment.CinemetaBatchSize)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("TMDB_BEARER_TOKEN", "env-bearer")
	t.Setenv("FANART_API_KEY", "env-fanart")
	t.Setenv("TRAKT_CLIENT_ID", "")

	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)
	stored := DefaultSettings()
	stored.Providers.TMDBBearerToken = "file-bearer"
	stored.Providers.TraktClientID = "file-client"
	require.NoError(t, m.Save(stored))

	s, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-bearer", s.Providers.TMDBBearerToken)
	assert.Equal(t, "env-fanart", s.Providers.FanartAPIKey)
	assert.Equal(t, "file-client", s.Providers.TraktClientID, "empty env keeps the file value")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "env-bearer", "overrides are not written back")
}

func TestSaveRequiresPath(t *testing.T) {
	assert.Error(t, NewManager("").Save(DefaultSettings()))
	_, err := NewManager("").Load()
	assert.Error(t, err)
}
