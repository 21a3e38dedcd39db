package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the server configuration persisted to disk. Per-user
// configuration travels in the add-on URL and is never stored here.
type Settings struct {
	Server     ServerSettings     `json:"server"`
	Providers  ProviderSettings   `json:"providers"`
	Cache      CacheSettings      `json:"cache"`
	Manifest   ManifestSettings   `json:"manifest"`
	Enrichment EnrichmentSettings `json:"enrichment"`
	RateLimit  RateLimitSettings  `json:"rateLimit"`
	Log        LogConfig          `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ProviderSettings holds the server-side credentials. Users may still bring
// their own TMDB bearer token through their add-on config.
type ProviderSettings struct {
	TMDBBearerToken   string `json:"tmdbBearerToken"`
	FanartAPIKey      string `json:"fanartApiKey"`
	TraktClientID     string `json:"traktClientId"`
	TraktClientSecret string `json:"traktClientSecret"`
	TraktRedirectURI  string `json:"traktRedirectUri"`
}

type CacheSettings struct {
	MetadataTTLHours   int `json:"metadataTtlHours"`
	IDTTLHours         int `json:"idTtlHours"`
	NegativeTTLMinutes int `json:"negativeTtlMinutes"`
	MaxEntries         int `json:"maxEntries"`
}

type ManifestSettings struct {
	CacheTTLSeconds int `json:"cacheTtlSeconds"`
	MaxEntries      int `json:"maxEntries"`
	Concurrency     int `json:"concurrency"`
}

type EnrichmentSettings struct {
	BatchSize         int `json:"batchSize"`
	CinemetaBatchSize int `json:"cinemetaBatchSize"`
	// OnPrimaryFailure is applied to user configs that do not choose.
	OnPrimaryFailure string `json:"onPrimaryFailure"`
}

type RateLimitSettings struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
	UpstreamPerSecond float64 `json:"upstreamPerSecond"`
}

// LogConfig describes log file rotation.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func (c CacheSettings) MetadataTTL() time.Duration {
	return time.Duration(c.MetadataTTLHours) * time.Hour
}

func (c CacheSettings) IDTTL() time.Duration { return time.Duration(c.IDTTLHours) * time.Hour }

func (c CacheSettings) NegativeTTL() time.Duration {
	return time.Duration(c.NegativeTTLMinutes) * time.Minute
}

func (m ManifestSettings) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

func DefaultSettings() Settings {
	return Settings{
		Server:     ServerSettings{Host: "0.0.0.0", Port: 7000},
		Providers:  ProviderSettings{},
		Cache:      CacheSettings{MetadataTTLHours: 24, IDTTLHours: 24 * 7, NegativeTTLMinutes: 10, MaxEntries: 10000},
		Manifest:   ManifestSettings{CacheTTLSeconds: 300, MaxEntries: 5, Concurrency: 5},
		Enrichment: EnrichmentSettings{BatchSize: 20, CinemetaBatchSize: 50, OnPrimaryFailure: "leaveUnenriched"},
		RateLimit:  RateLimitSettings{RequestsPerSecond: 10, Burst: 30, UpstreamPerSecond: 20},
		Log: LogConfig{
			File:       "cache/logs/aiolists.log",
			Level:      "info",
			MaxSize:    50, // MB per file
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file, creating it with defaults if missing. Zero
// values left by older files are backfilled and secrets are overridden
// from the environment; neither is written back.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		applyEnv(&defaults)
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	backfill(&s)
	applyEnv(&s)
	return s, nil
}

func backfill(s *Settings) {
	d := DefaultSettings()

	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Server.Port <= 0 {
		s.Server.Port = d.Server.Port
	}

	if s.Cache.MetadataTTLHours <= 0 {
		s.Cache.MetadataTTLHours = d.Cache.MetadataTTLHours
	}
	if s.Cache.IDTTLHours <= 0 {
		s.Cache.IDTTLHours = d.Cache.IDTTLHours
	}
	if s.Cache.NegativeTTLMinutes <= 0 {
		s.Cache.NegativeTTLMinutes = d.Cache.NegativeTTLMinutes
	}
	if s.Cache.MaxEntries <= 0 {
		s.Cache.MaxEntries = d.Cache.MaxEntries
	}

	if s.Manifest.CacheTTLSeconds <= 0 {
		s.Manifest.CacheTTLSeconds = d.Manifest.CacheTTLSeconds
	}
	if s.Manifest.MaxEntries <= 0 {
		s.Manifest.MaxEntries = d.Manifest.MaxEntries
	}
	if s.Manifest.Concurrency <= 0 {
		s.Manifest.Concurrency = d.Manifest.Concurrency
	}

	if s.Enrichment.BatchSize <= 0 {
		s.Enrichment.BatchSize = d.Enrichment.BatchSize
	}
	if s.Enrichment.CinemetaBatchSize <= 0 {
		s.Enrichment.CinemetaBatchSize = d.Enrichment.CinemetaBatchSize
	}
	switch s.Enrichment.OnPrimaryFailure {
	case "leaveUnenriched", "fallback":
	default:
		s.Enrichment.OnPrimaryFailure = d.Enrichment.OnPrimaryFailure
	}

	// A zero request rate disables limiting, but only a negative one is
	// meaningless.
	if s.RateLimit.RequestsPerSecond < 0 {
		s.RateLimit.RequestsPerSecond = 0
	}
	if s.RateLimit.Burst <= 0 {
		s.RateLimit.Burst = d.RateLimit.Burst
	}
	if s.RateLimit.UpstreamPerSecond < 0 {
		s.RateLimit.UpstreamPerSecond = 0
	}

	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Log.MaxSize <= 0 {
		s.Log.MaxSize = d.Log.MaxSize
	}
}

func applyEnv(s *Settings) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&s.Providers.TMDBBearerToken, "TMDB_BEARER_TOKEN")
	override(&s.Providers.FanartAPIKey, "FANART_API_KEY")
	override(&s.Providers.TraktClientID, "TRAKT_CLIENT_ID")
	override(&s.Providers.TraktClientSecret, "TRAKT_CLIENT_SECRET")
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
