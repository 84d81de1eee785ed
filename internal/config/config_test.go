package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Broker.Kind)
	assert.Equal(t, "cache", cfg.Broker.Subject)
	assert.Equal(t, KindSQLite, cfg.Local().Kind)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
cache:
  enabled: false
broker:
  kind: nats
  url: nats://broker:4222
stores:
  - id: local
    name: Local
    kind: sqlite
    settings:
      path: /var/lib/streamhub/local.db
  - id: archive
    name: Archive
    kind: badger
    settings:
      path: /var/lib/streamhub/archive
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 1024, cfg.Cache.QueueSize, "default kept")
	assert.Equal(t, "cache", cfg.Broker.Subject, "default kept")
	require.Len(t, cfg.Stores, 2)
	assert.Equal(t, "/var/lib/streamhub/local.db", cfg.Local().Settings.String("path", ""))
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("cache:\n  enabeld: true\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no stores", func(c *Config) { c.Stores = nil }},
		{"no local store", func(c *Config) { c.Stores[0].ID = "other" }},
		{"duplicate ids", func(c *Config) { c.Stores = append(c.Stores, c.Stores[0]) }},
		{"colon in store id", func(c *Config) {
			c.Stores = append(c.Stores, StoreConfig{ID: "a:b", Name: "AB", Kind: KindBadger})
		}},
		{"unknown store kind", func(c *Config) { c.Stores[0].Kind = "postgres" }},
		{"mongo without uri", func(c *Config) {
			c.Stores = append(c.Stores, StoreConfig{ID: "doc", Name: "Doc", Kind: KindMongo})
		}},
		{"nats without url", func(c *Config) { c.Broker.Kind = BrokerNATS }},
		{"empty subject", func(c *Config) { c.Broker.Subject = "" }},
		{"zero queue", func(c *Config) { c.Cache.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidate_MongoWithURI(t *testing.T) {
	cfg := Default()
	cfg.Stores = append(cfg.Stores, StoreConfig{
		ID:       "doc",
		Name:     "Doc",
		Kind:     KindMongo,
		Settings: map[string]any{"uri": "mongodb://localhost:27017"},
	})
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, env(map[string]string{
		EnvCacheEnabled:  "false",
		EnvBrokerURL:     "nats://10.0.0.1:4222",
		EnvBrokerSubject: "cache-eu",
		EnvLocalPath:     "/data/local.db",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, BrokerNATS, cfg.Broker.Kind)
	assert.Equal(t, "nats://10.0.0.1:4222", cfg.Broker.URL)
	assert.Equal(t, "cache-eu", cfg.Broker.Subject)
	assert.Equal(t, "/data/local.db", cfg.Local().Settings.String("path", ""))
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadBool(t *testing.T) {
	err := ApplyEnv(Default(), env(map[string]string{EnvCacheEnabled: "maybe"}))
	assert.ErrorContains(t, err, EnvCacheEnabled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  queue_size: 16\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Cache.QueueSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stores: []\n"), 0o644))

	_, err := Load(path)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
