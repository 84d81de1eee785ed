// Package config loads streamhub's YAML configuration.
//
// A file is decoded over Default(), environment overrides are applied, and
// the result is validated against the embedded CUE schema, then against the
// rules CUE cannot express (one local store, unique store ids).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/streamhub/internal/cluster"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamid"
)

//go:embed schema.cue
var schemaCUE string

// Store kinds.
const (
	KindSQLite = "sqlite"
	KindBadger = "badger"
	KindMongo  = "mongo"
)

// BrokerNATS selects the NATS broker. The empty kind runs local-only.
const BrokerNATS = "nats"

// Config is the whole configuration.
type Config struct {
	Cache  CacheConfig   `yaml:"cache" json:"cache"`
	Broker BrokerConfig  `yaml:"broker" json:"broker"`
	Stores []StoreConfig `yaml:"stores" json:"stores"`
}

// CacheConfig configures the per-process cache and its relay.
type CacheConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	QueueSize int  `yaml:"queue_size" json:"queueSize"`
}

// BrokerConfig selects the cluster broker.
type BrokerConfig struct {
	Kind    string `yaml:"kind" json:"kind"`
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
	Name    string `yaml:"name" json:"name"`
}

// StoreConfig declares one store backend.
type StoreConfig struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Kind     string         `yaml:"kind" json:"kind"`
	Settings store.Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Default returns the configuration used without a file: cache enabled,
// no broker, one in-memory SQLite local store.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:   true,
			QueueSize: cluster.DefaultQueueSize,
		},
		Broker: BrokerConfig{
			Subject: cluster.DefaultSubject,
		},
		Stores: []StoreConfig{
			{ID: streamid.LocalStoreID, Name: "Local", Kind: KindSQLite},
		},
	}
}

// Load reads the file at path, or starts from Default when path is empty,
// then applies the process environment and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if cfg, err = Parse(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown fields are rejected. The result
// is not validated.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvCacheEnabled  = "STREAMHUB_CACHE_ENABLED"
	EnvBrokerURL     = "STREAMHUB_BROKER_URL"
	EnvBrokerSubject = "STREAMHUB_BROKER_SUBJECT"
	EnvLocalPath     = "STREAMHUB_LOCAL_PATH"
)

// ApplyEnv overrides cfg from lookup, typically os.LookupEnv. Setting
// STREAMHUB_BROKER_URL selects the NATS broker.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvCacheEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheEnabled, err)
		}
		cfg.Cache.Enabled = enabled
	}
	if v, ok := lookup(EnvBrokerURL); ok && v != "" {
		cfg.Broker.Kind = BrokerNATS
		cfg.Broker.URL = v
	}
	if v, ok := lookup(EnvBrokerSubject); ok && v != "" {
		cfg.Broker.Subject = v
	}
	if v, ok := lookup(EnvLocalPath); ok && v != "" {
		for i := range cfg.Stores {
			if cfg.Stores[i].ID != streamid.LocalStoreID {
				continue
			}
			if cfg.Stores[i].Settings == nil {
				cfg.Stores[i].Settings = store.Settings{}
			}
			cfg.Stores[i].Settings["path"] = v
		}
	}
	return nil
}

// ValidationError reports a configuration that breaks the schema or the
// store rules.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks cfg against the schema, then requires exactly one local
// store and unique store ids.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}

	seen := make(map[string]bool, len(c.Stores))
	for _, s := range c.Stores {
		if seen[s.ID] {
			return &ValidationError{Err: fmt.Errorf("duplicate store id %q", s.ID)}
		}
		seen[s.ID] = true
	}
	if !seen[streamid.LocalStoreID] {
		return &ValidationError{Err: fmt.Errorf("no %q store declared", streamid.LocalStoreID)}
	}
	return nil
}

// Local returns the local store declaration.
func (c *Config) Local() StoreConfig {
	for _, s := range c.Stores {
		if s.ID == streamid.LocalStoreID {
			return s
		}
	}
	return StoreConfig{}
}
