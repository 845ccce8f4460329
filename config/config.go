// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the tenderscope YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/embedder"
	"github.com/poiesic/tenderscope/fetcher"
	"github.com/poiesic/tenderscope/scheduler"
	"github.com/poiesic/tenderscope/storage/postgres"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAPIKey      = "OPENAI_API_KEY"
	EnvPostgresDSN = "TENDERSCOPE_PG_DSN"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for tenderscope.
type Config struct {
	Storage   StorageConfig    `yaml:"storage"`
	Embedding ai.Config        `yaml:"embedding"`
	Batch     embedder.Config  `yaml:"batch"`
	Fetcher   fetcher.Config   `yaml:"fetcher"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	Search    SearchConfig     `yaml:"search"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// StorageConfig selects and configures the record and vector store.
type StorageConfig struct {
	Backend  string          `yaml:"backend"` // "badger" or "postgres"
	Path     string          `yaml:"path"`    // badger data directory
	Postgres postgres.Config `yaml:"postgres"`
}

// SearchConfig bounds search requests.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:  BackendBadger,
			Path:     "./data",
			Postgres: postgres.Config{MaxConns: 4},
		},
		Embedding: *ai.DefaultConfig(),
		Batch:     *embedder.DefaultConfig(),
		Fetcher:   *fetcher.DefaultConfig(),
		Scheduler: *scheduler.DefaultConfig(),
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     300,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file layered over the defaults and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv fills secrets from the environment when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Embedding.Token = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.Postgres.DSN = v
	}
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendBadger:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for badger"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn is required (or set %s)", EnvPostgresDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of %s, %s", c.Storage.Backend, BackendBadger, BackendPostgres))
	}

	embedding := c.Embedding
	embedding.Normalize()
	if err := embedding.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	}
	if err := c.Batch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("batch: %w", err))
	}
	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if strings.TrimSpace(c.Fetcher.BaseURL) == "" {
		errs = append(errs, errors.New("fetcher.base_url is required"))
	}
	if c.Fetcher.PageSize < 1 {
		errs = append(errs, errors.New("fetcher.page_size must be greater than 0"))
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search limits must satisfy 0 < default_limit <= max_limit"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
