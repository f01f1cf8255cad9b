// Package config loads and validates the application configuration.
//
// Configuration comes from one YAML file; every field has a documented
// default, so an empty file (or no file at all) yields a runnable
// local setup except for the database DSN, which must be provided.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/filestore"
	"github.com/jwkim/schemadoc/internal/logger"
	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
	"github.com/jwkim/schemadoc/internal/render"
)

// Config is the full application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	Database metadata.Config  `yaml:"database"`
	Store    filestore.Config `yaml:"store"`
	Log      logger.Config    `yaml:"log"`
	Pipeline Pipeline         `yaml:"pipeline"`
	Render   Render           `yaml:"render"`
}

// Pipeline tunes the worker pool and selection coalescing.
type Pipeline struct {
	// Workers bounds how many jobs run concurrently.
	Workers int `yaml:"workers"`

	// EventBuffer is the per-job progress channel capacity.
	EventBuffer int `yaml:"eventBuffer"`

	// DebounceWindow is the quiet interval before a coalesced
	// selection dispatches.
	DebounceWindow time.Duration `yaml:"debounceWindow"`
}

// Render tunes incremental result rendering.
type Render struct {
	// ChunkSize bounds how many grid rows are flushed per increment.
	ChunkSize int `yaml:"chunkSize"`
}

// Default returns the documented defaults. The database DSN is left
// empty and must come from the file or the caller.
func Default() *Config {
	db := metadata.DefaultConfig(metadata.DriverPostgres, "")
	return &Config{
		Listen:   ":8080",
		Database: *db,
		Store:    *filestore.DefaultConfig("exports"),
		Log:      *logger.DefaultConfig(),
		Pipeline: Pipeline{
			Workers:        pipeline.DefaultWorkers,
			EventBuffer:    pipeline.DefaultEventBuffer,
			DebounceWindow: pipeline.DefaultDebounceWindow,
		},
		Render: Render{
			ChunkSize: render.DefaultChunkSize,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. A missing file is fine when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case metadata.DriverPostgres, metadata.DriverMySQL:
	default:
		return errs.New(errs.ErrKindInvalidInput, "unknown database driver: "+string(c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput, "database dsn is required")
	}

	switch c.Store.Provider {
	case filestore.ProviderLocal:
	case filestore.ProviderMinIO:
		if c.Store.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "store endpoint is required for minio")
		}
		if c.Store.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "store bucket is required for minio")
		}
	default:
		return errs.New(errs.ErrKindInvalidInput, "unknown store provider: "+string(c.Store.Provider))
	}

	if c.Pipeline.Workers < 0 || c.Pipeline.EventBuffer < 0 {
		return errs.New(errs.ErrKindInvalidInput, "pipeline sizes must not be negative")
	}
	if c.Render.ChunkSize < 0 {
		return errs.New(errs.ErrKindInvalidInput, "render chunk size must not be negative")
	}
	return nil
}
