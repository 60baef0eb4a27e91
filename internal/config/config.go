// Package config loads the strata server configuration: a YAML file layered
// over Default and checked with struct tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Collab    CollabConfig    `yaml:"collab"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Sources   SourcesConfig   `yaml:"sources"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

type StoreConfig struct {
	Backend string       `yaml:"backend" validate:"oneof=memory redis badger"`
	Redis   RedisConfig  `yaml:"redis"`
	Badger  BadgerConfig `yaml:"badger"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

type BadgerConfig struct {
	Path       string        `yaml:"path"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// CollabConfig tunes the project actors.
type CollabConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	DrainTimeout time.Duration `yaml:"drain_timeout" validate:"gt=0"`
	QueueSize    int           `yaml:"queue_size" validate:"gte=1"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// SourcesConfig points at the directory of CSV datasources.
type SourcesConfig struct {
	Dir       string `yaml:"dir" validate:"required"`
	BatchSize int    `yaml:"batch_size" validate:"gte=1"`
}

// ArtifactsConfig sends rendered artifacts to a directory. When Dir is empty
// they are kept in the store.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a configuration that runs everything in memory.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "strata"},
			Badger:  BadgerConfig{Path: "data", SyncWrites: true, GCInterval: 5 * time.Minute},
		},
		Collab: CollabConfig{
			IdleTimeout:  5 * time.Minute,
			DrainTimeout: 10 * time.Second,
			QueueSize:    64,
		},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
		Log:     LogConfig{Level: "info", Format: "text"},
		Sources: SourcesConfig{Dir: "sources", BatchSize: 500},
	}
}

// Load reads path over the defaults. An empty path yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStore, StoreConfig{})
	return v
}

// validateStore requires the settings of the selected backend.
func validateStore(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)
	switch s.Backend {
	case BackendRedis:
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "Redis.Addr", "addr", "required_for_backend", s.Backend)
		}
	case BackendBadger:
		if s.Badger.Path == "" && !s.Badger.InMemory {
			sl.ReportError(s.Badger.Path, "Badger.Path", "path", "required_for_backend", s.Backend)
		}
	}
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]error, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return errors.Join(msgs...)
}
