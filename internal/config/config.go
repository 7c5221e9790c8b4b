// Package config loads the trajview configuration from a YAML or JSON file
// overlaid with command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/cache"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Services ServicesConfig `mapstructure:"services" yaml:"services"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
}

// ServicesConfig locates the structure and trajectory services.
// TrajectoryURL defaults to StructureURL.
type ServicesConfig struct {
	StructureURL  string            `mapstructure:"structure_url" yaml:"structure_url"`
	TrajectoryURL string            `mapstructure:"trajectory_url" yaml:"trajectory_url"`
	Timeout       time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Headers       map[string]string `mapstructure:"headers" yaml:"headers"`
}

// PolicyConfig mirrors cache.Policy.
type PolicyConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	NeverStale bool          `mapstructure:"never_stale" yaml:"never_stale"`
	Retention  time.Duration `mapstructure:"retention" yaml:"retention"`
}

// Policy converts the configuration into a cache policy.
func (p PolicyConfig) Policy() cache.Policy {
	return cache.Policy{StaleAfter: p.StaleAfter, NeverStale: p.NeverStale, Retention: p.Retention}
}

// CacheConfig holds the policies of both caches.
type CacheConfig struct {
	Structure        PolicyConfig  `mapstructure:"structure" yaml:"structure"`
	Trajectory       PolicyConfig  `mapstructure:"trajectory" yaml:"trajectory"`
	TrajectoryFormat string        `mapstructure:"trajectory_format" yaml:"trajectory_format"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// RedisConfig enables a shared request memory. An empty Addr keeps it in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Lock     bool          `mapstructure:"lock" yaml:"lock"`
}

// HTTPConfig configures the viewer API server.
type HTTPConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	Metrics         bool   `mapstructure:"metrics" yaml:"metrics"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin"`
	SurfaceFeedback bool   `mapstructure:"surface_feedback" yaml:"surface_feedback"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Services: ServicesConfig{
			StructureURL: "http://localhost:8000/api",
			Timeout:      30 * time.Second,
		},
		Cache: CacheConfig{
			Structure:        PolicyConfig{StaleAfter: 5 * time.Minute, Retention: 10 * time.Minute},
			Trajectory:       PolicyConfig{NeverStale: true, Retention: 30 * time.Minute},
			TrajectoryFormat: "xtc",
			JanitorInterval:  time.Minute,
		},
		Redis: RedisConfig{
			Prefix: "trajview:request:",
		},
		HTTP: HTTPConfig{
			Addr:       ":8080",
			Metrics:    true,
			CORSOrigin: "*",
		},
	}
}

// Load reads path (when non-empty) and applies overrides on top of the defaults.
// Override keys are dotted paths such as "services.timeout" or "redis.addr".
// A missing file is an error only when it was named explicitly.
func Load(path string, overrides map[string]any) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := unmarshal(path, data, &raw); err != nil {
			return Config{}, err
		}
	}

	for key, value := range overrides {
		if err := set(raw, key, value); err != nil {
			return Config{}, err
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Services.TrajectoryURL == "" {
		cfg.Services.TrajectoryURL = cfg.Services.StructureURL
	}
	return cfg, cfg.Validate()
}

func unmarshal(path string, data []byte, out *map[string]any) error {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if *out == nil {
		*out = map[string]any{}
	}
	return nil
}

// set assigns value at a dotted key, creating intermediate maps.
func set(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	for i, part := range parts[:len(parts)-1] {
		next, ok := m[part]
		if !ok {
			child := map[string]any{}
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("override %q: %q is not a section", key, strings.Join(parts[:i+1], "."))
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for name, raw := range map[string]string{
		"services.structure_url":  c.Services.StructureURL,
		"services.trajectory_url": c.Services.TrajectoryURL,
	} {
		if raw == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.Services.Timeout < 0 {
		errs = append(errs, errors.New("services.timeout must not be negative"))
	}
	if c.Cache.JanitorInterval <= 0 {
		errs = append(errs, errors.New("cache.janitor_interval must be positive"))
	}
	if c.Cache.TrajectoryFormat == "" {
		errs = append(errs, errors.New("cache.trajectory_format is required"))
	}
	if c.Redis.Lock && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.lock requires redis.addr"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	lvl, _ := logging.ParseLevel(c.LogLevel)
	return lvl
}
