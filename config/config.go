// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config defines the configuration file of the request profiler.
package config // import "go.opentelemetry.io/request-profiler/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"go.opentelemetry.io/request-profiler/analyzer"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/reporter"
	"go.opentelemetry.io/request-profiler/storage/memstore"
	"go.opentelemetry.io/request-profiler/times"
)

// Storage types.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageS3     = "s3"
)

// Config is the structure of the configuration file.
type Config struct {
	Storage  Storage         `yaml:"storage"`
	Reporter Reporter        `yaml:"reporter"`
	Profiler Profiler        `yaml:"profiler"`
	Analyzer analyzer.Config `yaml:"analyzer"`

	// StatsInterval defines how often internal metrics are collected.
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type Storage struct {
	// Type selects the storage backend: memory, file or s3.
	Type string `yaml:"type"`
	// Capacity is the number of profiles kept by the memory storage.
	Capacity uint32 `yaml:"capacity"`
	// Directory holds the profiles of the file storage.
	Directory string `yaml:"directory"`
	S3        S3     `yaml:"s3"`
}

type S3 struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// Endpoint selects an S3 compatible service instead of AWS.
	Endpoint string `yaml:"endpoint"`
}

type Reporter struct {
	QueueSize     uint32        `yaml:"queue_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	SaveTimeout   time.Duration `yaml:"save_timeout"`
	Jitter        float64       `yaml:"jitter"`
}

type Profiler struct {
	// MachineName overrides the host name stored in profiles.
	MachineName string `yaml:"machine_name"`
	// Level is info or verbose.
	Level string `yaml:"level"`
	// Strict makes instrumentation errors panic. Meant for development.
	Strict bool `yaml:"strict"`
	// StackSnippetDepth is the number of callers stored with custom timings.
	StackSnippetDepth int `yaml:"stack_snippet_depth"`
}

// Default returns the configuration used for settings missing from a file.
func Default() Config {
	return Config{
		Storage: Storage{
			Type:     StorageMemory,
			Capacity: memstore.DefaultCapacity,
			S3:       S3{Prefix: "profiles/"},
		},
		Reporter: Reporter{
			QueueSize:     reporter.DefaultQueueSize,
			FlushInterval: times.DefaultFlushInterval,
			SaveTimeout:   times.DefaultSaveTimeout,
			Jitter:        0.2,
		},
		Profiler:      Profiler{Level: profile.Info.String()},
		Analyzer:      analyzer.DefaultConfig(),
		StatsInterval: times.DefaultStatsInterval,
	}
}

// Load reads the configuration file at path on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Directory == "" {
			errs = append(errs, errors.New("file storage requires a directory"))
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 storage requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if c.Reporter.Jitter < 0 || c.Reporter.Jitter > 1 {
		errs = append(errs, fmt.Errorf("reporter jitter %v out of range [0..1]",
			c.Reporter.Jitter))
	}
	if c.Reporter.FlushInterval < 0 || c.Reporter.SaveTimeout < 0 {
		errs = append(errs, errors.New("reporter intervals must not be negative"))
	}
	if c.StatsInterval < 0 {
		errs = append(errs, errors.New("stats interval must not be negative"))
	}
	if _, err := profile.ParseLevel(c.Profiler.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Profiler.StackSnippetDepth < 0 {
		errs = append(errs, errors.New("stack snippet depth must not be negative"))
	}
	if err := c.Analyzer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analyzer: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the parsed profiler level.
func (c *Config) Level() profile.Level {
	level, _ := profile.ParseLevel(c.Profiler.Level)
	return level
}

// Times returns the intervals used by the background components.
func (c *Config) Times() *times.Times {
	return times.New(c.Reporter.FlushInterval, c.Reporter.SaveTimeout)
}
