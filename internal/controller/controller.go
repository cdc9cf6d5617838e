// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller wires storage, reporter and profiler together from a
// configuration.
package controller // import "go.opentelemetry.io/request-profiler/internal/controller"

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/analyzer"
	"go.opentelemetry.io/request-profiler/config"
	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/metrics/agentmetrics"
	"go.opentelemetry.io/request-profiler/metrics/sourcemetrics"
	"go.opentelemetry.io/request-profiler/profiler"
	"go.opentelemetry.io/request-profiler/reporter"
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/times"
)

// exitParseError is the exit code for invalid configurations.
const exitParseError = 2

// Controller is an instance that runs, manages and stops the profiler.
type Controller struct {
	config     *config.Config
	configPath string
	clock      times.Clock

	store    storage.Storage
	reporter *reporter.Reporter
	provider *profiler.Provider

	analyzerConfig atomic.Pointer[analyzer.Config]

	// stops holds the cleanup functions of started background tasks.
	stops []func()
}

// New creates a new controller. A nil cfg selects the default configuration.
func New(cfg *config.Config, opts ...Option) *Controller {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	c := &Controller{config: cfg, clock: times.System}
	for _, opt := range opts {
		c = opt.applyOption(c)
	}
	ac := cfg.Analyzer
	c.analyzerConfig.Store(&ac)
	return c
}

// Start starts the controller
// The controller should only be started once.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return ErrorWithExitCode{
			error: fmt.Errorf("invalid configuration: %w", err),
			code:  exitParseError,
		}
	}

	if c.store == nil {
		store, err := newStorage(ctx, c.config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create %s storage: %w", c.config.Storage.Type, err)
		}
		c.store = store
	}
	log.Debugf("Using %s storage", c.config.Storage.Type)

	rep, err := reporter.New(reporter.Config{
		QueueSize: c.config.Reporter.QueueSize,
		Intervals: c.config.Times(),
		Jitter:    c.config.Reporter.Jitter,
	}, c.store)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}
	rep.Start(ctx)
	c.reporter = rep

	c.provider = profiler.New(profiler.Config{
		Clock:             c.clock,
		Sink:              rep,
		MachineName:       c.config.Profiler.MachineName,
		Level:             c.config.Level(),
		Strict:            c.config.Profiler.Strict,
		StackSnippetDepth: c.config.Profiler.StackSnippetDepth,
	})

	if interval := c.config.StatsInterval; interval > 0 {
		stopAgent, err := agentmetrics.Start(ctx, interval)
		if err != nil {
			return fmt.Errorf("failed to start agent metrics: %w", err)
		}
		c.stops = append(c.stops, stopAgent)
		c.stops = append(c.stops, sourcemetrics.Start(ctx, interval, c.metricSources()...))
	}

	if c.configPath != "" {
		stopWatch, err := config.Watch(ctx, c.configPath, c.reload)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		c.stops = append(c.stops, stopWatch)
	}
	return nil
}

func (c *Controller) metricSources() []metrics.Source {
	sources := []metrics.Source{c.provider, c.reporter}
	if src, ok := c.store.(metrics.Source); ok {
		sources = append(sources, src)
	}
	return sources
}

// reload applies the settings of a changed configuration file that can be
// changed at runtime.
func (c *Controller) reload(cfg config.Config) {
	ac := cfg.Analyzer
	c.analyzerConfig.Store(&ac)
	if cfg.Storage != c.config.Storage || cfg.Reporter != c.config.Reporter {
		log.Warnf("Storage and reporter settings only take effect after a restart")
	}
}

// Provider returns the profiler provider. It is nil before Start.
func (c *Controller) Provider() *profiler.Provider { return c.provider }

// Storage returns the storage profiles are saved to.
func (c *Controller) Storage() storage.Storage { return c.store }

// AnalyzerConfig returns the current analyzer settings.
func (c *Controller) AnalyzerConfig() analyzer.Config {
	return *c.analyzerConfig.Load()
}

// Shutdown stops the controller and saves profiles still queued.
func (c *Controller) Shutdown() {
	log.Debug("Stop processing ...")
	if c.reporter != nil {
		c.reporter.Stop()
	}
	for _, stop := range slices.Backward(c.stops) {
		stop()
	}
	c.stops = nil
}
