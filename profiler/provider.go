// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package profiler is the instrumentation API. Code under measurement opens
// steps and records custom timings through a Provider, which resolves the
// profile of the calling request from its context.Context.
package profiler // import "go.opentelemetry.io/request-profiler/profiler"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/registry"
	"go.opentelemetry.io/request-profiler/times"
)

// Sink receives finished profiles.
type Sink interface {
	Report(p *profile.Profile)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(p *profile.Profile)

func (f SinkFunc) Report(p *profile.Profile) { f(p) }

// Config defines the behavior of a Provider.
type Config struct {
	// Registry holds the active sessions. A new one is created if nil.
	Registry *registry.Registry
	// Clock is used for a newly created Registry.
	Clock times.Clock
	// Sink receives profiles when they are stopped. May be nil.
	Sink Sink
	// MachineName defaults to the host name.
	MachineName string
	// UserFunc returns the user a new profile is recorded for.
	UserFunc func(ctx context.Context) string
	// Level is the level of detail of new profiles.
	Level profile.Level
	// Strict makes instrumentation misuse panic instead of being logged.
	Strict bool
	// StackSnippetDepth is the number of caller frames stored with each
	// custom timing recorded through the convenience methods. 0 disables it.
	StackSnippetDepth int
}

// Provider starts, stops and records into request profiles.
type Provider struct {
	cfg      Config
	registry *registry.Registry

	started    atomic.Uint64
	stopped    atomic.Uint64
	unbalanced atomic.Uint64
}

// New returns a Provider for cfg.
func New(cfg Config) *Provider {
	if cfg.Clock == nil {
		cfg.Clock = times.System
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New(cfg.Clock)
	}
	if cfg.MachineName == "" {
		cfg.MachineName = defaultMachineName()
	}
	return &Provider{cfg: cfg, registry: cfg.Registry}
}

func defaultMachineName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		log.Debugf("Failed to determine host name, using localhost: %v", err)
		return "localhost"
	}
	return name
}

// Registry returns the registry the provider records into.
func (p *Provider) Registry() *registry.Registry { return p.registry }

// MachineName returns the machine name stored in new profiles.
func (p *Provider) MachineName() string { return p.cfg.MachineName }

// misuse reports instrumentation bugs. It panics in strict mode.
func (p *Provider) misuse(err error) error {
	if p.cfg.Strict {
		panic(err)
	}
	log.Warnf("Profiler misuse: %v", err)
	return err
}

// Start begins a profile named name for the execution context of ctx. If
// ctx carries no context id a new one is generated. The returned context
// must be used for all instrumentation of the profiled work.
func (p *Provider) Start(ctx context.Context, name string) (context.Context, error) {
	id, ok := ContextIDFrom(ctx)
	if !ok {
		id = registry.ContextID(uuid.NewString())
		ctx = WithContextID(ctx, id)
	}

	opts := []registry.SessionOption{
		registry.WithLevel(p.cfg.Level),
		registry.WithMachineName(p.cfg.MachineName),
	}
	if p.cfg.UserFunc != nil {
		opts = append(opts, registry.WithUser(p.cfg.UserFunc(ctx)))
	}
	s, err := p.registry.Start(id, name, opts...)
	if err != nil {
		return ctx, p.misuse(err)
	}
	p.started.Add(1)
	log.Debugf("Started profile %s (%s) for context %s", s.Profile().ID, name, id)
	return ctx, nil
}

// Current returns the session recording for ctx, if any.
func (p *Provider) Current(ctx context.Context) (*registry.Session, bool) {
	s := p.session(ctx)
	return s, s != nil
}

func (p *Provider) session(ctx context.Context) *registry.Session {
	if s := forkFrom(ctx); s != nil {
		return s
	}
	id, ok := ContextIDFrom(ctx)
	if !ok {
		return nil
	}
	s, _ := p.registry.Current(id)
	return s
}

// Stop finalizes the profile of ctx and hands it to the configured Sink.
func (p *Provider) Stop(ctx context.Context) (*profile.Profile, error) {
	return p.stop(ctx, false)
}

// StopDiscard finalizes the profile of ctx without reporting it.
func (p *Provider) StopDiscard(ctx context.Context) error {
	_, err := p.stop(ctx, true)
	return err
}

func (p *Provider) stop(ctx context.Context, discard bool) (*profile.Profile, error) {
	id, ok := ContextIDFrom(ctx)
	if !ok {
		return nil, p.misuse(fmt.Errorf("%w: context carries no context id", registry.ErrNotActive))
	}
	prof, err := p.registry.Stop(id)
	if prof != nil {
		p.stopped.Add(1)
		log.Debugf("Stopped profile %s after %s", prof.ID,
			profile.FormatMilliseconds(prof.DurationMilliseconds))
		if !discard && p.cfg.Sink != nil {
			p.cfg.Sink.Report(prof)
		}
	}
	if err != nil {
		if errors.Is(err, registry.ErrUnbalancedStep) {
			p.unbalanced.Add(1)
		}
		return prof, p.misuse(err)
	}
	return prof, nil
}

// Metrics returns and resets the session counters of the provider.
func (p *Provider) Metrics() []metrics.Metric {
	return []metrics.Metric{
		{ID: metrics.IDProfilesStarted, Value: metrics.MetricValue(p.started.Swap(0))},
		{ID: metrics.IDProfilesStopped, Value: metrics.MetricValue(p.stopped.Swap(0))},
		{ID: metrics.IDProfilesUnbalanced, Value: metrics.MetricValue(p.unbalanced.Swap(0))},
		{ID: metrics.IDActiveSessions, Value: metrics.MetricValue(p.registry.Len())},
	}
}
