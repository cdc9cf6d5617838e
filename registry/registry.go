// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks the profiles that are currently being recorded,
// keyed by the id of the execution context (usually one request) that
// records them.
package registry // import "go.opentelemetry.io/request-profiler/registry"

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/times"
)

var (
	// ErrAlreadyActive is returned when a profile is started for a context
	// that already has one.
	ErrAlreadyActive = errors.New("profile already active")
	// ErrNotActive is returned when stopping a context without a profile.
	ErrNotActive = errors.New("no active profile")
	// ErrUnbalancedStep is returned when steps are not closed in the reverse
	// order of opening them.
	ErrUnbalancedStep = errors.New("unbalanced step")
)

// shardCount must be a power of two.
const shardCount = 64

// ContextID identifies one execution context, e.g. one request.
type ContextID string

type shard struct {
	mu       sync.RWMutex
	sessions map[ContextID]*Session
}

// Registry maps execution contexts to the sessions recording their profiles.
// Contexts are spread over independently locked shards and the shard lock is
// only held for the map operation itself, so recording in one context never
// waits on another.
type Registry struct {
	clock  times.Clock
	shards [shardCount]shard
}

// New returns an empty Registry that reads time from clock.
func New(clock times.Clock) *Registry {
	if clock == nil {
		clock = times.System
	}
	r := &Registry{clock: clock}
	for i := range r.shards {
		r.shards[i].sessions = make(map[ContextID]*Session)
	}
	return r
}

func (r *Registry) shardFor(id ContextID) *shard {
	return &r.shards[xxh3.HashString(string(id))&(shardCount-1)]
}

// Start begins recording a new profile named name for id.
func (r *Registry) Start(id ContextID, name string, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{
		rootName: name,
		level:    profile.Info,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.profileID == uuid.Nil {
		o.profileID = uuid.New()
	}

	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[id]; ok {
		return nil, fmt.Errorf("%w for context %q", ErrAlreadyActive, id)
	}

	sw := times.StartStopwatch(r.clock)
	p := profile.New(o.profileID, name, o.rootName, sw.Started())
	p.MachineName = o.machineName
	p.User = o.user
	p.Level = o.level

	s := &Session{
		id: id,
		core: &core{
			profile:   p,
			stopwatch: sw,
		},
		stack: []*profile.Timing{p.Root},
	}
	sh.sessions[id] = s
	return s, nil
}

// Current returns the session recording for id, if any.
func (r *Registry) Current(id ContextID) (*Session, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	return s, ok
}

// Stop finalizes the profile recorded for id and removes it from the
// registry. Steps that are still open, including those of forks, are closed
// as of now and the finalized profile is returned together with an error
// wrapping ErrUnbalancedStep.
func (r *Registry) Stop(id ContextID) (*profile.Profile, error) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	delete(sh.sessions, id)
	sh.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w for context %q", ErrNotActive, id)
	}

	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()

	open := c.open
	c.profile.Finalize(c.elapsed())
	c.stopped = true
	s.stack = nil

	if open > 0 {
		return c.profile, fmt.Errorf("%w: %d step(s) still open when stopping context %q",
			ErrUnbalancedStep, open, id)
	}
	return c.profile, nil
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
