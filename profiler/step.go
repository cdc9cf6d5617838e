// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/request-profiler/profiler"

import (
	"context"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/registry"
)

// Step is an open step. A nil *Step is valid and stopping it does nothing,
// so the idiom
//
//	defer p.Step(ctx, "load user").Stop()
//
// works whether or not ctx is being profiled.
type Step struct {
	p       *Provider
	session *registry.Session
	token   registry.StepToken
}

// Stop closes the step.
func (s *Step) Stop() error {
	if s == nil {
		return nil
	}
	if err := s.session.EndStep(s.token); err != nil {
		return s.p.misuse(err)
	}
	return nil
}

// Timing returns the recorded step.
func (s *Step) Timing() *profile.Timing {
	if s == nil {
		return nil
	}
	return s.token.Timing()
}

// Step opens a step named name in the profile of ctx.
func (p *Provider) Step(ctx context.Context, name string) *Step {
	return p.StepLevel(ctx, name, profile.Info)
}

// StepLevel opens a step only if the profile of ctx records level.
func (p *Provider) StepLevel(ctx context.Context, name string, level profile.Level) *Step {
	s := p.session(ctx)
	if s == nil || level > s.Level() {
		return nil
	}
	tok := s.BeginStep(name)
	if tok.IsZero() {
		return nil
	}
	return &Step{p: p, session: s, token: tok}
}

// StepFunc runs fn inside a step named name. The step is closed when fn
// returns or panics.
func (p *Provider) StepFunc(ctx context.Context, name string,
	fn func(ctx context.Context) error) (err error) {
	step := p.Step(ctx, name)
	defer func() {
		if stopErr := step.Stop(); err == nil {
			err = stopErr
		}
	}()
	return fn(ctx)
}

// Fork opens a step for work that runs concurrently with the caller, e.g.
// in a new goroutine. Steps and custom timings recorded with the returned
// context nest below the forked step. The returned Step closes it.
func (p *Provider) Fork(ctx context.Context, name string) (context.Context, *Step) {
	s := p.session(ctx)
	if s == nil {
		return ctx, nil
	}
	fork, tok := s.Fork(name)
	if tok.IsZero() {
		return ctx, nil
	}
	return withFork(ctx, fork), &Step{p: p, session: fork, token: tok}
}
