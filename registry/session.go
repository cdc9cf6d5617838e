// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package registry // import "go.opentelemetry.io/request-profiler/registry"

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/times"
)

// ForkPrefix is prepended to the name of steps created by Fork.
const ForkPrefix = "⑃ "

// core is the state a session shares with its forks.
type core struct {
	mu        sync.Mutex
	profile   *profile.Profile
	stopwatch times.Stopwatch
	stopped   bool

	// open counts the steps below the root that are still open, on all
	// stacks of the session and its forks.
	open int
	// forks counts the open forked steps per parent step.
	forks map[*profile.Timing]int
}

func (c *core) elapsed() float64 {
	return c.stopwatch.ElapsedMilliseconds()
}

// Session records one profile. It owns the stack of open steps of one
// execution context; the bottom of the stack is the root step.
type Session struct {
	id    ContextID
	core  *core
	stack []*profile.Timing
	// forked is set for sessions returned by Fork. The bottom of their
	// stack is the forked step.
	forked bool
}

// StepToken identifies a step opened by BeginStep. The zero token is valid
// and ending it does nothing.
type StepToken struct {
	timing *profile.Timing
}

// Timing returns the step the token refers to.
func (t StepToken) Timing() *profile.Timing { return t.timing }

// IsZero reports whether the token refers to no step.
func (t StepToken) IsZero() bool { return t.timing == nil }

// ContextID returns the id of the context the session records for.
func (s *Session) ContextID() ContextID { return s.id }

// Profile returns the profile under construction. It must not be read
// concurrently with recording until the session has been stopped.
func (s *Session) Profile() *profile.Profile { return s.core.profile }

// Level returns the level of detail recorded by the session.
func (s *Session) Level() profile.Level { return s.core.profile.Level }

// ElapsedMilliseconds returns the current offset from the profile start.
func (s *Session) ElapsedMilliseconds() float64 { return s.core.elapsed() }

// Stopped reports whether the profile has been finalized.
func (s *Session) Stopped() bool {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	return s.core.stopped
}

// Depth returns the number of steps opened on this session and not yet closed.
func (s *Session) Depth() int {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	if len(s.stack) == 0 {
		return 0
	}
	return len(s.stack) - 1
}

func (s *Session) top() *profile.Timing {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// BeginStep opens a new step below the innermost open step.
func (s *Session) BeginStep(name string) StepToken {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := s.top()
	if c.stopped || parent == nil {
		return StepToken{}
	}
	t := parent.AddChild(name, c.elapsed())
	s.stack = append(s.stack, t)
	c.open++
	return StepToken{timing: t}
}

// EndStep closes the step of tok. Only the innermost open step can be
// closed, and only once all steps forked below it have been closed; for
// any other step ErrUnbalancedStep is returned and neither the tree nor the
// stack is changed. Closing a step twice, or after the session has been
// stopped, does nothing.
func (s *Session) EndStep(tok StepToken) error {
	if tok.timing == nil {
		return nil
	}
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || !tok.timing.IsOpen() {
		return nil
	}
	top := s.top()
	if top != tok.timing {
		current := "<none>"
		if top != nil {
			current = top.Name
		}
		return fmt.Errorf("%w: cannot close %q while %q is open",
			ErrUnbalancedStep, tok.timing.Name, current)
	}
	if n := c.forks[tok.timing]; n > 0 {
		return fmt.Errorf("%w: cannot close %q while %d forked step(s) below it are open",
			ErrUnbalancedStep, tok.timing.Name, n)
	}
	tok.timing.Close(c.elapsed() - tok.timing.StartMilliseconds)
	s.stack[len(s.stack)-1] = nil
	s.stack = s.stack[:len(s.stack)-1]
	c.open--
	if s.forked && len(s.stack) == 0 {
		parent := tok.timing.Parent()
		if c.forks[parent]--; c.forks[parent] == 0 {
			delete(c.forks, parent)
		}
	}
	return nil
}

// RecordCustomTiming attaches ct to the innermost open step.
func (s *Session) RecordCustomTiming(callType string, ct profile.CustomTiming) {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()

	t := s.top()
	if c.stopped || t == nil {
		return
	}
	rec := ct
	t.AddCustomTiming(callType, &rec)
}

// Fork opens a step named after name below the innermost open step and
// returns a session whose stack starts at that step. The fork shares the
// profile with s and can record concurrently from another goroutine. The
// returned token closes the forked step through the fork.
func (s *Session) Fork(name string) (*Session, StepToken) {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := s.top()
	if c.stopped || parent == nil {
		return &Session{id: s.id, core: c}, StepToken{}
	}
	t := parent.AddChild(ForkPrefix+name, c.elapsed())
	c.open++
	if c.forks == nil {
		c.forks = make(map[*profile.Timing]int)
	}
	c.forks[parent]++
	return &Session{
		id:     s.id,
		core:   c,
		stack:  []*profile.Timing{t},
		forked: true,
	}, StepToken{timing: t}
}
