// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/request-profiler/profiler"

import (
	"context"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/registry"
	"go.opentelemetry.io/request-profiler/times"
)

// CustomTimingRecorder is implemented by anything instrumentation adapters
// can hand completed external calls to.
type CustomTimingRecorder interface {
	// RecordCustomTiming attaches ct to the innermost open step of the
	// profile of ctx. It does nothing if ctx is not being profiled.
	RecordCustomTiming(ctx context.Context, callType string, ct profile.CustomTiming)
}

var _ CustomTimingRecorder = (*Provider)(nil)

func (p *Provider) RecordCustomTiming(ctx context.Context, callType string,
	ct profile.CustomTiming) {
	if s := p.session(ctx); s != nil {
		s.RecordCustomTiming(callType, ct)
	}
}

// AddCustomTiming records a call of duration d that ended just now.
func (p *Provider) AddCustomTiming(ctx context.Context, callType, executeType, command string,
	d time.Duration) {
	s := p.session(ctx)
	if s == nil {
		return
	}
	ms := times.Milliseconds(d)
	s.RecordCustomTiming(callType, profile.CustomTiming{
		ExecuteType:          executeType,
		CommandString:        command,
		StartMilliseconds:    s.ElapsedMilliseconds() - ms,
		DurationMilliseconds: ms,
		StackTraceSnippet:    stackSnippet(2, p.cfg.StackSnippetDepth),
	})
}

// CustomTimingHandle measures one external call. Its methods must be called
// from a single goroutine. A nil handle is valid and does nothing.
type CustomTimingHandle struct {
	session  *registry.Session
	callType string
	ct       profile.CustomTiming
	done     bool
}

// StartCustomTiming starts measuring an external call now. The timing is
// attached to the innermost open step when the handle is stopped.
func (p *Provider) StartCustomTiming(ctx context.Context, callType, executeType,
	command string) *CustomTimingHandle {
	s := p.session(ctx)
	if s == nil {
		return nil
	}
	return &CustomTimingHandle{
		session:  s,
		callType: callType,
		ct: profile.CustomTiming{
			ExecuteType:       executeType,
			CommandString:     command,
			StartMilliseconds: s.ElapsedMilliseconds(),
			StackTraceSnippet: stackSnippet(2, p.cfg.StackSnippetDepth),
		},
	}
}

// MarkFirstFetch records that the first result of the call is available.
func (h *CustomTimingHandle) MarkFirstFetch() {
	if h == nil || h.done {
		return
	}
	h.ct.FirstFetchDurationMilliseconds = h.session.ElapsedMilliseconds() - h.ct.StartMilliseconds
}

// Fail marks the call as errored.
func (h *CustomTimingHandle) Fail() {
	if h == nil || h.done {
		return
	}
	h.ct.Errored = true
}

// Stop ends the measurement and records the timing. Only the first call
// has an effect.
func (h *CustomTimingHandle) Stop() {
	if h == nil || h.done {
		return
	}
	h.done = true
	h.ct.DurationMilliseconds = h.session.ElapsedMilliseconds() - h.ct.StartMilliseconds
	h.session.RecordCustomTiming(h.callType, h.ct)
}

// CustomTimingFunc measures fn as an external call. The timing is marked
// errored if fn fails.
func (p *Provider) CustomTimingFunc(ctx context.Context, callType, executeType, command string,
	fn func(ctx context.Context) error) error {
	h := p.StartCustomTiming(ctx, callType, executeType, command)
	defer h.Stop()
	if err := fn(ctx); err != nil {
		h.Fail()
		return err
	}
	return nil
}

// stackSnippet returns the names of up to depth calling functions, innermost
// first, separated by spaces.
func stackSnippet(skip, depth int) string {
	if depth <= 0 {
		return ""
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	names := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if fn := frame.Function; fn != "" {
			if i := strings.LastIndexByte(fn, '/'); i >= 0 {
				fn = fn[i+1:]
			}
			names = append(names, fn)
		}
		if !more {
			break
		}
	}
	return strings.Join(names, " ")
}
