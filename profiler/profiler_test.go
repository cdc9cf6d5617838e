// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/registry"
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/storage/memstore"
	"go.opentelemetry.io/request-profiler/times"
)

type collectingSink struct {
	mu       sync.Mutex
	profiles []*profile.Profile
}

func (c *collectingSink) Report(p *profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = append(c.profiles, p)
}

func newTestProvider(t *testing.T, cfg Config) (*Provider, *times.ManualClock, *collectingSink) {
	t.Helper()
	clock := times.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sink := &collectingSink{}
	cfg.Clock = clock
	cfg.Sink = sink
	if cfg.MachineName == "" {
		cfg.MachineName = "test-host"
	}
	return New(cfg), clock, sink
}

func TestRequestLifecycle(t *testing.T) {
	p, clock, sink := newTestProvider(t, Config{
		UserFunc: func(context.Context) string { return "alice" },
	})

	ctx, err := p.Start(context.Background(), "GET /orders")
	require.NoError(t, err)
	_, ok := ContextIDFrom(ctx)
	require.True(t, ok)

	clock.AdvanceMilliseconds(10)
	step := p.Step(ctx, "load orders")
	clock.AdvanceMilliseconds(5)
	p.AddCustomTiming(ctx, "sql", "reader", "SELECT * FROM orders", 4*time.Millisecond)
	clock.AdvanceMilliseconds(15)
	require.NoError(t, step.Stop())
	clock.AdvanceMilliseconds(70)

	prof, err := p.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, sink.profiles, 1)
	assert.Same(t, prof, sink.profiles[0])

	assert.Equal(t, "GET /orders", prof.Name)
	assert.Equal(t, "test-host", prof.MachineName)
	assert.Equal(t, "alice", prof.User)
	assert.InDelta(t, 100.0, prof.DurationMilliseconds, 1e-9)

	require.Len(t, prof.Root.Children, 1)
	load := prof.Root.Children[0]
	assert.Equal(t, "load orders", load.Name)
	assert.InDelta(t, 10.0, load.StartMilliseconds, 1e-9)
	assert.InDelta(t, 20.0, load.DurationMilliseconds, 1e-9)

	require.Len(t, load.CustomTimings["sql"], 1)
	ct := load.CustomTimings["sql"][0]
	assert.Equal(t, "reader", ct.ExecuteType)
	assert.InDelta(t, 11.0, ct.StartMilliseconds, 1e-9)
	assert.InDelta(t, 4.0, ct.DurationMilliseconds, 1e-9)
	assert.Empty(t, ct.StackTraceSnippet)

	_, ok = p.Current(ctx)
	assert.False(t, ok)
}

func TestUnprofiledContext(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	ctx := context.Background()

	step := p.Step(ctx, "nothing")
	assert.Nil(t, step)
	require.NoError(t, step.Stop())
	assert.Nil(t, step.Timing())

	h := p.StartCustomTiming(ctx, "http", "GET", "/")
	assert.Nil(t, h)
	h.MarkFirstFetch()
	h.Fail()
	h.Stop()

	forked, fstep := p.Fork(ctx, "worker")
	assert.Equal(t, ctx, forked)
	assert.Nil(t, fstep)

	called := false
	require.NoError(t, p.StepFunc(ctx, "fn", func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestStartTwice(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)

	_, err = p.Start(ctx, "b")
	require.ErrorIs(t, err, registry.ErrAlreadyActive)

	strict, _, _ := newTestProvider(t, Config{Strict: true, Registry: p.Registry()})
	assert.Panics(t, func() {
		_, _ = strict.Start(ctx, "c")
	})
}

func TestStopErrors(t *testing.T) {
	p, _, sink := newTestProvider(t, Config{})

	_, err := p.Stop(context.Background())
	require.ErrorIs(t, err, registry.ErrNotActive)

	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)
	p.Step(ctx, "left open")
	prof, err := p.Stop(ctx)
	require.ErrorIs(t, err, registry.ErrUnbalancedStep)
	require.NotNil(t, prof)
	assert.False(t, prof.Root.Children[0].IsOpen())
	assert.Len(t, sink.profiles, 1)

	_, err = p.Stop(ctx)
	require.ErrorIs(t, err, registry.ErrNotActive)
}

func TestStopDiscard(t *testing.T) {
	p, _, sink := newTestProvider(t, Config{})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, p.StopDiscard(ctx))
	assert.Empty(t, sink.profiles)
}

func TestStepLevel(t *testing.T) {
	tests := map[string]struct {
		level profile.Level
		want  []string
	}{
		"info":    {level: profile.Info, want: []string{"always"}},
		"verbose": {level: profile.Verbose, want: []string{"always", "detail"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			p, _, _ := newTestProvider(t, Config{Level: tc.level})
			ctx, err := p.Start(context.Background(), "a")
			require.NoError(t, err)
			require.NoError(t, p.StepLevel(ctx, "always", profile.Info).Stop())
			require.NoError(t, p.StepLevel(ctx, "detail", profile.Verbose).Stop())
			prof, err := p.Stop(ctx)
			require.NoError(t, err)

			var names []string
			for _, c := range prof.Root.Children {
				names = append(names, c.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestUnbalancedStepStop(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)

	outer := p.Step(ctx, "outer")
	inner := p.Step(ctx, "inner")
	require.ErrorIs(t, outer.Stop(), registry.ErrUnbalancedStep)
	require.NoError(t, inner.Stop())
	require.NoError(t, outer.Stop())
	require.NoError(t, outer.Stop())

	strict, _, _ := newTestProvider(t, Config{Strict: true})
	ctx, err = strict.Start(context.Background(), "b")
	require.NoError(t, err)
	outer = strict.Step(ctx, "outer")
	strict.Step(ctx, "inner")
	assert.Panics(t, func() { _ = outer.Stop() })
}

func TestStepFunc(t *testing.T) {
	p, clock, _ := newTestProvider(t, Config{})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = p.StepFunc(ctx, "render", func(ctx context.Context) error {
		clock.AdvanceMilliseconds(3)
		return p.StepFunc(ctx, "template", func(context.Context) error {
			clock.AdvanceMilliseconds(2)
			return errBoom
		})
	})
	require.ErrorIs(t, err, errBoom)

	prof, err := p.Stop(ctx)
	require.NoError(t, err)
	render := prof.Root.Children[0]
	assert.InDelta(t, 5.0, render.DurationMilliseconds, 1e-9)
	require.Len(t, render.Children, 1)
	assert.InDelta(t, 2.0, render.Children[0].DurationMilliseconds, 1e-9)
}

func TestCustomTimingHandle(t *testing.T) {
	p, clock, _ := newTestProvider(t, Config{StackSnippetDepth: 4})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)

	clock.AdvanceMilliseconds(1)
	h := p.StartCustomTiming(ctx, "redis", "GET", "GET user:1")
	clock.AdvanceMilliseconds(2)
	h.MarkFirstFetch()
	clock.AdvanceMilliseconds(3)
	h.Fail()
	h.Stop()
	clock.AdvanceMilliseconds(10)
	h.Stop()

	err = p.CustomTimingFunc(ctx, "redis", "SET", "SET user:1", func(context.Context) error {
		clock.AdvanceMilliseconds(1)
		return nil
	})
	require.NoError(t, err)

	prof, err := p.Stop(ctx)
	require.NoError(t, err)
	timings := prof.Root.CustomTimings["redis"]
	require.Len(t, timings, 2)

	get := timings[0]
	assert.InDelta(t, 1.0, get.StartMilliseconds, 1e-9)
	assert.InDelta(t, 5.0, get.DurationMilliseconds, 1e-9)
	assert.InDelta(t, 2.0, get.FirstFetchDurationMilliseconds, 1e-9)
	assert.True(t, get.Errored)
	assert.Contains(t, get.StackTraceSnippet, "TestCustomTimingHandle")

	set := timings[1]
	assert.False(t, set.Errored)
	assert.InDelta(t, 1.0, set.DurationMilliseconds, 1e-9)
}

func TestRecordCustomTiming(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	var recorder CustomTimingRecorder = p

	recorder.RecordCustomTiming(context.Background(), "sql", profile.CustomTiming{})

	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)
	step := p.Step(ctx, "s")
	recorder.RecordCustomTiming(ctx, "sql", profile.CustomTiming{
		CommandString:        "SELECT 1",
		StartMilliseconds:    0.5,
		DurationMilliseconds: 0.25,
	})
	require.NoError(t, step.Stop())

	prof, err := p.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, prof.Root.Children[0].CustomTimings["sql"], 1)
	assert.Equal(t, 1, prof.CustomTimingCount())
}

func TestFork(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := range workers {
		fctx, step := p.Fork(ctx, "worker")
		require.NotNil(t, step)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer step.Stop()
			inner := p.Step(fctx, "work")
			p.AddCustomTiming(fctx, "http", "GET", "/item/"+string(rune('a'+i)), time.Millisecond)
			_ = inner.Stop()
		}()
	}
	wg.Wait()

	prof, err := p.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, prof.Root.Children, workers)
	for _, c := range prof.Root.Children {
		assert.True(t, strings.HasPrefix(c.Name, registry.ForkPrefix))
		assert.False(t, c.IsOpen())
		require.Len(t, c.Children, 1)
		assert.Len(t, c.Children[0].CustomTimings["http"], 1)
	}
}

func TestWithContextID(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	ctx := WithContextID(context.Background(), "req-42")
	ctx, err := p.Start(ctx, "a")
	require.NoError(t, err)

	s, ok := p.Registry().Current("req-42")
	require.True(t, ok)
	cur, ok := p.Current(ctx)
	require.True(t, ok)
	assert.Same(t, s, cur)
}

func TestMetrics(t *testing.T) {
	p, _, _ := newTestProvider(t, Config{})
	for range 3 {
		ctx, err := p.Start(context.Background(), "a")
		require.NoError(t, err)
		p.Step(ctx, "open")
		_, _ = p.Stop(ctx)
	}
	_, err := p.Start(context.Background(), "running")
	require.NoError(t, err)

	got := metrics.Summary{}
	for _, m := range p.Metrics() {
		got[m.ID] = m.Value
	}
	assert.Equal(t, metrics.Summary{
		metrics.IDProfilesStarted:    4,
		metrics.IDProfilesStopped:    3,
		metrics.IDProfilesUnbalanced: 3,
		metrics.IDActiveSessions:     1,
	}, got)

	for _, m := range p.Metrics() {
		if m.ID != metrics.IDActiveSessions {
			assert.Zero(t, m.Value)
		}
	}
}

func TestStorageSink(t *testing.T) {
	store, err := memstore.New(0)
	require.NoError(t, err)
	p := New(Config{Sink: StorageSink(store, time.Second)})

	ctx, err := p.Start(context.Background(), "a")
	require.NoError(t, err)
	prof, err := p.Stop(ctx)
	require.NoError(t, err)

	got, err := store.Load(context.Background(), prof.ID)
	require.NoError(t, err)
	assert.Same(t, prof, got)

	_, err = store.Load(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}
