// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/storage/memstore"
	"go.opentelemetry.io/request-profiler/times"
)

var errUnavailable = errors.New("storage unavailable")

// flakyStore fails to save profiles whose name is "fail".
type flakyStore struct {
	storage.Storage
	mu    sync.Mutex
	saved []uuid.UUID
}

func (f *flakyStore) Save(ctx context.Context, p *profile.Profile) error {
	if p.Name == "fail" {
		return errUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p.ID)
	return nil
}

func (f *flakyStore) ids() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.saved...)
}

func newProfile(name string) *profile.Profile {
	p := profile.New(uuid.New(), name, name, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	p.Finalize(1)
	return p
}

func summarize(ms []metrics.Metric) metrics.Summary {
	s := metrics.Summary{}
	for _, m := range ms {
		s[m.ID] += m.Value
	}
	return s
}

func TestNew(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)

	_, err = New(Config{Jitter: 2}, &flakyStore{})
	require.Error(t, err)

	r, err := New(Config{}, &flakyStore{})
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultQueueSize), r.cfg.QueueSize)
	assert.Equal(t, times.DefaultFlushInterval, r.cfg.Intervals.FlushInterval())
}

func TestFlush(t *testing.T) {
	store := &flakyStore{}
	r, err := New(Config{QueueSize: 2}, store)
	require.NoError(t, err)

	first, second, third := newProfile("a"), newProfile("fail"), newProfile("c")
	r.Report(first)
	r.Report(second)
	r.Report(third)
	assert.Equal(t, 2, r.Queued())

	err = r.Flush(context.Background())
	require.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, []uuid.UUID{third.ID}, store.ids())
	assert.Zero(t, r.Queued())

	assert.Equal(t, metrics.Summary{
		metrics.IDReporterQueued:     3,
		metrics.IDReporterOverwrites: 1,
		metrics.IDStorageSaveSuccess: 1,
		metrics.IDStorageSaveFailure: 1,
	}, summarize(r.Metrics()))

	require.NoError(t, r.Flush(context.Background()))
}

func TestBackgroundLoop(t *testing.T) {
	store, err := memstore.New(0)
	require.NoError(t, err)
	r, err := New(Config{Intervals: times.New(10*time.Millisecond, time.Second)}, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	p := newProfile("a")
	r.Report(p)
	require.Eventually(t, func() bool {
		_, err := store.Load(ctx, p.ID)
		return err == nil
	}, 5*time.Second, 5*time.Millisecond)

	late := newProfile("late")
	r.Stop()
	r.Report(late)
	r.Stop()
	_, err = store.Load(ctx, late.ID)
	require.NoError(t, err)
}

func TestStopFlushes(t *testing.T) {
	store := &flakyStore{}
	r, err := New(Config{Intervals: times.New(time.Hour, time.Second)}, store)
	require.NoError(t, err)
	r.Start(context.Background())

	p := newProfile("a")
	r.Report(p)
	r.Stop()
	assert.Equal(t, []uuid.UUID{p.ID}, store.ids())
}
