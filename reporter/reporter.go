// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package reporter saves finished profiles to storage in the background so
// that stopping a profile never waits for persistence.
package reporter // import "go.opentelemetry.io/request-profiler/reporter"

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/profiler"
	"go.opentelemetry.io/request-profiler/storage"
	sfc "go.opentelemetry.io/request-profiler/successfailurecounter"
)

var (
	_ profiler.Sink  = (*Reporter)(nil)
	_ metrics.Source = (*Reporter)(nil)
)

// Reporter queues finished profiles and saves them periodically.
type Reporter struct {
	cfg   Config
	store storage.Storage

	queue *fifoRingBuffer[*profile.Profile]
	saves *sfc.Pair

	// flushMu serializes flushes of the run loop and explicit calls.
	flushMu sync.Mutex
	loop    *runLoop
}

// New returns a Reporter saving into store.
func New(cfg Config, store storage.Storage) (*Reporter, error) {
	if store == nil {
		return nil, errors.New("no storage configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	queue, err := newFifo[*profile.Profile](cfg.QueueSize, "profiles")
	if err != nil {
		return nil, err
	}
	return &Reporter{
		cfg:   cfg,
		store: store,
		queue: queue,
		saves: sfc.NewPair(metrics.IDStorageSaveSuccess, metrics.IDStorageSaveFailure),
		loop:  newRunLoop(),
	}, nil
}

// Report queues p for saving. It never blocks.
func (r *Reporter) Report(p *profile.Profile) {
	if r.queue.Append(p) {
		log.Debugf("Dropped oldest queued profile to make room for %s", p.ID)
	}
}

// Start saves queued profiles at the configured interval until ctx is
// done or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.loop.Start(ctx, r.cfg.Intervals.FlushInterval(), r.cfg.Jitter,
		func(ctx context.Context) {
			if err := r.Flush(ctx); err != nil {
				log.Errorf("Failed to save profiles: %v", err)
			}
		})
}

// Flush saves all queued profiles. Profiles that fail to save are dropped
// and the errors are returned together.
func (r *Reporter) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	var errs []error
	for _, p := range r.queue.ReadAll() {
		if err := r.save(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) save(ctx context.Context, p *profile.Profile) error {
	counter := r.saves.Begin("save " + p.ID.String())
	defer counter.DefaultToFailure()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Intervals.SaveTimeout())
	defer cancel()
	if err := r.store.Save(ctx, p); err != nil {
		return fmt.Errorf("profile %s: %w", p.ID, err)
	}
	counter.ReportSuccess()
	return nil
}

// Stop ends the background loop and saves what is still queued.
func (r *Reporter) Stop() {
	r.loop.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Intervals.SaveTimeout())
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		log.Errorf("Failed to save profiles on shutdown: %v", err)
	}
}

// Queued returns the number of profiles waiting to be saved.
func (r *Reporter) Queued() int {
	return r.queue.Len()
}

// Metrics returns and resets the counters of the reporter.
func (r *Reporter) Metrics() []metrics.Metric {
	appended, overwritten := r.queue.counters()
	return slices.Concat([]metrics.Metric{
		{ID: metrics.IDReporterQueued, Value: metrics.MetricValue(appended)},
		{ID: metrics.IDReporterOverwrites, Value: metrics.MetricValue(overwritten)},
	}, r.saves.Metrics())
}
