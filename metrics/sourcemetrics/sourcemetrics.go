// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sourcemetrics periodically collects the counters of the profiler
// components and forwards them to the metrics package.
package sourcemetrics // import "go.opentelemetry.io/request-profiler/metrics/sourcemetrics"

import (
	"context"
	"time"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/periodiccaller"
)

// collect retrieves the metrics of all sources and forwards them in one batch.
// Values reported by several sources for the same ID are summed.
func collect(sources []metrics.Source) {
	summary := metrics.Summary{}
	for _, src := range sources {
		for _, m := range src.Metrics() {
			summary[m.ID] += m.Value
		}
	}
	metrics.AddSlice(summary.Metrics())
}

// Start starts the collection of sources every interval. The returned
// function stops it after a final collection.
func Start(mainCtx context.Context, interval time.Duration, sources ...metrics.Source) func() {
	ctx, cancel := context.WithCancel(mainCtx)
	stopReporting := periodiccaller.Start(ctx, interval, func() {
		collect(sources)
	})

	return func() {
		cancel()
		stopReporting()
		collect(sources)
	}
}
