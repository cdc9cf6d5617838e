// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmetrics implements the fetching and reporting of process
// specific metrics: goroutines, heap usage and CPU time.
package agentmetrics // import "go.opentelemetry.io/request-profiler/metrics/agentmetrics"

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/periodiccaller"
)

// rusageTimes holds time values of a rusage call.
type rusageTimes struct {
	// utime represents the user time in usec.
	utime unix.Timeval
	// stime represents the system time in usec.
	stime unix.Timeval
}

// timeDelta calculates the difference between two time values
// and returns the difference in milliseconds.
func timeDelta(now, prev unix.Timeval) int64 {
	secDelta := (now.Sec - prev.Sec) * 1000
	usecDelta := (now.Usec - prev.Usec) / 1000
	return int64(secDelta) + int64(usecDelta)
}

// collect returns the current process metrics and remembers the CPU times
// for the next call.
func (r *rusageTimes) collect() ([]metrics.Metric, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		return nil, err
	}

	deltaStime := timeDelta(rusage.Stime, r.stime)
	deltaUtime := timeDelta(rusage.Utime, r.utime)
	r.stime = rusage.Stime
	r.utime = rusage.Utime

	return []metrics.Metric{
		{ID: metrics.IDAgentGoRoutines, Value: metrics.MetricValue(runtime.NumGoroutine())},
		{ID: metrics.IDAgentHeapAlloc, Value: metrics.MetricValue(stats.HeapAlloc)},
		{ID: metrics.IDAgentUTime, Value: metrics.MetricValue(deltaUtime)},
		{ID: metrics.IDAgentSTime, Value: metrics.MetricValue(deltaStime)},
	}, nil
}

// Start starts the process metric retrieval and reporting.
func Start(mainCtx context.Context, interval time.Duration) (func(), error) {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		log.Errorf("Failed to fetch Rusage: %v", err)
		return func() {}, err
	}

	prev := rusageTimes{
		utime: rusage.Utime,
		stime: rusage.Stime,
	}

	ctx, cancel := context.WithCancel(mainCtx)
	stopReporting := periodiccaller.Start(ctx, interval, func() {
		m, err := prev.collect()
		if err != nil {
			log.Errorf("Failed to fetch Rusage: %v", err)
			return
		}
		metrics.AddSlice(m)
	})

	return func() {
		cancel()
		stopReporting()
	}, nil
}
