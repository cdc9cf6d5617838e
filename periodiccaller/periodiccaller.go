// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller allows periodic calls of functions.
package periodiccaller // import "go.opentelemetry.io/request-profiler/periodiccaller"

import (
	"context"
	"time"

	"go.opentelemetry.io/request-profiler/libpf"
)

// Start calls <callback> every <interval> until <ctx> is canceled or the
// returned function is called. The returned function blocks until a
// callback that is already running has returned.
func Start(ctx context.Context, interval time.Duration, callback func()) func() {
	return StartWithJitter(ctx, interval, 0, callback)
}

// StartWithJitter calls <callback> every <baseDuration+jitter> until <ctx> is
// canceled or the returned function is called. <jitter>, [0..1], is used to
// add +/- jitter to <baseDuration> at every iteration of the timer.
func StartWithJitter(ctx context.Context, baseDuration time.Duration, jitter float64,
	callback func()) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan libpf.Void)

	go func() {
		defer close(done)
		timer := time.NewTimer(libpf.AddJitter(baseDuration, jitter))
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				callback()
				timer.Reset(libpf.AddJitter(baseDuration, jitter))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
