// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reporter // import "go.opentelemetry.io/request-profiler/reporter"

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/request-profiler/libpf"
)

// runLoop calls run periodically until it is stopped.
type runLoop struct {
	// stopSignal is the stop signal for shutting down all background tasks.
	stopSignal chan libpf.Void
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func newRunLoop() *runLoop {
	return &runLoop{stopSignal: make(chan libpf.Void)}
}

func (rl *runLoop) Start(ctx context.Context, interval time.Duration, jitter float64,
	run func(ctx context.Context)) {
	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		tick := time.NewTicker(libpf.AddJitter(interval, jitter))
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-rl.stopSignal:
				return
			case <-tick.C:
				run(ctx)
				tick.Reset(libpf.AddJitter(interval, jitter))
			}
		}
	}()
}

// Stop ends the loop and waits for a running call of run to return.
func (rl *runLoop) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopSignal) })
	rl.wg.Wait()
}
