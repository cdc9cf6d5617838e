// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/profiler"
	"go.opentelemetry.io/request-profiler/times"
)

const (
	demoOrderQuery = "SELECT * FROM orders WHERE customer_id = @id"
	demoUserQuery  = "SELECT name, email FROM users WHERE id = @id"
)

func newDemoClock() *times.ManualClock {
	return times.NewManualClock(time.Now())
}

// recordDemo records a synthetic request with a repeated query, a forked
// step and a trivial step. Time only passes when clock is advanced, so
// every recording has the same shape.
func recordDemo(ctx context.Context, p *profiler.Provider, clock *times.ManualClock,
	name string) (*profile.Profile, error) {
	ctx, err := p.Start(ctx, name)
	if err != nil {
		return nil, err
	}
	stopped := false
	defer func() {
		if !stopped {
			_ = p.StopDiscard(ctx)
		}
	}()
	sql := func(ctx context.Context, executeType, command string, ms float64) {
		h := p.StartCustomTiming(ctx, "sql", executeType, command)
		clock.AdvanceMilliseconds(ms / 4)
		h.MarkFirstFetch()
		clock.AdvanceMilliseconds(ms - ms/4)
		h.Stop()
	}

	clock.AdvanceMilliseconds(3)
	err = p.StepFunc(ctx, "load orders", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.AdvanceMilliseconds(1.5)
		sql(ctx, "Reader", demoOrderQuery, 12)
		clock.AdvanceMilliseconds(0.5)
		sql(ctx, "Reader", demoOrderQuery, 11)
		return nil
	})
	if err != nil {
		return nil, err
	}

	forkCtx, fork := p.Fork(ctx, "render sidebar")
	clock.AdvanceMilliseconds(2)
	sql(forkCtx, "Scalar", demoUserQuery, 4)
	if err = fork.Stop(); err != nil {
		return nil, err
	}

	clock.AdvanceMilliseconds(9)
	h := p.StartCustomTiming(ctx, "http", "GET", "https://inventory.internal/v1/stock")
	clock.AdvanceMilliseconds(18)
	h.Stop()

	step := p.StepLevel(ctx, "format response", profile.Verbose)
	clock.AdvanceMilliseconds(0.25)
	if err = step.Stop(); err != nil {
		return nil, err
	}
	clock.AdvanceMilliseconds(6)

	prof, err := p.Stop(ctx)
	stopped = true
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, fmt.Errorf("profile %q was discarded", name)
	}
	return prof, nil
}
