// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sourcemetrics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/request-profiler/metrics"
)

type countingSource struct {
	calls atomic.Int32
	out   []metrics.Metric
}

func (s *countingSource) Metrics() []metrics.Metric {
	s.calls.Add(1)
	return s.out
}

func TestStartCollectsPeriodicallyAndOnStop(t *testing.T) {
	a := &countingSource{out: []metrics.Metric{{ID: metrics.IDCacheHit, Value: 1}}}
	b := &countingSource{out: []metrics.Metric{{ID: metrics.IDCacheHit, Value: 2}}}

	stop := Start(context.Background(), 10*time.Millisecond, a, b)
	assert.Eventually(t, func() bool {
		return a.calls.Load() >= 2 && b.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	stop()
	before := a.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, a.calls.Load(), "no collection after stop")
}
