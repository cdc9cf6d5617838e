// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package agentmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/request-profiler/metrics"
)

func TestTimeDelta(t *testing.T) {
	tests := map[string]struct {
		now   unix.Timeval
		prev  unix.Timeval
		delta int64
	}{
		"1000ms":          {now: unix.Timeval{Sec: 1}, delta: 1000},
		"1ms":             {now: unix.Timeval{Usec: 1000}, delta: 1},
		"delta too small": {now: unix.Timeval{Usec: 500}, delta: 0},
		"998 ms": {
			now:   unix.Timeval{Sec: 1, Usec: 1000},
			prev:  unix.Timeval{Usec: 3000},
			delta: 998,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.delta, timeDelta(tc.now, tc.prev))
		})
	}
}

func TestCollect(t *testing.T) {
	var r rusageTimes
	m, err := r.collect()
	require.NoError(t, err)
	require.Len(t, m, 4)
	assert.Equal(t, metrics.MetricID(metrics.IDAgentGoRoutines), m[0].ID)
	assert.Positive(t, m[0].Value)
	assert.Positive(t, m[1].Value)
}
