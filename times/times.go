// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package times provides the clock used for all duration measurements and
// the intervals and timeouts used by the background components.
package times // import "go.opentelemetry.io/request-profiler/times"

import (
	"sync"
	"time"
)

const (
	// DefaultFlushInterval defines how often queued profiles are handed to storage.
	DefaultFlushInterval = 1 * time.Second
	// DefaultSaveTimeout defines the timeout for a single storage save operation.
	DefaultSaveTimeout = 5 * time.Second
	// DefaultStatsInterval defines how often cache and queue statistics are reported.
	DefaultStatsInterval = 1 * time.Minute
)

// Clock supplies the current time. Readings taken from the same Clock must be
// comparable with time.Time.Sub, so implementations should return times that
// carry a monotonic clock reading.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the Clock backed by time.Now.
var System Clock = systemClock{}

// Milliseconds converts d into fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromMilliseconds converts fractional milliseconds into a time.Duration.
func FromMilliseconds(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Stopwatch measures the time elapsed since it was started.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// StartStopwatch returns a Stopwatch started at the current time of clock.
func StartStopwatch(clock Clock) Stopwatch {
	return Stopwatch{clock: clock, start: clock.Now()}
}

// Started returns the time at which the stopwatch was started.
func (s Stopwatch) Started() time.Time { return s.start }

// Elapsed returns the time elapsed since the stopwatch was started.
func (s Stopwatch) Elapsed() time.Duration { return s.clock.Now().Sub(s.start) }

// ElapsedMilliseconds returns Elapsed in fractional milliseconds.
func (s Stopwatch) ElapsedMilliseconds() float64 { return Milliseconds(s.Elapsed()) }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// AdvanceMilliseconds moves the clock forward by ms milliseconds.
func (c *ManualClock) AdvanceMilliseconds(ms float64) {
	c.Advance(FromMilliseconds(ms))
}

// Compile time check for interface adherence
var _ IntervalsAndTimers = (*Times)(nil)

// Times hold all the intervals and timeouts that are used by the background
// components in a central place and comes with Getters to read them.
type Times struct {
	flushInterval time.Duration
	saveTimeout   time.Duration
	statsInterval time.Duration
}

// IntervalsAndTimers is a meta-interface that exists purely to document its functionality.
type IntervalsAndTimers interface {
	// FlushInterval defines the interval at which finished profiles are saved.
	FlushInterval() time.Duration
	// SaveTimeout defines the timeout for each storage save operation.
	SaveTimeout() time.Duration
	// StatsInterval defines the interval at which statistics are reported.
	StatsInterval() time.Duration
}

func (t *Times) FlushInterval() time.Duration { return t.flushInterval }

func (t *Times) SaveTimeout() time.Duration { return t.saveTimeout }

func (t *Times) StatsInterval() time.Duration { return t.statsInterval }

// New returns a new Times instance. Zero values select the defaults.
func New(flushInterval, saveTimeout time.Duration) *Times {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if saveTimeout <= 0 {
		saveTimeout = DefaultSaveTimeout
	}
	return &Times{
		flushInterval: flushInterval,
		saveTimeout:   saveTimeout,
		statsInterval: DefaultStatsInterval,
	}
}
