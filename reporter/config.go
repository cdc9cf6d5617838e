// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reporter // import "go.opentelemetry.io/request-profiler/reporter"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/request-profiler/times"
)

// DefaultQueueSize is the number of profiles buffered between two flushes.
const DefaultQueueSize = 1024

type Config struct {
	// QueueSize defines the number of profiles buffered until the next
	// flush. Older profiles are dropped when it is exceeded.
	QueueSize uint32
	// Intervals provides the flush interval and the timeout of each save.
	Intervals times.IntervalsAndTimers
	// Jitter defines the random variation of the flush interval, in [0..1].
	Jitter float64
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Intervals == nil {
		c.Intervals = times.New(0, 0)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter %v out of range [0..1]", c.Jitter)
	}
	if c.Intervals.FlushInterval() <= 0 {
		return errors.New("flush interval must be positive")
	}
	return nil
}
