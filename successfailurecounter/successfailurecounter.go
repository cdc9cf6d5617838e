// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// successfailurecounter counts the outcome of operations, such as storage
// saves, into a pair of success and failure counters that are exported as
// metrics.
//
// A single SuccessFailureCounter is **not** thread safe and must be used by
// the goroutine performing the operation. The Pair it reports into is.
package successfailurecounter // import "go.opentelemetry.io/request-profiler/successfailurecounter"

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/metrics"
)

// Pair holds the success and failure counts of one kind of operation.
type Pair struct {
	successID, failureID metrics.MetricID
	success, failure     atomic.Uint64
}

// NewPair returns a Pair whose counts are exported under the given ids.
func NewPair(successID, failureID metrics.MetricID) *Pair {
	return &Pair{successID: successID, failureID: failureID}
}

// Begin returns a counter for one operation named op.
func (p *Pair) Begin(op string) SuccessFailureCounter {
	return SuccessFailureCounter{pair: p, op: op}
}

// Counts returns the counts accumulated since the last call to Metrics.
func (p *Pair) Counts() (success, failure uint64) {
	return p.success.Load(), p.failure.Load()
}

// Metrics returns and resets the accumulated counts.
func (p *Pair) Metrics() []metrics.Metric {
	return []metrics.Metric{
		{ID: p.successID, Value: metrics.MetricValue(p.success.Swap(0))},
		{ID: p.failureID, Value: metrics.MetricValue(p.failure.Swap(0))},
	}
}

// SuccessFailureCounter increments the success or the failure counter of
// its Pair exactly once.
type SuccessFailureCounter struct {
	pair   *Pair
	op     string
	sealed bool
}

// ReportSuccess increments the success counter or logs an error otherwise.
func (sfc *SuccessFailureCounter) ReportSuccess() {
	if sfc.sealed {
		log.Errorf("Attempted to report success/failure status of %s more than once.", sfc.op)
		return
	}
	sfc.pair.success.Add(1)
	sfc.sealed = true
}

// ReportFailure increments the failure counter or logs an error otherwise.
func (sfc *SuccessFailureCounter) ReportFailure() {
	if sfc.sealed {
		log.Errorf("Attempted to report failure/success status of %s more than once.", sfc.op)
		return
	}
	sfc.pair.failure.Add(1)
	sfc.sealed = true
}

// DefaultToSuccess increments the success counter if no counter was updated before.
func (sfc *SuccessFailureCounter) DefaultToSuccess() {
	if !sfc.sealed {
		sfc.pair.success.Add(1)
		sfc.sealed = true
	}
}

// DefaultToFailure increments the failure counter if no counter was updated before.
func (sfc *SuccessFailureCounter) DefaultToFailure() {
	if !sfc.sealed {
		log.Debugf("%s ended without reporting its outcome", sfc.op)
		sfc.pair.failure.Add(1)
		sfc.sealed = true
	}
}
