// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reporter // import "go.opentelemetry.io/request-profiler/reporter"

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// fifoRingBuffer is a first-in-first-out ring buffer that is safe for
// concurrent access. When full, appending overwrites the oldest element.
type fifoRingBuffer[T any] struct {
	mu sync.Mutex

	data []T
	name string

	// readPos is the position of the oldest element.
	readPos uint32
	// writePos is the position the next element is stored at.
	writePos uint32
	count    uint32

	// appended and overwritten count since the last call to counters.
	appended    uint32
	overwritten uint32
}

func newFifo[T any](size uint32, name string) (*fifoRingBuffer[T], error) {
	if size == 0 {
		return nil, fmt.Errorf("unsupported size of fifo: %d", size)
	}
	return &fifoRingBuffer[T]{data: make([]T, size), name: name}, nil
}

func (q *fifoRingBuffer[T]) size() uint32 {
	return uint32(len(q.data))
}

// Append adds v, overwriting the oldest element if there is no space left.
// It returns true if an element was overwritten.
func (q *fifoRingBuffer[T]) Append(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.data[q.writePos] = v
	q.writePos = (q.writePos + 1) % q.size()
	q.appended++

	if q.count < q.size() {
		q.count++
		if q.count == q.size() {
			log.Warnf("About to start overwriting elements in buffer for %s", q.name)
		}
		return false
	}
	q.overwritten++
	q.readPos = q.writePos
	return true
}

// ReadAll removes and returns all elements, oldest first.
func (q *fifoRingBuffer[T]) ReadAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	data := make([]T, q.count)
	for i := range q.count {
		pos := (q.readPos + i) % q.size()
		data[i] = q.data[pos]
		// Allow for element to be GCed
		q.data[pos] = zero
	}
	q.readPos = q.writePos
	q.count = 0
	return data
}

// Len returns the number of queued elements.
func (q *fifoRingBuffer[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.count)
}

// counters returns and resets the number of appended and overwritten elements.
func (q *fifoRingBuffer[T]) counters() (appended, overwritten uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	appended, overwritten = q.appended, q.overwritten
	q.appended, q.overwritten = 0, 0
	return appended, overwritten
}
