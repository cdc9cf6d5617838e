// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profile // import "go.opentelemetry.io/request-profiler/profile"

import (
	"github.com/google/uuid"
)

// Timing is one named step of a profile. Children are kept in the order in
// which they were started. Custom timings are grouped by call type, each
// group in the order in which the timings were recorded.
type Timing struct {
	ID                   uuid.UUID                  `json:"Id"`
	Name                 string                     `json:"Name"`
	StartMilliseconds    float64                    `json:"StartMilliseconds"`
	DurationMilliseconds float64                    `json:"DurationMilliseconds"`
	Children             []*Timing                  `json:"Children"`
	CustomTimings        map[string][]*CustomTiming `json:"CustomTimings,omitempty"`

	parent *Timing
	depth  int
	open   bool
}

func newTiming(name string, startMs float64, parent *Timing) *Timing {
	t := &Timing{
		ID:                uuid.New(),
		Name:              name,
		StartMilliseconds: startMs,
		parent:            parent,
		open:              true,
	}
	if parent != nil {
		t.depth = parent.depth + 1
	}
	return t
}

// AddChild starts a new open step below t.
func (t *Timing) AddChild(name string, startMs float64) *Timing {
	child := newTiming(name, startMs, t)
	t.Children = append(t.Children, child)
	return child
}

// Close fixes the duration of t. Only the first call has an effect, later
// calls report false.
func (t *Timing) Close(durationMs float64) bool {
	if !t.open {
		return false
	}
	if durationMs < 0 {
		durationMs = 0
	}
	t.DurationMilliseconds = durationMs
	t.open = false
	return true
}

// AddCustomTiming attaches ct to t under callType.
func (t *Timing) AddCustomTiming(callType string, ct *CustomTiming) {
	if t.CustomTimings == nil {
		t.CustomTimings = make(map[string][]*CustomTiming, 1)
	}
	ct.parent = t
	t.CustomTimings[callType] = append(t.CustomTimings[callType], ct)
}

// Parent returns the enclosing step, or nil for the root.
func (t *Timing) Parent() *Timing { return t.parent }

// Depth returns the distance from the root, which has depth 0.
func (t *Timing) Depth() int { return t.depth }

// IsOpen reports whether the step has not been closed yet.
func (t *Timing) IsOpen() bool { return t.open }

func (t *Timing) IsRoot() bool { return t.parent == nil }

func (t *Timing) HasChildren() bool { return len(t.Children) > 0 }

func (t *Timing) HasCustomTimings() bool { return len(t.CustomTimings) > 0 }

// FinishMilliseconds returns the offset at which the step ended.
func (t *Timing) FinishMilliseconds() float64 {
	return t.StartMilliseconds + t.DurationMilliseconds
}

// DurationOfChildrenMilliseconds sums the durations of the direct children.
func (t *Timing) DurationOfChildrenMilliseconds() float64 {
	sum := 0.0
	for _, c := range t.Children {
		sum += c.DurationMilliseconds
	}
	return sum
}

// DurationWithoutChildrenMilliseconds returns the self time of t. It is not
// clamped, so together with DurationOfChildrenMilliseconds it always adds up
// to the duration of t.
func (t *Timing) DurationWithoutChildrenMilliseconds() float64 {
	return t.DurationMilliseconds - t.DurationOfChildrenMilliseconds()
}

// Walk visits t and its descendants in pre-order. When fn returns false the
// descendants of the visited step are skipped.
func (t *Timing) Walk(fn func(*Timing) bool) {
	if !fn(t) {
		return
	}
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// link restores the unexported tree fields after decoding.
func (t *Timing) link(parent *Timing, depth int) {
	t.parent = parent
	t.depth = depth
	t.open = false
	for _, cts := range t.CustomTimings {
		for _, ct := range cts {
			ct.parent = t
		}
	}
	for _, c := range t.Children {
		c.link(t, depth+1)
	}
}

// CustomTiming records one completed external call, e.g. a SQL statement.
type CustomTiming struct {
	ExecuteType          string  `json:"ExecuteType,omitempty"`
	CommandString        string  `json:"CommandString"`
	StartMilliseconds    float64 `json:"StartMilliseconds"`
	DurationMilliseconds float64 `json:"DurationMilliseconds"`
	StackTraceSnippet    string  `json:"StackTraceSnippet"`
	Errored              bool    `json:"Errored,omitempty"`

	// FirstFetchDurationMilliseconds is the latency until the first result
	// was available. Zero means unknown.
	FirstFetchDurationMilliseconds float64 `json:"FirstFetchDurationMilliseconds,omitempty"`

	parent *Timing
}

// Parent returns the step the custom timing was recorded against.
func (ct *CustomTiming) Parent() *Timing { return ct.parent }

// FinishMilliseconds returns the offset at which the call ended.
func (ct *CustomTiming) FinishMilliseconds() float64 {
	return ct.StartMilliseconds + ct.DurationMilliseconds
}
