// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile contains the data model of a recorded request profile: a
// tree of timed steps with custom timings attached to individual steps.
package profile // import "go.opentelemetry.io/request-profiler/profile"

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/request-profiler/libpf"
)

// Level controls how much detail a profile records.
type Level int

const (
	// Info records the steps an application always wants to see.
	Info Level = iota
	// Verbose additionally records fine grained steps.
	Verbose
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Verbose:
		return "verbose"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel converts the textual representation of a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return Info, nil
	case "verbose":
		return Verbose, nil
	}
	return Info, fmt.Errorf("unknown profile level %q", s)
}

// Profile is the timing tree of one unit of work plus its metadata.
// A profile is mutated only by the session that records it and must be
// treated as read-only once it has been finalized.
type Profile struct {
	ID          uuid.UUID `json:"Id"`
	Name        string    `json:"Name"`
	Started     time.Time `json:"Started"`
	MachineName string    `json:"MachineName"`
	User        string    `json:"User,omitempty"`
	Level       Level     `json:"Level,omitempty"`

	// DurationMilliseconds is the duration of Root, set when the profile is finalized.
	DurationMilliseconds float64 `json:"DurationMilliseconds"`

	Root *Timing `json:"Root"`
}

// New creates a profile whose open root step carries rootName.
func New(id uuid.UUID, name, rootName string, started time.Time) *Profile {
	return &Profile{
		ID:      id,
		Name:    name,
		Started: started.UTC(),
		Root:    newTiming(rootName, 0, nil),
	}
}

// Finalize closes every step that is still open as of offset atMs and
// fixes the profile duration to the duration of the root step. It returns
// the number of steps it had to close.
func (p *Profile) Finalize(atMs float64) int {
	closed := 0
	p.Root.Walk(func(t *Timing) bool {
		if t.open {
			t.Close(atMs - t.StartMilliseconds)
			closed++
		}
		return true
	})
	p.DurationMilliseconds = p.Root.DurationMilliseconds
	return closed
}

// Timings returns the number of steps in the profile.
func (p *Profile) Timings() int {
	n := 0
	p.Root.Walk(func(*Timing) bool {
		n++
		return true
	})
	return n
}

// CustomTimingCount returns the number of custom timings in the profile.
func (p *Profile) CustomTimingCount() int {
	n := 0
	p.Root.Walk(func(t *Timing) bool {
		for _, cts := range t.CustomTimings {
			n += len(cts)
		}
		return true
	})
	return n
}

// PlainText renders the step tree as indented text, one step per line.
func (p *Profile) PlainText() string {
	var sb strings.Builder
	machine := p.MachineName
	if machine == "" {
		machine = "unknown"
	}
	fmt.Fprintf(&sb, "%s at %s\n", machine, p.Started.Format(time.RFC3339))

	p.Root.Walk(func(t *Timing) bool {
		if d := t.Depth(); d > 0 {
			sb.WriteString(strings.Repeat(">", d))
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s = %s", t.Name, FormatMilliseconds(t.DurationMilliseconds))

		for _, callType := range libpf.SortedKeys(t.CustomTimings) {
			cts := t.CustomTimings[callType]
			sum := 0.0
			for _, ct := range cts {
				sum += ct.DurationMilliseconds
			}
			plural := "s"
			if len(cts) == 1 {
				plural = ""
			}
			fmt.Fprintf(&sb, " (%s = %s in %d cmd%s)", callType,
				FormatMilliseconds(sum), len(cts), plural)
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

// FormatMilliseconds formats ms with the shortest exact representation.
func FormatMilliseconds(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64) + "ms"
}
