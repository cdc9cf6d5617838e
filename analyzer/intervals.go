// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package analyzer // import "go.opentelemetry.io/request-profiler/analyzer"

import (
	"cmp"
	"slices"
)

// Interval is the half open time range [Start, Finish) in milliseconds
// from the profile start.
type Interval struct {
	Start  float64
	Finish float64
}

// Duration returns the length of i, or 0 for empty intervals.
func (i Interval) Duration() float64 {
	return max(i.Finish-i.Start, 0)
}

// Empty reports whether i covers no time.
func (i Interval) Empty() bool {
	return i.Finish <= i.Start
}

// subtract removes cut from the sorted, disjoint intervals in free. The
// result is again sorted and disjoint and contains no empty intervals.
func subtract(free []Interval, cut Interval) []Interval {
	if cut.Empty() {
		return free
	}
	out := make([]Interval, 0, len(free)+1)
	for _, iv := range free {
		if cut.Finish <= iv.Start || cut.Start >= iv.Finish {
			out = append(out, iv)
			continue
		}
		if left := (Interval{Start: iv.Start, Finish: cut.Start}); !left.Empty() {
			out = append(out, left)
		}
		if right := (Interval{Start: cut.Finish, Finish: iv.Finish}); !right.Empty() {
			out = append(out, right)
		}
	}
	return out
}

// subtractAll removes every interval of cuts from free.
func subtractAll(free, cuts []Interval) []Interval {
	cuts = slices.Clone(cuts)
	slices.SortFunc(cuts, func(a, b Interval) int {
		return cmp.Compare(a.Start, b.Start)
	})
	for _, cut := range cuts {
		if len(free) == 0 {
			break
		}
		free = subtract(free, cut)
	}
	return free
}

// overlap returns how much of gap is covered by the sorted intervals in free.
func overlap(free []Interval, gap Interval) float64 {
	var total float64
	for _, iv := range free {
		if iv.Start >= gap.Finish {
			break
		}
		if iv.Finish <= gap.Start {
			continue
		}
		total += min(gap.Finish, iv.Finish) - max(gap.Start, iv.Start)
	}
	return total
}
