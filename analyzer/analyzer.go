// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package analyzer derives the statistics a profile is rendered with: self
// durations, per call type totals, duplicate calls and the attribution of
// the time between custom timings to the steps that were running.
package analyzer // import "go.opentelemetry.io/request-profiler/analyzer"

import (
	"cmp"
	"slices"

	"go.opentelemetry.io/request-profiler/libpf"
	"go.opentelemetry.io/request-profiler/profile"
)

// Stat aggregates the custom timings of one call type.
type Stat struct {
	// Count excludes custom timings of ignored types.
	Count                int
	DurationMilliseconds float64
}

func (s *Stat) add(o Stat) {
	s.Count += o.Count
	s.DurationMilliseconds += o.DurationMilliseconds
}

// Node is the analysis of one step.
type Node struct {
	Timing   *profile.Timing
	Parent   *Node
	Children []*Node
	Depth    int

	DurationWithoutChildrenMilliseconds float64
	DurationOfChildrenMilliseconds      float64
	IsTrivial                           bool

	CustomTimings             map[string][]*CustomTimingInfo
	CustomTimingStats         map[string]Stat
	HasDuplicateCustomTimings map[string]bool
	HasWarnings               map[string]bool
	// DuplicateCount is the number of custom timings flagged as duplicates.
	DuplicateCount int

	free []Interval
}

// Name returns the name of the step.
func (n *Node) Name() string { return n.Timing.Name }

// FreeIntervals returns the time ranges in which the step itself was
// running: its span without the spans of its children and of the custom
// timings recorded on it or below it.
func (n *Node) FreeIntervals() []Interval { return n.free }

// CustomTimingInfo is the analysis of one custom timing.
type CustomTimingInfo struct {
	*profile.CustomTiming
	CallType    string
	Node        *Node
	IsDuplicate bool
	IsTrivial   bool
	// PrevGap is the time since the previous custom timing ended.
	PrevGap *Gap
	// NextGap is only set for the last custom timing of the profile.
	NextGap *Gap
}

// Interval returns the time range of the custom timing.
func (ci *CustomTimingInfo) Interval() Interval {
	return Interval{Start: ci.StartMilliseconds, Finish: ci.FinishMilliseconds()}
}

// Reason names the step that accounts for most of a gap.
type Reason struct {
	Name                 string
	DurationMilliseconds float64
}

// Gap is a time range not covered by any custom timing.
type Gap struct {
	Interval
	Reason Reason
	// IsTrivial is set for gaps whose reason is too short to matter.
	IsTrivial bool
	// IsVisible is cleared for gaps not worth showing at all.
	IsVisible bool
}

// Result is the render-ready analysis of a profile.
type Result struct {
	Profile *profile.Profile
	Root    *Node
	// Nodes lists all nodes in pre-order.
	Nodes []*Node

	CustomTimingStats map[string]Stat
	// CallTypes lists the call types present in the profile, sorted.
	CallTypes []string
	// AllCustomTimings lists all custom timings ordered by start time.
	AllCustomTimings []*CustomTimingInfo
	// Gaps lists the gaps between custom timings in time order. A profile
	// without custom timings has a single gap spanning the whole request.
	Gaps []*Gap

	HasTrivialTimings         bool
	HasCustomTimings          bool
	HasDuplicateCustomTimings bool
	HasWarning                bool
}

// Analyze computes the derived statistics of the finalized profile p. The
// profile is not modified and can be analyzed any number of times.
func Analyze(p *profile.Profile, cfg Config) *Result {
	r := &Result{
		Profile:           p,
		CustomTimingStats: make(map[string]Stat),
	}
	if p.Root == nil {
		return r
	}
	a := analysis{cfg: cfg, result: r}
	r.Root = a.visit(p.Root, nil, 0)
	r.CallTypes = libpf.SortedKeys(r.CustomTimingStats)

	a.computeFreeIntervals(r.Root)
	a.computeGaps()
	return r
}

type analysis struct {
	cfg    Config
	result *Result
}

// visit performs the depth-first duration decomposition and the custom
// timing aggregation of t and its descendants.
func (a *analysis) visit(t *profile.Timing, parent *Node, depth int) *Node {
	r := a.result
	n := &Node{
		Timing:                              t,
		Parent:                              parent,
		Depth:                               depth,
		DurationWithoutChildrenMilliseconds: t.DurationMilliseconds,
		CustomTimings:                       make(map[string][]*CustomTimingInfo),
		CustomTimingStats:                   make(map[string]Stat),
		HasDuplicateCustomTimings:           make(map[string]bool),
		HasWarnings:                         make(map[string]bool),
	}
	r.Nodes = append(r.Nodes, n)

	n.Children = make([]*Node, 0, len(t.Children))
	for _, c := range t.Children {
		n.Children = append(n.Children, a.visit(c, n, depth+1))
		n.DurationWithoutChildrenMilliseconds -= c.DurationMilliseconds
		n.DurationOfChildrenMilliseconds += c.DurationMilliseconds
	}
	if n.DurationWithoutChildrenMilliseconds < a.cfg.TrivialMilliseconds {
		n.IsTrivial = true
		r.HasTrivialTimings = true
	}

	// Custom timings come after the children so that AllCustomTimings is
	// collected in post-order before it is sorted by start.
	for _, callType := range libpf.SortedKeys(t.CustomTimings) {
		a.aggregate(n, callType, t.CustomTimings[callType])
	}
	return n
}

// aggregate computes the statistics of the custom timings of one call type
// recorded on n and flags repeated commands.
func (a *analysis) aggregate(n *Node, callType string, cts []*profile.CustomTiming) {
	r := a.result
	r.HasCustomTimings = true

	var stat Stat
	seen := make(libpf.Set[string], len(cts))
	infos := make([]*CustomTimingInfo, 0, len(cts))
	for _, ct := range cts {
		info := &CustomTimingInfo{
			CustomTiming: ct,
			CallType:     callType,
			Node:         n,
			IsTrivial:    ct.DurationMilliseconds < a.cfg.TrivialMilliseconds,
		}
		infos = append(infos, info)
		r.AllCustomTimings = append(r.AllCustomTimings, info)

		stat.DurationMilliseconds += ct.DurationMilliseconds
		ignored := a.cfg.ignored(callType, ct)
		if !ignored {
			stat.Count++
		}
		if ct.Errored {
			n.HasWarnings[callType] = true
			r.HasWarning = true
		}

		if _, dup := seen[ct.CommandString]; ct.CommandString != "" && dup {
			info.IsDuplicate = true
			n.DuplicateCount++
			n.HasDuplicateCustomTimings[callType] = true
			r.HasDuplicateCustomTimings = true
		} else if !ignored {
			seen[ct.CommandString] = libpf.Void{}
		}
	}
	n.CustomTimings[callType] = infos
	n.CustomTimingStats[callType] = stat

	total := r.CustomTimingStats[callType]
	total.add(stat)
	r.CustomTimingStats[callType] = total
}

// computeFreeIntervals sets the free intervals of n and its descendants. It
// returns the intervals of all custom timings recorded on n or below it.
func (a *analysis) computeFreeIntervals(n *Node) []Interval {
	var claimed []Interval
	for _, c := range n.Children {
		claimed = append(claimed, a.computeFreeIntervals(c)...)
	}
	for _, callType := range libpf.SortedKeys(n.CustomTimings) {
		for _, info := range n.CustomTimings[callType] {
			claimed = append(claimed, info.Interval())
		}
	}

	t := n.Timing
	n.free = []Interval{{Start: t.StartMilliseconds, Finish: t.FinishMilliseconds()}}
	if n.free[0].Empty() {
		n.free = nil
		return claimed
	}
	cuts := make([]Interval, 0, len(n.Children)+len(claimed))
	for _, c := range n.Children {
		cuts = append(cuts, Interval{
			Start:  c.Timing.StartMilliseconds,
			Finish: c.Timing.FinishMilliseconds(),
		})
	}
	cuts = append(cuts, claimed...)
	n.free = subtractAll(n.free, cuts)
	return claimed
}

// computeGaps orders all custom timings by start time and attributes the
// time between them.
func (a *analysis) computeGaps() {
	r := a.result
	slices.SortStableFunc(r.AllCustomTimings, func(x, y *CustomTimingInfo) int {
		return cmp.Compare(x.StartMilliseconds, y.StartMilliseconds)
	})

	var cursor float64
	for _, info := range r.AllCustomTimings {
		info.PrevGap = a.gap(cursor, info.StartMilliseconds)
		r.Gaps = append(r.Gaps, info.PrevGap)
		cursor = max(cursor, info.FinishMilliseconds())
	}

	last := a.gap(cursor, r.Root.Timing.DurationMilliseconds)
	if n := len(r.AllCustomTimings); n > 0 {
		r.AllCustomTimings[n-1].NextGap = last
	}
	r.Gaps = append(r.Gaps, last)
}

// gap builds the gap [start, finish]. A finish before start yields an
// empty gap at start.
func (a *analysis) gap(start, finish float64) *Gap {
	g := &Gap{Interval: Interval{Start: start, Finish: max(start, finish)}}
	g.Reason = reason(g.Interval, a.result.Root, nil)
	g.IsTrivial = g.Reason.DurationMilliseconds < a.cfg.TrivialGapMilliseconds
	g.IsVisible = g.Reason.DurationMilliseconds > visibleGapMilliseconds
	return g
}

// reason walks the tree in pre-order and returns the step whose free time
// overlaps gap the most. Steps sharing the name of the current match add
// their overlap to it.
func reason(gap Interval, n *Node, match *Reason) Reason {
	o := overlap(n.free, gap)
	switch {
	case match == nil || o > match.DurationMilliseconds:
		match = &Reason{Name: n.Name(), DurationMilliseconds: o}
	case match.Name == n.Name():
		match.DurationMilliseconds += o
	}
	for _, c := range n.Children {
		m := reason(gap, c, match)
		match = &m
	}
	return *match
}
