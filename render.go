// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/tidwall/pretty"

	"go.opentelemetry.io/request-profiler/analyzer"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

// maxCommandWidth truncates command strings in reports.
const maxCommandWidth = 72

func ms(cfg analyzer.Config, v float64) string {
	return profile.FormatMilliseconds(cfg.Round(v))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func writeSummaries(out io.Writer, summaries []storage.Summary, cfg analyzer.Config) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tMACHINE\tNAME")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID,
			s.Started.Local().Format(time.DateTime), ms(cfg, s.DurationMilliseconds),
			s.MachineName, s.Name)
	}
	return w.Flush()
}

// writeReport prints the step table followed by the custom timings and the
// gaps between them. Trivial steps and gaps are hidden unless showTrivial.
func writeReport(out io.Writer, res *analyzer.Result, cfg analyzer.Config,
	showTrivial bool) error {
	p := res.Profile
	fmt.Fprintf(out, "%s (%s)\n%s at %s, %s\n\n", p.Name, p.ID, p.MachineName,
		p.Started.Local().Format(time.DateTime), ms(cfg, p.DurationMilliseconds))
	if res.Root == nil {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "STEP\tDURATION\tWITH CHILDREN\tFROM START\t")
	for _, callType := range res.CallTypes {
		fmt.Fprintf(w, "%s\t", strings.ToUpper(callType))
	}
	fmt.Fprintln(w)
	for _, n := range res.Nodes {
		if n.IsTrivial && !showTrivial {
			continue
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t+%s\t", strings.Repeat("  ", n.Depth), n.Name(),
			ms(cfg, n.DurationWithoutChildrenMilliseconds),
			ms(cfg, n.Timing.DurationMilliseconds),
			ms(cfg, n.Timing.StartMilliseconds))
		for _, callType := range res.CallTypes {
			stat, ok := n.CustomTimingStats[callType]
			if !ok {
				fmt.Fprint(w, "\t")
				continue
			}
			mark := ""
			if n.HasDuplicateCustomTimings[callType] {
				mark = " !"
			}
			fmt.Fprintf(w, "%s (%d)%s\t", ms(cfg, stat.DurationMilliseconds), stat.Count, mark)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !res.HasCustomTimings {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FROM START\tDURATION\tTYPE\tSTEP\tCOMMAND")
	writeGap := func(g *analyzer.Gap) {
		if g == nil || !g.IsVisible || (g.IsTrivial && !showTrivial) {
			return
		}
		fmt.Fprintf(w, "+%s\t%s\tgap\t%s\t(%s in step)\n", ms(cfg, g.Start),
			ms(cfg, g.Duration()), g.Reason.Name, ms(cfg, g.Reason.DurationMilliseconds))
	}
	for _, ci := range res.AllCustomTimings {
		writeGap(ci.PrevGap)
		var flags []string
		if ci.IsDuplicate {
			flags = append(flags, "duplicate")
		}
		if ci.Errored {
			flags = append(flags, "errored")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ",") + "]"
		}
		callType := ci.CallType
		if ci.ExecuteType != "" {
			callType += " " + ci.ExecuteType
		}
		fmt.Fprintf(w, "+%s\t%s\t%s\t%s\t%s%s\n", ms(cfg, ci.StartMilliseconds),
			ms(cfg, ci.DurationMilliseconds), callType, ci.Node.Name(),
			truncate(ci.CommandString, maxCommandWidth), suffix)
		writeGap(ci.NextGap)
	}
	return w.Flush()
}

// renderJSON returns p in its JSON wire format, indented for reading.
func renderJSON(p *profile.Profile, color bool) ([]byte, error) {
	data, err := profile.Encode(p)
	if err != nil {
		return nil, err
	}
	data = pretty.Pretty(data)
	if color {
		data = pretty.Color(data, nil)
	}
	return data, nil
}

// renderDiff returns a unified diff of the plain text renderings of a and
// b, or "" if they are equal.
func renderDiff(a, b *profile.Profile) string {
	return udiff.Unified(a.ID.String(), b.ID.String(), a.PlainText(), b.PlainText())
}
