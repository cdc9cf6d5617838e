// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/analyzer"
	"go.opentelemetry.io/request-profiler/config"
	"go.opentelemetry.io/request-profiler/internal/controller"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/vc"
)

var errMissingArgument = errors.New("missing argument")

// app holds the state shared by all subcommands.
type app struct {
	args arguments
	in   io.Reader
	out  io.Writer

	cfg  config.Config
	ctlr *controller.Controller
}

// controller starts the controller on first use.
func (a *app) controller(ctx context.Context, opts ...controller.Option) (
	*controller.Controller, error) {
	if a.ctlr != nil {
		return a.ctlr, nil
	}
	cfg, err := a.args.loadConfig()
	if err != nil {
		return nil, controller.WithExitCode(err, int(exitParseError))
	}
	a.cfg = cfg
	ctlr := controller.New(&a.cfg, opts...)
	if err = ctlr.Start(ctx); err != nil {
		ctlr.Shutdown()
		return nil, err
	}
	a.ctlr = ctlr
	return ctlr, nil
}

// analyzerConfig returns the analyzer settings without starting the controller.
func (a *app) analyzerConfig() (analyzer.Config, error) {
	if a.ctlr != nil {
		return a.ctlr.AnalyzerConfig(), nil
	}
	cfg, err := a.args.loadConfig()
	if err != nil {
		return analyzer.Config{}, controller.WithExitCode(err, int(exitParseError))
	}
	return cfg.Analyzer, nil
}

func (a *app) load(ctx context.Context, arg string) (*profile.Profile, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	ctlr, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := ctlr.Storage().Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", id, err)
	}
	return p, nil
}

// close saves queued profiles and stops background tasks.
func (a *app) close() {
	if a.ctlr != nil {
		a.ctlr.Shutdown()
		a.ctlr = nil
	}
}

// parseID accepts a profile id or a results request body such as
// {"Id":"[...]"}.
func parseID(arg string) (uuid.UUID, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "{") {
		return profile.ParseResultsRequest([]byte(arg))
	}
	id, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(arg, "["), "]"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile id %q: %w", arg, err)
	}
	return id, nil
}

func newRootCmd(a *app) *ffcli.Command {
	return &ffcli.Command{
		Name:       "rprof",
		ShortUsage: "rprof [flags] <subcommand> [flags] [args]",
		ShortHelp:  "Tool for recording, inspecting and comparing request profiles",
		FlagSet:    newRootFlagSet(&a.args),
		Options:    []ff.Option{ff.WithEnvVarPrefix(envVarPrefix)},
		Subcommands: []*ffcli.Command{
			newListCmd(a),
			newShowCmd(a),
			newAnalyzeCmd(a),
			newDiffCmd(a),
			newDemoCmd(a),
			newVersionCmd(a),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

type listCmd struct {
	*app

	limit     int
	since     time.Duration
	ascending bool
}

func newListCmd(a *app) *ffcli.Command {
	args := &listCmd{app: a}

	set := flag.NewFlagSet("list", flag.ContinueOnError)
	set.IntVar(&args.limit, "n", defaultArgListLimit, "Maximum number of profiles to list (0 = all)")
	set.DurationVar(&args.since, "since", 0, "Only list profiles started within this duration")
	set.BoolVar(&args.ascending, "asc", false, "List the oldest profiles first")

	return &ffcli.Command{
		Name:       "list",
		Exec:       args.exec,
		ShortUsage: "list [flags]",
		ShortHelp:  "List stored profiles, most recent first",
		FlagSet:    set,
	}
}

func (cmd *listCmd) exec(ctx context.Context, _ []string) error {
	ctlr, err := cmd.controller(ctx)
	if err != nil {
		return err
	}
	f := storage.Filter{MaxResults: cmd.limit}
	if cmd.since > 0 {
		f.Start = time.Now().Add(-cmd.since)
	}
	if cmd.ascending {
		f.Order = storage.Ascending
	}
	summaries, err := ctlr.Storage().List(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	return writeSummaries(cmd.out, summaries, ctlr.AnalyzerConfig())
}

type showCmd struct {
	*app

	json        bool
	color       bool
	text        bool
	showTrivial bool
}

func newShowCmd(a *app) *ffcli.Command {
	args := &showCmd{app: a}

	set := flag.NewFlagSet("show", flag.ContinueOnError)
	set.BoolVar(&args.json, "json", false, "Print the profile in its JSON wire format")
	set.BoolVar(&args.color, "color", false, "Colorize JSON output")
	set.BoolVar(&args.text, "text", false, "Print the profile as plain text")
	set.BoolVar(&args.showTrivial, "trivial", false, "Include trivial steps and gaps")

	return &ffcli.Command{
		Name:       "show",
		Exec:       args.exec,
		ShortUsage: "show [flags] <id|results-request>",
		ShortHelp:  "Show a stored profile",
		FlagSet:    set,
	}
}

func (cmd *showCmd) exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one profile id", errMissingArgument)
	}
	if cmd.json && cmd.text {
		return errors.New("please specify only one of `-json` and `-text`")
	}
	p, err := cmd.load(ctx, args[0])
	if err != nil {
		return err
	}

	switch {
	case cmd.json:
		data, err := renderJSON(p, cmd.color)
		if err != nil {
			return err
		}
		_, err = cmd.out.Write(data)
		return err
	case cmd.text:
		_, err = io.WriteString(cmd.out, p.PlainText())
		return err
	}
	cfg := cmd.ctlr.AnalyzerConfig()
	return writeReport(cmd.out, analyzer.Analyze(p, cfg), cfg, cmd.showTrivial)
}

type analyzeCmd struct {
	*app

	trivial     float64
	ignored     string
	showTrivial bool
}

func newAnalyzeCmd(a *app) *ffcli.Command {
	args := &analyzeCmd{app: a}

	set := flag.NewFlagSet("analyze", flag.ContinueOnError)
	set.Float64Var(&args.trivial, "trivial-ms", -1,
		"Self duration in milliseconds below which steps are trivial")
	set.StringVar(&args.ignored, "ignore", "",
		"Call types and execute types excluded from duplicate detection (comma separated)")
	set.BoolVar(&args.showTrivial, "trivial", false, "Include trivial steps and gaps")

	return &ffcli.Command{
		Name:       "analyze",
		Exec:       args.exec,
		ShortUsage: "analyze [flags] <file|->",
		ShortHelp:  "Analyze a profile in JSON wire format",
		FlagSet:    set,
	}
}

func (cmd *analyzeCmd) exec(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected a file name or -", errMissingArgument)
	}
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.in)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := profile.Decode(data)
	if err != nil {
		return err
	}

	cfg, err := cmd.analyzerConfig()
	if err != nil {
		return err
	}
	if cmd.trivial >= 0 {
		cfg.TrivialMilliseconds = cmd.trivial
	}
	if cmd.ignored != "" {
		for _, t := range strings.Split(cmd.ignored, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.IgnoredDuplicateExecuteTypes = append(cfg.IgnoredDuplicateExecuteTypes, t)
			}
		}
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	return writeReport(cmd.out, analyzer.Analyze(p, cfg), cfg, cmd.showTrivial)
}

type diffCmd struct {
	*app
}

func newDiffCmd(a *app) *ffcli.Command {
	args := &diffCmd{app: a}
	return &ffcli.Command{
		Name:       "diff",
		Exec:       args.exec,
		ShortUsage: "diff <id> <id>",
		ShortHelp:  "Compare the plain text rendering of two stored profiles",
		FlagSet:    flag.NewFlagSet("diff", flag.ContinueOnError),
	}
}

func (cmd *diffCmd) exec(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: expected two profile ids", errMissingArgument)
	}
	a, err := cmd.load(ctx, args[0])
	if err != nil {
		return err
	}
	b, err := cmd.load(ctx, args[1])
	if err != nil {
		return err
	}
	diff := renderDiff(a, b)
	if diff == "" {
		log.Infof("Profiles %s and %s render identically", a.ID, b.ID)
		return nil
	}
	_, err = io.WriteString(cmd.out, diff)
	return err
}

type demoCmd struct {
	*app

	count int
	name  string
}

func newDemoCmd(a *app) *ffcli.Command {
	args := &demoCmd{app: a}

	set := flag.NewFlagSet("demo", flag.ContinueOnError)
	set.IntVar(&args.count, "n", defaultArgDemoCount, "Number of profiles to record")
	set.StringVar(&args.name, "name", "GET /demo/orders", "Name of the recorded profiles")

	return &ffcli.Command{
		Name:       "demo",
		Exec:       args.exec,
		ShortUsage: "demo [flags]",
		ShortHelp:  "Record and store synthetic request profiles",
		FlagSet:    set,
	}
}

func (cmd *demoCmd) exec(ctx context.Context, _ []string) error {
	if cmd.count < 1 {
		return fmt.Errorf("invalid number of profiles %d", cmd.count)
	}
	clock := newDemoClock()
	ctlr, err := cmd.controller(ctx, controller.WithClock(clock))
	if err != nil {
		return err
	}
	for range cmd.count {
		p, err := recordDemo(ctx, ctlr.Provider(), clock, cmd.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.out, p.ID)
	}
	return nil
}

type versionCmd struct {
	*app
}

func newVersionCmd(a *app) *ffcli.Command {
	args := &versionCmd{app: a}
	return &ffcli.Command{
		Name:       "version",
		Exec:       args.exec,
		ShortUsage: "version",
		ShortHelp:  "Show version",
		FlagSet:    flag.NewFlagSet("version", flag.ContinueOnError),
	}
}

func (cmd *versionCmd) exec(context.Context, []string) error {
	_, err := fmt.Fprintf(cmd.out, "%s (revision %s, build timestamp %s)\n",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())
	return err
}
