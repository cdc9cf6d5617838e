// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// rprof records, stores and inspects request profiles.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/request-profiler/internal/controller"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	os.Exit(int(mainWithExitCode(os.Args[1:], os.Stdin, os.Stdout)))
}

func mainWithExitCode(argv []string, in io.Reader, out io.Writer) exitCode {
	ctx, cancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM)
	defer cancel()

	a := &app{in: in, out: out}
	defer a.close()

	root := newRootCmd(a)
	if err := root.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if a.args.verboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		a.args.dump()
	}

	err := root.Run(ctx)
	var exitErr controller.ErrorWithExitCode
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, flag.ErrHelp):
		root.FlagSet.Usage()
		return exitParseError
	case errors.Is(err, errMissingArgument):
		return parseError("%v", err)
	case errors.As(err, &exitErr):
		log.Error(exitErr)
		return exitCode(exitErr.Code())
	}
	return failure("%v", err)
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
