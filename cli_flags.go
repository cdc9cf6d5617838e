// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/config"
)

const (
	// Default values for CLI flags
	defaultArgListLimit = 20
	defaultArgDemoCount = 1

	envVarPrefix = "REQUEST_PROFILER"
)

// Help strings for command line arguments
var (
	configFileHelp  = "Path of the YAML configuration file."
	verboseModeHelp = "Enable verbose logging."
	storageTypeHelp = fmt.Sprintf("Storage backend (%s, %s or %s). Overrides the configuration file.",
		config.StorageMemory, config.StorageFile, config.StorageS3)
	storageDirHelp = "Directory of the file storage. Overrides the configuration file."
	s3BucketHelp   = "Bucket of the S3 storage. Overrides the configuration file."
	s3PrefixHelp   = "Object key prefix of the S3 storage. Overrides the configuration file."
	s3RegionHelp   = "Region of the S3 storage. Overrides the configuration file."
	s3EndpointHelp = "Endpoint of an S3 compatible service. Overrides the configuration file."
)

type arguments struct {
	configFile  string
	verboseMode bool

	storageType string
	storageDir  string
	s3Bucket    string
	s3Prefix    string
	s3Region    string
	s3Endpoint  string

	fs *flag.FlagSet
}

func newRootFlagSet(args *arguments) *flag.FlagSet {
	fs := flag.NewFlagSet("rprof", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&args.configFile, "config", "", configFileHelp)

	fs.StringVar(&args.s3Bucket, "s3-bucket", "", s3BucketHelp)
	fs.StringVar(&args.s3Endpoint, "s3-endpoint", "", s3EndpointHelp)
	fs.StringVar(&args.s3Prefix, "s3-prefix", "", s3PrefixHelp)
	fs.StringVar(&args.s3Region, "s3-region", "", s3RegionHelp)

	fs.StringVar(&args.storageDir, "dir", "", storageDirHelp)
	fs.StringVar(&args.storageType, "storage", "", storageTypeHelp)

	fs.BoolVar(&args.verboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.verboseMode, "verbose", false, verboseModeHelp)

	args.fs = fs
	return fs
}

// loadConfig returns the configuration file, or the defaults, with the
// flag overrides applied.
func (args *arguments) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if args.configFile != "" {
		var err error
		if cfg, err = config.Load(args.configFile); err != nil {
			return config.Config{}, err
		}
	}

	overrides := []struct {
		value string
		dst   *string
	}{
		{args.storageType, &cfg.Storage.Type},
		{args.storageDir, &cfg.Storage.Directory},
		{args.s3Bucket, &cfg.Storage.S3.Bucket},
		{args.s3Prefix, &cfg.Storage.S3.Prefix},
		{args.s3Region, &cfg.Storage.S3.Region},
		{args.s3Endpoint, &cfg.Storage.S3.Endpoint},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.dst = o.value
		}
	}
	// A directory alone selects the file storage.
	if args.storageType == "" && args.storageDir != "" {
		cfg.Storage.Type = config.StorageFile
	}
	// The command line does not run long enough for periodic statistics.
	cfg.StatsInterval = 0

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// dump logs all flags and their values.
func (args *arguments) dump() {
	log.Debug("Config:")
	args.fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}
