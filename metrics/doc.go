// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics contains the code for receiving and reporting the internal
metrics of the profiler as OpenTelemetry instruments.

Components count into their own atomic counters and expose them through the
Source interface. A periodic collector (see the sourcemetrics sub package)
gathers them and hands them to AddSlice:

	defer sourcemetrics.Start(ctx, interval, rep, store)()

# Directory Structure

	metrics
	├── agentmetrics/   // goroutines, heap and CPU time of the process
	├── genids/         // generates ids.go from metrics.json
	├── sourcemetrics/  // periodic collection from Source implementations
	├── doc.go          // this file
	├── ids.go          // generated metric ids
	├── metrics.go      // implement Add() and AddSlice()
	├── metrics.json    // metric definitions
	└── types.go        // definitions of Metric, MetricID, MetricValue
*/
package metrics // import "go.opentelemetry.io/request-profiler/metrics"
