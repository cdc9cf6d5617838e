// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libpf holds small helpers shared across the request profiler packages.
package libpf // import "go.opentelemetry.io/request-profiler/libpf"

// Void allows to use maps as sets without memory allocation for the values.
type Void struct{}
