// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/request-profiler/profiler"

import (
	"context"

	"go.opentelemetry.io/request-profiler/registry"
)

type ctxKey int

const (
	contextIDKey ctxKey = iota
	forkKey
)

// WithContextID returns a copy of ctx that identifies the execution context
// id. Profiles started from the returned context are registered under id.
func WithContextID(ctx context.Context, id registry.ContextID) context.Context {
	return context.WithValue(ctx, contextIDKey, id)
}

// ContextIDFrom returns the execution context id carried by ctx.
func ContextIDFrom(ctx context.Context) (registry.ContextID, bool) {
	id, ok := ctx.Value(contextIDKey).(registry.ContextID)
	return id, ok
}

func withFork(ctx context.Context, s *registry.Session) context.Context {
	return context.WithValue(ctx, forkKey, s)
}

func forkFrom(ctx context.Context) *registry.Session {
	s, _ := ctx.Value(forkKey).(*registry.Session)
	return s
}
