// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package registry // import "go.opentelemetry.io/request-profiler/registry"

import (
	"github.com/google/uuid"

	"go.opentelemetry.io/request-profiler/profile"
)

type sessionOptions struct {
	level       profile.Level
	machineName string
	user        string
	profileID   uuid.UUID
	rootName    string
}

// SessionOption allows to override the defaults of a new session.
type SessionOption func(*sessionOptions)

// WithLevel sets the level of detail recorded by the session.
func WithLevel(level profile.Level) SessionOption {
	return func(o *sessionOptions) {
		o.level = level
	}
}

// WithMachineName sets the host that records the profile.
func WithMachineName(name string) SessionOption {
	return func(o *sessionOptions) {
		o.machineName = name
	}
}

// WithUser sets the user on whose behalf the work is done.
func WithUser(user string) SessionOption {
	return func(o *sessionOptions) {
		o.user = user
	}
}

// WithProfileID sets the id of the profile instead of generating one.
func WithProfileID(id uuid.UUID) SessionOption {
	return func(o *sessionOptions) {
		o.profileID = id
	}
}

// WithRootName names the root step. It defaults to the profile name.
func WithRootName(name string) SessionOption {
	return func(o *sessionOptions) {
		o.rootName = name
	}
}
