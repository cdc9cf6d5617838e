// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/request-profiler/internal/controller"

import (
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/times"
)

type Option interface {
	applyOption(*Controller) *Controller
}
type controllerOptionFunc func(*Controller) *Controller

func (f controllerOptionFunc) applyOption(c *Controller) *Controller {
	return f(c)
}

// WithStorage sets a storage to use instead of the configured one.
func WithStorage(store storage.Storage) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.store = store
		return c
	})
}

// WithConfigFile makes the controller reload the analyzer settings when
// the configuration file at path changes.
func WithConfigFile(path string) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.configPath = path
		return c
	})
}

// WithClock sets the clock profiles are timed with.
func WithClock(clock times.Clock) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.clock = clock
		return c
	})
}
