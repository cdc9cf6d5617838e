// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/request-profiler/profiler"

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

// StorageSink returns a Sink that saves each profile to store before Stop
// returns. Failures are logged. Use a reporter.Reporter to save
// asynchronously instead.
func StorageSink(store storage.Storage, timeout time.Duration) Sink {
	return SinkFunc(func(p *profile.Profile) {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := store.Save(ctx, p); err != nil {
			log.Errorf("Failed to save profile %s: %v", p.ID, err)
		}
	})
}
