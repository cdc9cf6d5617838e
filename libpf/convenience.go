// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/request-profiler/libpf"

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// tempPrefix is prepended to files while they are still being written to.
const tempPrefix = "tmp."

// AddJitter adds +/- jitter (jitter is [0..1]) to baseDuration
func AddJitter(baseDuration time.Duration, jitter float64) time.Duration {
	if jitter < 0.0 || jitter > 1.0 {
		log.Errorf("Jitter (%f) out of range [0..1].", jitter)
		return baseDuration
	}
	return time.Duration((1 + jitter - 2*jitter*rand.Float64()) * float64(baseDuration))
}

// WriteFileAtomic writes data to a temporary file in the directory of path and
// renames it into place, so that readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), tempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := file.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err = file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write data to temporary file: %w", err)
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to synchronize file data: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// IsTempFile reports whether name was created by WriteFileAtomic and not yet committed.
func IsTempFile(name string) bool {
	return len(name) >= len(tempPrefix) && name[:len(tempPrefix)] == tempPrefix
}
