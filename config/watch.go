// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "go.opentelemetry.io/request-profiler/config"

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/metrics"
)

// debounceDelay collapses the bursts of events editors produce when saving.
const debounceDelay = 100 * time.Millisecond

// Watch reloads the configuration file at path whenever it changes and
// passes every valid new configuration to onChange. Invalid files are
// logged and ignored. The returned function stops watching.
func Watch(ctx context.Context, path string, onChange func(Config)) (func(), error) {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors and configuration management replace
	// files by renaming, which drops a watch on the file itself.
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		watchLoop(ctx, watcher, path, onChange)
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string,
	onChange func(Config)) {
	debounce := time.NewTimer(debounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path ||
				!event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			debounce.Reset(debounceDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("Configuration watcher error: %v", err)
		case <-debounce.C:
			reload(path, onChange)
		}
	}
}

func reload(path string, onChange func(Config)) {
	cfg, err := Load(path)
	if err != nil {
		log.Errorf("Ignoring configuration change: %v", err)
		metrics.Add(metrics.IDConfigReloadFailures, 1)
		return
	}
	log.Infof("Reloaded configuration from %s", path)
	metrics.Add(metrics.IDConfigReloads, 1)
	onChange(cfg)
}
