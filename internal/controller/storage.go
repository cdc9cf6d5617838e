// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/request-profiler/internal/controller"

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/config"
	"go.opentelemetry.io/request-profiler/storage"
	"go.opentelemetry.io/request-profiler/storage/filestore"
	"go.opentelemetry.io/request-profiler/storage/memstore"
	"go.opentelemetry.io/request-profiler/storage/s3store"
)

func newStorage(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	switch cfg.Type {
	case config.StorageMemory:
		store, err := memstore.New(cfg.Capacity)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageFile:
		store, err := filestore.New(cfg.Directory)
		if err != nil {
			return nil, err
		}
		if err = store.RemoveTempFiles(); err != nil {
			log.Warnf("Failed to remove stale temporary files: %v", err)
		}
		return store, nil
	case config.StorageS3:
		client, err := s3store.NewClient(ctx, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}
