// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package filestore persists profiles as zstd compressed JSON files in a
// local directory, one file per profile.
package filestore // import "go.opentelemetry.io/request-profiler/storage/filestore"

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/request-profiler/libpf"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store is a Storage backed by a directory. Files are first written under a
// temporary name and then renamed, so concurrent readers never observe
// partially written profiles.
type Store struct {
	dir string
}

// New returns a Store writing to dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+storage.FileExtension)
}

func (s *Store) Save(_ context.Context, p *profile.Profile) error {
	data, err := storage.Marshal(p)
	if err != nil {
		return err
	}
	if err = libpf.WriteFileAtomic(s.path(p.ID), data); err != nil {
		return fmt.Errorf("failed to store profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Load(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", id, err)
	}
	return storage.Unmarshal(data)
}

// List decodes every stored profile. Files that can not be decoded are
// skipped with a warning.
func (s *Store) List(ctx context.Context, f storage.Filter) ([]storage.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	summaries := make([]storage.Summary, 0, len(entries))
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || libpf.IsTempFile(name) {
			continue
		}
		idText, ok := strings.CutSuffix(name, storage.FileExtension)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			log.Warnf("Ignoring unexpected file %s in storage directory", name)
			continue
		}
		p, err := s.Load(ctx, id)
		if err != nil {
			log.Warnf("Skipping unreadable profile %s: %v", id, err)
			continue
		}
		summaries = append(summaries, storage.SummaryOf(p))
	}
	return f.Apply(summaries), nil
}

// RemoveTempFiles deletes files left behind by interrupted saves.
func (s *Store) RemoveTempFiles() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !libpf.IsTempFile(entry.Name()) {
			continue
		}
		if err = os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove temporary file: %w", err)
		}
	}
	return nil
}
