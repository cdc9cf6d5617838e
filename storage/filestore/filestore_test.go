// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

func newProfile(minute int) *profile.Profile {
	p := profile.New(uuid.New(), "/checkout", "request",
		time.Date(2024, 3, 1, 12, minute, 0, 0, time.UTC))
	p.Root.AddChild("db", 1).AddCustomTiming("sql",
		&profile.CustomTiming{CommandString: "SELECT 1", StartMilliseconds: 1, DurationMilliseconds: 2})
	p.Finalize(10)
	return p
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)

	p := newProfile(1)
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "SELECT 1", got.Root.Children[0].CustomTimings["sql"][0].CommandString)

	_, err = s.Load(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Save(ctx, newProfile(i)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp.123"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, uuid.NewString()+storage.FileExtension), []byte("broken"), 0o600))

	list, err := s.List(ctx, storage.Filter{MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].Started.Minute())
	assert.Equal(t, 2, list[1].Started.Minute())

	require.NoError(t, s.RemoveTempFiles())
	_, err = os.Stat(filepath.Join(dir, "tmp.123"))
	assert.True(t, os.IsNotExist(err))
}

func TestListCanceled(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), newProfile(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.List(ctx, storage.Filter{})
	require.ErrorIs(t, err, context.Canceled)
}
