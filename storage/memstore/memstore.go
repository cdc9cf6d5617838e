// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package memstore keeps the most recently used profiles in memory.
package memstore // import "go.opentelemetry.io/request-profiler/storage/memstore"

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/request-profiler/libpf"
	"go.opentelemetry.io/request-profiler/libpf/freelru"
	"go.opentelemetry.io/request-profiler/metrics"
	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

// DefaultCapacity is the number of profiles kept by default.
const DefaultCapacity = 500

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.ViewTracker = (*Store)(nil)
	_ metrics.Source      = (*Store)(nil)
)

// Store is a bounded in-memory Storage that evicts the least recently used
// profile when full.
type Store struct {
	profiles *freelru.LRU[uuid.UUID, *profile.Profile]

	mu       sync.Mutex
	unviewed map[string]libpf.Set[uuid.UUID]
}

func hashID(id uuid.UUID) uint32 {
	return uint32(xxh3.Hash(id[:]))
}

// New returns a Store holding up to capacity profiles.
func New(capacity uint32) (*Store, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	profiles, err := freelru.New[uuid.UUID, *profile.Profile](capacity, hashID)
	if err != nil {
		return nil, err
	}
	return &Store{
		profiles: profiles,
		unviewed: make(map[string]libpf.Set[uuid.UUID]),
	}, nil
}

func (s *Store) Save(_ context.Context, p *profile.Profile) error {
	s.profiles.Add(p.ID, p)
	return nil
}

func (s *Store) Load(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := s.profiles.Get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) List(_ context.Context, f storage.Filter) ([]storage.Summary, error) {
	keys := s.profiles.Keys()
	summaries := make([]storage.Summary, 0, len(keys))
	for _, id := range keys {
		if p, ok := s.profiles.Peek(id); ok {
			summaries = append(summaries, storage.SummaryOf(p))
		}
	}
	return f.Apply(summaries), nil
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	return s.profiles.Len()
}

func (s *Store) SetUnviewed(_ context.Context, user string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.unviewed[user]
	if !ok {
		set = libpf.Set[uuid.UUID]{}
		s.unviewed[user] = set
	}
	set[id] = libpf.Void{}
	return nil
}

func (s *Store) SetViewed(_ context.Context, user string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.unviewed[user]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.unviewed, user)
		}
	}
	return nil
}

// UnviewedIDs returns the ids of the profiles not viewed by user that are
// still stored. Ids of evicted profiles are forgotten.
func (s *Store) UnviewedIDs(_ context.Context, user string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.unviewed[user]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		if !s.profiles.Contains(id) {
			delete(set, id)
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids, nil
}

// Metrics returns and resets the cache statistics.
func (s *Store) Metrics() []metrics.Metric {
	stats := s.profiles.GetAndResetStatistics()
	return []metrics.Metric{
		{ID: metrics.IDCacheHit, Value: metrics.MetricValue(stats.Hit)},
		{ID: metrics.IDCacheMiss, Value: metrics.MetricValue(stats.Miss)},
		{ID: metrics.IDCacheAdded, Value: metrics.MetricValue(stats.Added)},
		{ID: metrics.IDCacheDeleted, Value: metrics.MetricValue(stats.Deleted)},
	}
}
