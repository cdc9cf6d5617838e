// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage defines how finished profiles are persisted and found again.
package storage // import "go.opentelemetry.io/request-profiler/storage"

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/request-profiler/profile"
)

// ErrNotFound is returned by Load for unknown profile ids.
var ErrNotFound = errors.New("profile not found")

// Order selects the sort order of List results by start time.
type Order int

const (
	// Descending lists the most recent profiles first.
	Descending Order = iota
	// Ascending lists the oldest profiles first.
	Ascending
)

// Filter restricts the results of List.
type Filter struct {
	// MaxResults limits the number of results. Values <= 0 mean no limit.
	MaxResults int
	// Start is the inclusive lower bound of the start time, ignored if zero.
	Start time.Time
	// Finish is the exclusive upper bound of the start time, ignored if zero.
	Finish time.Time
	Order  Order
}

// Matches reports whether s lies within the time bounds of f.
func (f Filter) Matches(s Summary) bool {
	if !f.Start.IsZero() && s.Started.Before(f.Start) {
		return false
	}
	if !f.Finish.IsZero() && !s.Started.Before(f.Finish) {
		return false
	}
	return true
}

// Apply filters, sorts and truncates summaries according to f.
func (f Filter) Apply(summaries []Summary) []Summary {
	out := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Summary) int {
		c := a.Started.Compare(b.Started)
		if c == 0 {
			c = cmp.Compare(a.ID.String(), b.ID.String())
		}
		if f.Order == Descending {
			return -c
		}
		return c
	})
	if f.MaxResults > 0 && len(out) > f.MaxResults {
		out = out[:f.MaxResults]
	}
	return out
}

// Summary describes a stored profile without its timing tree.
type Summary struct {
	ID                   uuid.UUID
	Name                 string
	Started              time.Time
	DurationMilliseconds float64
	MachineName          string
	User                 string
}

// SummaryOf returns the summary of p.
func SummaryOf(p *profile.Profile) Summary {
	return Summary{
		ID:                   p.ID,
		Name:                 p.Name,
		Started:              p.Started,
		DurationMilliseconds: p.DurationMilliseconds,
		MachineName:          p.MachineName,
		User:                 p.User,
	}
}

// Storage persists finished profiles. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Save stores p, replacing an earlier profile with the same id.
	Save(ctx context.Context, p *profile.Profile) error
	// Load returns the profile with the given id or ErrNotFound.
	Load(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	// List returns the summaries of the stored profiles that match f.
	List(ctx context.Context, f Filter) ([]Summary, error)
}

// ViewTracker is implemented by storages that remember which profiles a
// user has not looked at yet.
type ViewTracker interface {
	SetViewed(ctx context.Context, user string, id uuid.UUID) error
	SetUnviewed(ctx context.Context, user string, id uuid.UUID) error
	UnviewedIDs(ctx context.Context, user string) ([]uuid.UUID, error)
}
