// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package freelru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashInt(i int) uint32 { return uint32(i) }

func TestStatistics(t *testing.T) {
	cache, err := New[int, string](2, hashInt)
	require.NoError(t, err)

	assert.False(t, cache.Add(1, "one"))
	assert.False(t, cache.Add(2, "two"))
	assert.True(t, cache.Add(3, "three"), "oldest entry evicted")

	_, ok := cache.Get(1)
	assert.False(t, ok)
	v, ok := cache.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "three", v)

	v, ok = cache.Peek(2)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
	assert.ElementsMatch(t, []int{2, 3}, cache.Keys())
	assert.Equal(t, 2, cache.Len())

	assert.True(t, cache.Remove(2))
	assert.False(t, cache.Remove(2))

	assert.Equal(t, Statistics{Hit: 1, Miss: 1, Added: 3, Deleted: 2},
		cache.GetAndResetStatistics())
	assert.Equal(t, Statistics{}, cache.GetAndResetStatistics())
}
