// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifo(t *testing.T) {
	integers := []int{1, 2, 3, 4, 5}

	tests := map[string]struct {
		// size defines the size of the fifo.
		size uint32
		// data will be written to and extracted from the fifo.
		data []int
		// returned reflects the data that is expected from the fifo
		// after writing to it.
		returned []int
		// the number of overwrites that occurred
		overwriteCount uint32
		// err indicates if an error is expected for this testcase.
		err bool
	}{
		"Invalid size":  {size: 0, err: true},
		"Full Fifo":     {size: 5, data: integers, returned: integers},
		"Fifo overflow": {size: 3, data: integers, returned: []int{3, 4, 5}, overwriteCount: 2},
		"Partial full":  {size: 15, data: integers, returned: integers},
		"Empty":         {size: 2, data: nil, returned: []int{}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fifo, err := newFifo[int](tc.size, t.Name())
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, v := range tc.data {
				fifo.Append(v)
			}
			assert.Equal(t, len(tc.returned), fifo.Len())
			assert.Equal(t, tc.returned, fifo.ReadAll())
			assert.Zero(t, fifo.Len())

			appended, overwritten := fifo.counters()
			assert.Equal(t, uint32(len(tc.data)), appended)
			assert.Equal(t, tc.overwriteCount, overwritten)
			appended, overwritten = fifo.counters()
			assert.Zero(t, appended)
			assert.Zero(t, overwritten)
		})
	}
}

func TestFifoReuse(t *testing.T) {
	fifo, err := newFifo[int](5, t.Name())
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		fifo.Append(i)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, fifo.ReadAll())

	for i := 1; i <= 12; i++ {
		assert.Equal(t, i > 5, fifo.Append(i))
	}
	assert.Equal(t, []int{8, 9, 10, 11, 12}, fifo.ReadAll())
	_, overwritten := fifo.counters()
	assert.Equal(t, uint32(7), overwritten)
}
