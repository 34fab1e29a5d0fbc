// ABOUTME: Tests for queue Prometheus metrics
// ABOUTME: Verifies counters, gauges and registration conflicts
package memblockq

import (
	"testing"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	q, err := New("metrics", 0, Attr{MaxLength: 16, TLength: 8, Prebuf: 4, MinReq: 4, MaxRewind: 0}, 4,
		memblock.Chunk{}, WithMetrics(reg))
	require.NoError(t, err)

	data := chunkFromString("abcdefgh")
	defer data.Unref()

	require.NoError(t, q.Push(data))
	assert.Equal(t, 8.0, testutil.ToFloat64(q.metrics.pushed))
	assert.Equal(t, 8.0, testutil.ToFloat64(q.metrics.length))
	assert.Equal(t, 1.0, testutil.ToFloat64(q.metrics.readable))

	require.NoError(t, q.Drop(8))
	assert.Equal(t, 8.0, testutil.ToFloat64(q.metrics.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(q.metrics.underruns))
	assert.Equal(t, 8.0, testutil.ToFloat64(q.metrics.missing))
	assert.Equal(t, 0.0, testutil.ToFloat64(q.metrics.readable))

	require.NoError(t, q.Push(data))
	require.NoError(t, q.Push(data))
	require.NoError(t, q.Push(data))
	assert.Equal(t, 1.0, testutil.ToFloat64(q.metrics.overruns))

	// A second queue with the same name cannot register
	_, err = New("metrics", 0, Attr{MaxLength: 16}, 4, memblock.Chunk{}, WithMetrics(reg))
	assert.Error(t, err)

	q.Free()
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
