// ABOUTME: Tests for the sorted chunk list
// ABOUTME: Covers overlap trimming, splitting, merging and backlog eviction
package memblockq

import (
	"testing"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct {
	index  int64
	length int
}

func spans(l *entryList) []span {
	out := make([]span, 0, l.len())
	for _, e := range l.items {
		out = append(out, span{e.index, e.chunk.Length})
	}
	return out
}

func TestEntryListWrite(t *testing.T) {
	tests := []struct {
		name     string
		writes   []span
		want     []span
		released int
	}{
		{
			name:   "sequential",
			writes: []span{{0, 4}, {4, 4}, {8, 4}},
			want:   []span{{0, 4}, {4, 4}, {8, 4}},
		},
		{
			name:   "out of order",
			writes: []span{{8, 4}, {0, 4}},
			want:   []span{{0, 4}, {8, 4}},
		},
		{
			name:   "split in the middle",
			writes: []span{{0, 12}, {4, 4}},
			want:   []span{{0, 4}, {4, 4}, {8, 4}},
		},
		{
			name:     "replace exact",
			writes:   []span{{0, 4}, {0, 4}},
			want:     []span{{0, 4}},
			released: 1,
		},
		{
			name:     "cover several",
			writes:   []span{{0, 2}, {2, 2}, {4, 2}, {6, 2}, {1, 6}},
			want:     []span{{0, 1}, {1, 6}, {7, 1}},
			released: 2,
		},
		{
			name:   "trim front of next",
			writes: []span{{4, 8}, {0, 6}},
			want:   []span{{0, 6}, {6, 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l entryList
			var released int
			var chunks []memblock.Chunk
			for _, w := range tt.writes {
				c := memblock.NewChunk(memblock.NewAppended(w.length))
				chunks = append(chunks, c)
				_, r := l.write(w.index, c)
				released += r
			}

			assert.Equal(t, tt.want, spans(&l))
			assert.Equal(t, tt.released, released)

			l.clear()
			for _, c := range chunks {
				assert.Equal(t, 1, c.Block.RefCount())
				c.Unref()
			}
		})
	}
}

func TestEntryListSplitTakesReference(t *testing.T) {
	var l entryList
	big := memblock.NewChunk(memblock.NewAppended(12))
	small := memblock.NewChunk(memblock.NewAppended(4))

	l.write(0, big)
	assert.Equal(t, 2, big.Block.RefCount())

	l.write(4, small)
	assert.Equal(t, 3, big.Block.RefCount())
	require.Equal(t, 3, l.len())
	assert.Equal(t, 8, l.items[2].chunk.Index)

	l.clear()
	assert.Equal(t, 1, big.Block.RefCount())
	big.Unref()
	small.Unref()
}

func TestEntryListMerge(t *testing.T) {
	var l entryList
	c := memblock.NewChunk(memblock.NewAppended(8))
	defer c.Unref()

	first := c
	first.Length = 4
	second := c
	second.Index = 4
	second.Length = 4

	merged, _ := l.write(0, first)
	assert.False(t, merged)
	merged, _ = l.write(4, second)
	assert.True(t, merged)
	assert.Equal(t, []span{{0, 8}}, spans(&l))

	// Contiguous in the stream but not in the block
	merged, _ = l.write(8, first)
	assert.False(t, merged)

	l.clear()
}

func TestEntryListAt(t *testing.T) {
	var l entryList
	c := memblock.NewChunk(memblock.NewAppended(4))
	defer c.Unref()
	l.write(4, c)
	defer l.clear()

	e, gap := l.at(0)
	assert.Nil(t, e)
	assert.Equal(t, int64(4), gap)

	e, _ = l.at(6)
	require.NotNil(t, e)
	assert.Equal(t, int64(4), e.index)

	e, gap = l.at(8)
	assert.Nil(t, e)
	assert.Equal(t, int64(-1), gap)
}

func TestEntryListDropBefore(t *testing.T) {
	var l entryList
	c := memblock.NewChunk(memblock.NewAppended(4))
	defer c.Unref()
	for i := int64(0); i < 4; i++ {
		l.write(i*4, c)
	}

	assert.Equal(t, 0, l.dropBefore(3))
	assert.Equal(t, 2, l.dropBefore(8))
	assert.Equal(t, []span{{8, 4}, {12, 4}}, spans(&l))
	assert.Equal(t, 3, c.Block.RefCount())

	assert.Equal(t, 2, l.clear())
	assert.Equal(t, 1, c.Block.RefCount())
}
