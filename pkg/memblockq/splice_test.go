// ABOUTME: Tests for draining one queue into another
// ABOUTME: Covers data, gaps and prebuffering sources
package memblockq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplice(t *testing.T) {
	attr := Attr{MaxLength: 64, TLength: 32, Prebuf: 8, MinReq: 4, MaxRewind: 0}
	src := newTestQueue(t, attr, 4, "____")
	dst := newTestQueue(t, attr, 4, "....")

	a := chunkFromString("aaaa")
	defer a.Unref()
	b := chunkFromString("bbbb")
	defer b.Unref()

	require.NoError(t, src.Push(a))
	require.NoError(t, src.Seek(4, SeekRelative, true))
	require.NoError(t, src.Push(b))
	require.True(t, src.IsReadable())

	require.NoError(t, dst.Push(b))
	require.NoError(t, dst.Splice(src))

	assert.True(t, dst.IsReadable())
	assert.Equal(t, 16, dst.Length())
	assert.Equal(t, int64(12), src.ReadIndex())
	assert.Equal(t, 0, src.Length())

	out, err := dst.PeekFixedSize(16)
	require.NoError(t, err)
	defer out.Unref()
	assert.Equal(t, "bbbbaaaa....bbbb", string(out.Bytes()))
}

func TestSpliceStopsWhilePrebuffering(t *testing.T) {
	attr := Attr{MaxLength: 64, TLength: 32, Prebuf: 8, MinReq: 4, MaxRewind: 0}
	src := newTestQueue(t, attr, 4, "____")
	dst := newTestQueue(t, attr, 4, "____")

	a := chunkFromString("aaaa")
	defer a.Unref()
	require.NoError(t, src.Push(a))

	require.NoError(t, dst.Splice(src))
	assert.Equal(t, 0, dst.Length())
	assert.Equal(t, 4, src.Length())
}

func TestSpliceIntoSmallerQueue(t *testing.T) {
	src := newTestQueue(t, Attr{MaxLength: 64, TLength: 32, Prebuf: 0, MinReq: 4, MaxRewind: 0}, 4, "____")
	dst := newTestQueue(t, Attr{MaxLength: 8, TLength: 8, Prebuf: 0, MinReq: 4, MaxRewind: 0}, 4, "....")

	data := chunkFromString("abcdefghijklmnop")
	defer data.Unref()
	require.NoError(t, src.Push(data))
	require.NoError(t, src.Seek(12, SeekRelative, true))
	require.NoError(t, src.Push(data))
	require.Equal(t, 44, src.Length())

	require.NoError(t, dst.Splice(src))

	assert.Equal(t, 0, src.Length())
	assert.Equal(t, int64(44), dst.WriteIndex())
	assert.Equal(t, 8, dst.Length())
	checkInvariants(t, dst)
	assert.Equal(t, "ijklmnop", dumpManual(t, dst))
}
