// ABOUTME: Tests for reference-counted blocks, pools and chunk helpers
// ABOUTME: Covers ref lifetimes, acquire/release bracketing and pattern fills
package memblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBlockFromString(t *testing.T) {
	b := NewFixed([]byte("abcd"), true)
	c := NewChunk(b)

	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 4, c.Length)
	assert.Equal(t, TypeFixed, b.Type())
	assert.True(t, b.IsReadOnly())
	assert.Equal(t, 1, b.RefCount())

	b.Unref()
	assert.Equal(t, 0, b.RefCount())
}

func TestRefUnrefLifetime(t *testing.T) {
	b := NewAppended(8)
	b.Ref()
	assert.Equal(t, 2, b.RefCount())

	b.Unref()
	assert.Equal(t, 1, b.RefCount())
	assert.Equal(t, 8, b.Len())

	b.Unref()
	assert.Equal(t, 0, b.RefCount())
	assert.Panics(t, func() { b.Unref() })
}

func TestAcquireHoldsReference(t *testing.T) {
	b := FromBytes([]byte("xyz"))

	data := b.Acquire()
	assert.True(t, b.IsAcquired())
	assert.Equal(t, 2, b.RefCount())

	// The owner lets go while the data is still being read
	b.Unref()
	assert.Equal(t, "xyz", string(data))
	assert.Equal(t, 1, b.RefCount())

	b.Release()
	assert.False(t, b.IsAcquired())
	assert.Equal(t, 0, b.RefCount())
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	b := NewAppended(2)
	defer b.Unref()

	assert.Panics(t, func() { b.Release() })
}

func TestPoolRecyclesSlots(t *testing.T) {
	p := NewPool(16)
	assert.Equal(t, 16, p.SlotSize())

	b := p.Alloc(10)
	require.Equal(t, TypePool, b.Type())
	assert.Equal(t, 10, b.Len())
	assert.Equal(t, int64(1), p.Stats().InUse)

	b.Unref()
	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Allocated)
	assert.Equal(t, int64(1), stats.Freed)
	assert.Equal(t, int64(0), stats.InUse)
}

func TestPoolTooLarge(t *testing.T) {
	p := NewPool(4)

	b := p.Alloc(5)
	defer b.Unref()

	assert.Equal(t, TypeAppended, b.Type())
	assert.Equal(t, int64(1), p.Stats().TooLarge)
	assert.Equal(t, int64(0), p.Stats().Allocated)
}

func TestAllocZeroed(t *testing.T) {
	p := NewPool(8)

	b := p.Alloc(8)
	data := b.Acquire()
	copy(data, "dirtydat")
	b.Release()
	b.Unref()

	z := p.AllocZeroed(8)
	defer z.Unref()
	assert.Equal(t, make([]byte, 8), NewChunk(z).Bytes())
}

func TestChunkBytesAndCopy(t *testing.T) {
	src := ChunkFromBytes([]byte("XX22"))
	defer src.Unref()
	src.Index += 2
	src.Length -= 2
	assert.Equal(t, "22", string(src.Bytes()))

	dst := NewChunk(NewAppended(4))
	defer dst.Unref()

	n, err := Copy(Chunk{Block: dst.Block, Index: 1, Length: 3}, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0, '2', '2', 0}, dst.Bytes())
}

func TestFillPattern(t *testing.T) {
	pattern := ChunkFromBytes([]byte("_-"))
	defer pattern.Unref()

	dst := NewChunk(NewAppended(7))
	defer dst.Unref()

	require.NoError(t, FillPattern(dst, pattern))
	assert.Equal(t, "_-_-_-_", string(dst.Bytes()))
}

func TestReadOnlyDestination(t *testing.T) {
	src := ChunkFromBytes([]byte("abcd"))
	defer src.Unref()

	data := []byte("....")
	dst := NewChunk(NewFixed(data, true))
	defer dst.Unref()

	n, err := Copy(dst, src)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Zero(t, n)

	assert.ErrorIs(t, FillPattern(dst, src), ErrReadOnly)
	assert.Equal(t, "....", string(data))

	writable := NewChunk(NewFixed(data, false))
	defer writable.Unref()
	n, err = Copy(writable, src)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(data))
}

func TestChunkValidate(t *testing.T) {
	c := ChunkFromBytes([]byte("abcd"))
	defer c.Unref()

	require.NoError(t, c.Validate())

	c.Index = 3
	assert.Error(t, c.Validate())
	assert.Error(t, Chunk{}.Validate())
}
