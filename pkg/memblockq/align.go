// ABOUTME: Frame alignment for pushes of arbitrary length
// ABOUTME: Carries partial frames over between PushAlign calls
package memblockq

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// aligner splits incoming chunks into frame-aligned chunks, keeping the
// trailing partial frame until the next chunk completes it
type aligner struct {
	base     int
	leftover []byte
}

// pending returns the number of bytes held back
func (a *aligner) pending() int {
	return len(a.leftover)
}

// alignedSize returns how many bytes a push of n more bytes would release
func (a *aligner) alignedSize(n int) int {
	t := len(a.leftover) + n
	return t - t%a.base
}

// split returns the aligned chunks contained in the held bytes plus c.
// Each returned chunk owns one reference.
func (a *aligner) split(c memblock.Chunk, pool *memblock.Pool) []memblock.Chunk {
	var out []memblock.Chunk

	if len(a.leftover) > 0 {
		take := min(a.base-len(a.leftover), c.Length)
		head := memblock.Chunk{Block: c.Block, Index: c.Index, Length: take}
		a.leftover = append(a.leftover, head.Bytes()...)
		c.Index += take
		c.Length -= take

		if len(a.leftover) == a.base {
			b := pool.Alloc(a.base)
			copy(b.Acquire(), a.leftover)
			b.Release()
			out = append(out, memblock.NewChunk(b))
			a.leftover = a.leftover[:0]
		}
	}

	usable := c.Length - c.Length%a.base
	if usable > 0 {
		out = append(out, memblock.Chunk{Block: c.Block, Index: c.Index, Length: usable}.Ref())
	}
	if rest := c.Length - usable; rest > 0 {
		tail := memblock.Chunk{Block: c.Block, Index: c.Index + usable, Length: rest}
		a.leftover = append(a.leftover, tail.Bytes()...)
	}
	return out
}

func (a *aligner) flush() {
	a.leftover = a.leftover[:0]
}

// PushAlign pushes a chunk of any length. Whole frames are pushed
// immediately; a trailing partial frame is held until later data
// completes it.
func (q *Queue) PushAlign(c memblock.Chunk) error {
	if q.base == 1 {
		return q.Push(c)
	}
	if c.Length == 0 {
		return nil
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if n := q.aligner.alignedSize(c.Length); n > q.maxLength {
		return fmt.Errorf("push %d aligned bytes into %d byte queue: %w", n, q.maxLength, ErrOverflow)
	}

	chunks := q.aligner.split(c, q.pool)
	for i, ac := range chunks {
		err := q.Push(ac)
		ac.Unref()
		if err != nil {
			for _, rest := range chunks[i+1:] {
				rest.Unref()
			}
			q.aligner.flush()
			return err
		}
	}
	return nil
}

// PendingAlign returns the bytes of an incomplete frame held by PushAlign
func (q *Queue) PendingAlign() int {
	return q.aligner.pending()
}
