// ABOUTME: Read side of the queue: peek, linearized peek, drop, rewind and read flush
// ABOUTME: Gaps between chunks are served from the silence chunk
package memblockq

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// Peek returns the data at the read index without consuming it.
//
// The returned chunk is either the remainder of the entry covering the read
// index or, over a gap, the silence chunk trimmed to the gap. The caller owns
// one reference and must Unref it. Peek fails with ErrNotReadable while
// prebuffering and with ErrEmpty when nothing is queued at the read index.
func (q *Queue) Peek() (memblock.Chunk, error) {
	if q.inPrebuf {
		return memblock.Chunk{}, ErrNotReadable
	}

	p, ok := q.run(q.readIndex, 0)
	if !ok {
		return memblock.Chunk{}, ErrEmpty
	}
	return p.chunk.Ref(), nil
}

// PeekFixedSize returns exactly size bytes starting at the read index,
// concatenating entries and silence into a new block when they do not fit
// in a single entry. It does not consume anything and works in every state.
// The caller owns one reference to the returned chunk.
func (q *Queue) PeekFixedSize(size int) (memblock.Chunk, error) {
	if size <= 0 || !q.aligned(int64(size)) {
		return memblock.Chunk{}, fmt.Errorf("peek %d bytes: %w", size, ErrAlignment)
	}

	first, _ := q.run(q.readIndex, int64(size))
	if first.chunk.Length == size {
		return first.chunk.Ref(), nil
	}

	out := memblock.NewChunk(q.pool.Alloc(size))
	pos := q.readIndex
	for off := 0; off < size; {
		p, _ := q.run(pos, int64(size-off))
		dst := memblock.Chunk{Block: out.Block, Index: off, Length: int(p.length)}
		var err error
		if p.silence {
			err = memblock.FillPattern(dst, p.chunk)
		} else {
			_, err = memblock.Copy(dst, p.chunk)
		}
		if err != nil {
			out.Unref()
			return memblock.Chunk{}, fmt.Errorf("peek %d bytes: %w", size, err)
		}
		off += int(p.length)
		pos += p.length
	}
	return out, nil
}

// piece is a contiguous run of stream bytes starting at some position
type piece struct {
	chunk   memblock.Chunk // no reference held
	length  int64          // bytes covered; longer than chunk for repeated silence
	silence bool
}

// run returns the piece at pos, limited to limit bytes when limit is
// positive. Gaps are served from the silence chunk. Without a limit, ok is
// false when pos is at or past the write index and no entry lies ahead;
// with a limit the stream is padded with silence indefinitely.
func (q *Queue) run(pos, limit int64) (p piece, ok bool) {
	e, gap := q.entries.at(pos)
	if e != nil {
		d := int(pos - e.index)
		p.chunk = e.chunk
		p.chunk.Index += d
		p.chunk.Length -= d
		if limit > 0 && int64(p.chunk.Length) > limit {
			p.chunk.Length = int(limit)
		}
		p.length = int64(p.chunk.Length)
		return p, true
	}

	if gap < 0 {
		switch {
		case pos < q.writeIndex:
			gap = q.writeIndex - pos
		case limit > 0:
			gap = limit
		default:
			return piece{}, false
		}
	}
	if limit > 0 && gap > limit {
		gap = limit
	}

	p.silence = true
	p.length = gap
	p.chunk = q.silence
	if int64(p.chunk.Length) > gap {
		p.chunk.Length = int(gap)
	}
	return p, true
}

// Drop consumes length bytes at the read index. Dropping past the write
// index stops at the write index.
func (q *Queue) Drop(length int) error {
	if length < 0 || !q.aligned(int64(length)) {
		return fmt.Errorf("drop %d bytes: %w", length, ErrAlignment)
	}

	n := int64(length)
	avail := max(q.writeIndex-q.readIndex, 0)
	if n > avail {
		q.stats.ShortDrops++
		q.logf("drop of %d bytes clamped to %d at write index", n, avail)
		n = avail
	}

	q.readIndex += n
	q.stats.BytesDropped += n
	if q.metrics != nil {
		q.metrics.dropped.Add(float64(n))
	}

	q.dropBacklog()
	q.updatePrebuf()
	q.observe()
	return nil
}

// Rewind moves the read index back by length bytes, rounded down to the
// frame size. History older than maxrewind has already been released and
// reads back as silence. The read index never moves before the queue's
// initial index.
func (q *Queue) Rewind(length int) {
	n := int64(length - length%q.base)
	if n <= 0 {
		return
	}
	if q.readIndex-n < q.origin {
		n = q.readIndex - q.origin
	}

	q.readIndex -= n
	q.stats.BytesRewound += n
	if q.metrics != nil {
		q.metrics.rewound.Add(float64(n))
	}

	q.updatePrebuf()
	q.observe()
}

// FlushRead discards everything queued by moving the read index to the
// write index, then forces prebuffering
func (q *Queue) FlushRead() {
	flushed := max(q.writeIndex-q.readIndex, 0)
	q.stats.BlocksReleased += int64(q.entries.clear())
	q.stats.BytesFlushed += flushed
	q.readIndex = q.writeIndex

	q.PrebufForce()
	q.logf("read flush: discarded %d bytes", flushed)
	q.observe()
}
