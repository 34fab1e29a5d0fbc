// ABOUTME: Package documentation for the block queue
// ABOUTME: Describes indices, prebuffering, flow control and rewind history
// Package memblockq implements a queue of reference-counted memory block
// chunks addressed by absolute stream position.
//
// A producer pushes chunks at the write index and may seek it anywhere;
// writing over already queued data replaces it. A consumer peeks at the
// read index and drops what it has played. Gaps between written ranges
// read back as silence. Dropped data stays available for Rewind until it
// falls more than maxrewind bytes behind the read index.
//
// Buffer attributes control the queue:
//   - maxlength: upper bound on unread bytes; older data is discarded on overrun
//   - tlength: target fill level used by Missing and PopMissing
//   - prebuf: bytes required before reads start, and again after an underrun
//   - minreq: smallest shortfall Missing reports
//   - maxrewind: consumed bytes kept for Rewind
//
// All lengths and offsets are multiples of the frame size given at
// construction, except for PushAlign which buffers partial frames.
//
// Example:
//
//	q, err := memblockq.New("playback", 0, memblockq.Attr{
//	    MaxLength: 192000,
//	    TLength:   57600,
//	    Prebuf:    -1,
//	    MinReq:    5760,
//	    MaxRewind: 19200,
//	}, 6, memblock.Chunk{})
//	if err != nil {
//	    return err
//	}
//	defer q.Free()
//
//	chunk := memblock.ChunkFromBytes(pcm)
//	err = q.Push(chunk)
//	chunk.Unref()
//
//	out, err := q.PeekFixedSize(5760)
//	if err == nil {
//	    play(out.Bytes())
//	    out.Unref()
//	    q.Drop(5760)
//	}
package memblockq
