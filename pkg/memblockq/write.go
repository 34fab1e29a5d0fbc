// ABOUTME: Write side of the queue: push, seek and write flush
// ABOUTME: Pushed chunks overwrite overlapping data and merge with contiguous views
package memblockq

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// SeekMode selects what a seek offset is relative to
type SeekMode int

const (
	// SeekRelative moves the write index by offset
	SeekRelative SeekMode = iota
	// SeekAbsolute sets the write index to offset
	SeekAbsolute
	// SeekRelativeOnRead sets the write index to read index + offset
	SeekRelativeOnRead
	// SeekRelativeEnd sets the write index to the end of the readable data + offset
	SeekRelativeEnd
)

// String returns the seek mode name
func (m SeekMode) String() string {
	switch m {
	case SeekRelative:
		return "relative"
	case SeekAbsolute:
		return "absolute"
	case SeekRelativeOnRead:
		return "relative-on-read"
	case SeekRelativeEnd:
		return "relative-end"
	default:
		return fmt.Sprintf("seek-mode(%d)", int(m))
	}
}

// ParseSeekMode is the inverse of SeekMode.String
func ParseSeekMode(s string) (SeekMode, error) {
	for _, m := range []SeekMode{SeekRelative, SeekAbsolute, SeekRelativeOnRead, SeekRelativeEnd} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown seek mode %q", s)
}

// Push writes c at the write index and advances it by c.Length.
//
// Data already stored in the covered range is replaced. The queue takes its
// own reference to c's block; the caller keeps theirs. If the queue grows
// past maxlength the oldest unread bytes are discarded.
func (q *Queue) Push(c memblock.Chunk) error {
	if c.Length <= 0 || !q.aligned(int64(c.Length)) {
		return fmt.Errorf("push %d bytes: %w", c.Length, ErrAlignment)
	}
	if c.Length > q.maxLength {
		return fmt.Errorf("push %d bytes into %d byte queue: %w", c.Length, q.maxLength, ErrOverflow)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	old := q.writeIndex
	merged, released := q.entries.write(q.writeIndex, c)
	q.writeIndex += int64(c.Length)

	q.stats.Pushes++
	q.stats.BytesPushed += int64(c.Length)
	q.stats.BlocksReleased += int64(released)
	if merged {
		q.stats.Merges++
	}
	if q.metrics != nil {
		q.metrics.pushed.Add(float64(c.Length))
	}

	q.writeIndexChanged(old, true)
	q.enforceMaxLength()
	q.updatePrebuf()
	q.observe()
	return nil
}

// Seek moves the write index. The offset must be a multiple of the frame
// size. With account set the move counts against bytes requested through
// PopMissing, like a push of the same length would.
func (q *Queue) Seek(offset int64, mode SeekMode, account bool) error {
	var target int64
	switch mode {
	case SeekRelative:
		target = q.writeIndex + offset
	case SeekAbsolute:
		target = offset
	case SeekRelativeOnRead:
		target = q.readIndex + offset
	case SeekRelativeEnd:
		target = q.readIndex + int64(q.Length()) + offset
	default:
		return fmt.Errorf("unknown seek mode %s", mode)
	}

	if !q.aligned(target - q.writeIndex) {
		return fmt.Errorf("seek %d (%s): %w", offset, mode, ErrAlignment)
	}

	old := q.writeIndex
	q.writeIndex = target

	q.dropBacklog()
	q.writeIndexChanged(old, account)
	q.updatePrebuf()
	q.observe()
	return nil
}

// FlushWrite discards everything queued by moving the write index back to
// the read index, then forces prebuffering. A pending partial frame from
// PushAlign is discarded too.
func (q *Queue) FlushWrite(account bool) {
	old := q.writeIndex
	q.stats.BlocksReleased += int64(q.entries.clear())
	q.aligner.flush()
	q.writeIndex = q.readIndex

	q.writeIndexChanged(old, account)
	q.PrebufForce()
	q.logf("write flush: write index %d -> %d", old, q.writeIndex)
	q.observe()
}
