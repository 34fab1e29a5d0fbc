// ABOUTME: Queue type, construction and index bookkeeping
// ABOUTME: Shared helpers for prebuffer state, backlog eviction and overrun handling
package memblockq

import (
	"fmt"
	"log"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// defaultSilenceFrames sizes the zero block used when no silence is given
const defaultSilenceFrames = 1024

// State is the readability of a queue
type State int

const (
	// StatePrebuffering queues hold back data until prebuf bytes are available
	StatePrebuffering State = iota
	// StateReadable queues hand out data and silence
	StateReadable
)

// String returns a human-readable state
func (s State) String() string {
	switch s {
	case StatePrebuffering:
		return "prebuffering"
	case StateReadable:
		return "readable"
	default:
		return "unknown"
	}
}

// Queue is a position-indexed queue of memory block chunks.
//
// Data is written at the write index and read at the read index, both
// absolute byte positions in the stream. Gaps between written chunks read
// back as silence. Consumed data is kept for maxrewind bytes so the read
// index can be moved back.
//
// A Queue is not safe for concurrent use. Blocks handed out by Peek and
// PeekFixedSize are reference counted and may cross goroutines.
type Queue struct {
	name    string
	entries entryList

	readIndex  int64
	writeIndex int64
	origin     int64 // read index never moves before this

	base      int
	maxLength int
	tLength   int
	prebuf    int
	minReq    int
	maxRewind int

	inPrebuf bool

	// bytes announced through PopMissing and not yet written
	requested int64

	silence memblock.Chunk
	aligner aligner
	pool    *memblock.Pool

	stats     Stats
	metrics   *queueMetrics
	debug     bool
	onOverrun func(dropped int)
}

// New creates a queue whose read and write index start at index.
//
// frameSize is the alignment unit of every length and offset. attr is
// normalized the same way the setters normalize it. silence is the chunk
// returned for gaps; a zero chunk selects zeroed frames. The queue takes
// its own reference to silence.
func New(name string, index int64, attr Attr, frameSize int, silence memblock.Chunk, opts ...Option) (*Queue, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size: %d", frameSize)
	}
	if !silence.IsZero() {
		if err := silence.Validate(); err != nil {
			return nil, fmt.Errorf("invalid silence: %w", err)
		}
	}

	o := applyOptions(opts...)

	q := &Queue{
		name:       name,
		readIndex:  index,
		writeIndex: index,
		origin:     index,
		base:       frameSize,
		inPrebuf:   true,
		pool:       o.pool,
		debug:      o.debug,
		onOverrun:  o.onOverrun,
	}
	q.aligner.base = frameSize

	q.SetMaxLength(attr.MaxLength)
	q.SetTLength(attr.TLength)
	q.SetMinReq(attr.MinReq)
	q.SetPrebuf(attr.Prebuf)
	q.SetMaxRewind(attr.MaxRewind)
	q.SetSilence(silence)

	if o.registerer != nil {
		m, err := newQueueMetrics(o.registerer, name)
		if err != nil {
			q.silence.Unref()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		q.metrics = m
	}

	q.updatePrebuf()
	q.observe()

	if q.debug {
		log.Printf("[%s] created: index=%d base=%d %s", name, index, frameSize, q.Attr())
	}
	return q, nil
}

// NewForFormat creates a queue aligned to the frame size of format
func NewForFormat(name string, index int64, attr Attr, format audio.Format, opts ...Option) (*Queue, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	return New(name, index, attr, format.FrameSize(), memblock.Chunk{}, opts...)
}

// Free releases every queued block, the silence chunk and the queue's metrics.
// The queue must not be used afterwards.
func (q *Queue) Free() {
	q.stats.BlocksReleased += int64(q.entries.clear())
	q.aligner.flush()
	q.silence.Unref()
	q.silence = memblock.Chunk{}
	if q.metrics != nil {
		q.metrics.unregister()
		q.metrics = nil
	}
	if q.debug {
		log.Printf("[%s] freed", q.name)
	}
}

// Name returns the queue's name
func (q *Queue) Name() string { return q.name }

// ReadIndex returns the absolute read position
func (q *Queue) ReadIndex() int64 { return q.readIndex }

// WriteIndex returns the absolute write position
func (q *Queue) WriteIndex() int64 { return q.writeIndex }

// Base returns the frame size every length must be a multiple of
func (q *Queue) Base() int { return q.base }

// Length returns the readable byte count, min(write-read, maxlength) and
// never negative
func (q *Queue) Length() int {
	if q.writeIndex <= q.readIndex {
		return 0
	}
	return int(min(q.writeIndex-q.readIndex, int64(q.maxLength)))
}

// NBlocks returns the number of entries held, including rewind history
func (q *Queue) NBlocks() int {
	return q.entries.len()
}

// IsEmpty reports whether the queue holds no entries at all
func (q *Queue) IsEmpty() bool {
	return q.entries.len() == 0
}

// State returns whether the queue is prebuffering or readable
func (q *Queue) State() State {
	if q.inPrebuf {
		return StatePrebuffering
	}
	return StateReadable
}

// IsReadable reports whether Peek may return data
func (q *Queue) IsReadable() bool {
	return !q.inPrebuf
}

// Stats returns the queue's lifetime counters
func (q *Queue) Stats() Stats {
	return q.stats
}

// updatePrebuf moves between prebuffering and readable after any change
// of the indices or of prebuf
func (q *Queue) updatePrebuf() {
	if q.inPrebuf {
		if q.Length() >= q.prebuf {
			q.inPrebuf = false
			q.logf("prebuffering complete: %d bytes queued", q.Length())
		}
		return
	}

	if q.prebuf > 0 && q.readIndex >= q.writeIndex {
		q.inPrebuf = true
		q.stats.Underruns++
		if q.metrics != nil {
			q.metrics.underruns.Inc()
		}
		q.logf("underrun at %d, prebuffering %d bytes", q.readIndex, q.prebuf)
	}
}

// dropBacklog releases entries that fell out of the rewind window
func (q *Queue) dropBacklog() {
	n := q.entries.dropBefore(q.readIndex - int64(q.maxRewind))
	q.stats.BlocksReleased += int64(n)
}

// enforceMaxLength discards the oldest unread bytes once the queue grows
// past maxlength. The discarded bytes become rewind history.
func (q *Queue) enforceMaxLength() {
	over := q.writeIndex - q.readIndex - int64(q.maxLength)
	if over <= 0 {
		return
	}

	q.readIndex += over
	q.stats.Overruns++
	q.stats.BytesOverrun += over
	if q.metrics != nil {
		q.metrics.overruns.Inc()
	}
	q.logf("overrun: discarded %d unread bytes, read index now %d", over, q.readIndex)
	if q.onOverrun != nil {
		q.onOverrun(int(over))
	}
	q.dropBacklog()
}

// writeIndexChanged settles the outstanding request count after the
// write index moved from old. Unaccounted moves leave it untouched.
func (q *Queue) writeIndexChanged(old int64, account bool) {
	if !account {
		return
	}
	q.requested -= q.writeIndex - old
	if q.requested < 0 {
		q.requested = 0
	}
}

func (q *Queue) observe() {
	if l := int64(q.Length()); l > q.stats.MaxLength {
		q.stats.MaxLength = l
	}
	if q.metrics != nil {
		q.metrics.observe(q)
	}
}

func (q *Queue) logf(format string, args ...any) {
	if q.debug {
		log.Printf("[%s] "+format, append([]any{q.name}, args...)...)
	}
}

func (q *Queue) aligned(n int64) bool {
	return n%int64(q.base) == 0
}
