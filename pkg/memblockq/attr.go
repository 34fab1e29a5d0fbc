// ABOUTME: Buffer attributes and their setters
// ABOUTME: Each setter rounds to the frame size and cascades to dependent attributes
package memblockq

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// Attr holds the buffer attributes of a queue in bytes.
//
// Prebuf may be -1 to select the default, tlength + frame - minreq.
// TLength 0 selects maxlength.
type Attr struct {
	MaxLength int `yaml:"maxlength" json:"maxlength"`
	TLength   int `yaml:"tlength" json:"tlength"`
	Prebuf    int `yaml:"prebuf" json:"prebuf"`
	MinReq    int `yaml:"minreq" json:"minreq"`
	MaxRewind int `yaml:"maxrewind" json:"maxrewind"`
}

// String returns a compact attribute summary
func (a Attr) String() string {
	return fmt.Sprintf("maxlength=%d tlength=%d prebuf=%d minreq=%d maxrewind=%d",
		a.MaxLength, a.TLength, a.Prebuf, a.MinReq, a.MaxRewind)
}

func roundUp(v, base int) int {
	if r := v % base; r != 0 {
		v += base - r
	}
	return v
}

func roundDown(v, base int) int {
	return v - v%base
}

// Attr returns the normalized attributes in effect
func (q *Queue) Attr() Attr {
	return Attr{
		MaxLength: q.maxLength,
		TLength:   q.tLength,
		Prebuf:    q.prebuf,
		MinReq:    q.minReq,
		MaxRewind: q.maxRewind,
	}
}

// ApplyAttr sets all attributes in dependency order
func (q *Queue) ApplyAttr(a Attr) {
	q.SetMaxLength(a.MaxLength)
	q.SetTLength(a.TLength)
	q.SetMinReq(a.MinReq)
	q.SetPrebuf(a.Prebuf)
	q.SetMaxRewind(a.MaxRewind)
}

// MaxLength returns the maximum number of unread bytes
func (q *Queue) MaxLength() int { return q.maxLength }

// TLength returns the target fill level
func (q *Queue) TLength() int { return q.tLength }

// Prebuf returns the bytes required before reads start
func (q *Queue) Prebuf() int { return q.prebuf }

// MinReq returns the smallest request reported by Missing
func (q *Queue) MinReq() int { return q.minReq }

// MaxRewind returns how many consumed bytes are kept for Rewind
func (q *Queue) MaxRewind() int { return q.maxRewind }

// SetMaxLength sets the maximum unread length, rounded up to the frame size
// and at least one frame. A smaller tlength follows it down and unread data
// beyond the new limit is discarded.
func (q *Queue) SetMaxLength(v int) {
	q.maxLength = max(roundUp(v, q.base), q.base)

	if q.tLength > q.maxLength {
		q.SetTLength(q.maxLength)
	}
	q.enforceMaxLength()
	q.observe()
}

// SetTLength sets the target length, rounded up to the frame size and
// capped at maxlength. 0 selects maxlength.
func (q *Queue) SetTLength(v int) {
	if v <= 0 {
		v = q.maxLength
	}
	q.tLength = min(roundUp(v, q.base), q.maxLength)

	if q.minReq > q.tLength {
		q.SetMinReq(q.tLength)
	}
	if q.prebuf > q.tLength+q.base-q.minReq {
		q.SetPrebuf(q.tLength + q.base - q.minReq)
	}
	q.observe()
}

// SetMinReq sets the minimum request, rounded down to the frame size and
// kept between one frame and tlength
func (q *Queue) SetMinReq(v int) {
	q.minReq = max(min(roundDown(v, q.base), q.tLength), q.base)

	if q.prebuf > q.tLength+q.base-q.minReq {
		q.SetPrebuf(q.tLength + q.base - q.minReq)
	}
	q.observe()
}

// SetPrebuf sets the prebuffer threshold, rounded up to the frame size and
// capped at tlength + frame - minreq. -1 selects that cap. Lowering prebuf
// to what is already queued makes the queue readable.
func (q *Queue) SetPrebuf(v int) {
	limit := q.tLength + q.base - q.minReq
	if v < 0 {
		v = limit
	}
	v = roundUp(v, q.base)
	q.prebuf = max(min(v, limit), 0)

	if q.prebuf <= 0 || q.Length() >= q.prebuf {
		q.inPrebuf = false
	}
	q.observe()
}

// SetMaxRewind sets the rewind history, rounded down to the frame size
func (q *Queue) SetMaxRewind(v int) {
	q.maxRewind = max(roundDown(v, q.base), 0)
	q.dropBacklog()
}

// SetSilence replaces the chunk returned for gaps. The queue takes its own
// reference. A zero chunk, or one shorter than a frame, selects zeroed
// frames; longer chunks are trimmed to whole frames.
func (q *Queue) SetSilence(c memblock.Chunk) {
	old := q.silence

	c.Length = roundDown(c.Length, q.base)
	if c.IsZero() || c.Length == 0 {
		size := q.base * defaultSilenceFrames
		q.silence = memblock.NewChunk(q.pool.AllocZeroed(size))
	} else {
		q.silence = c.Ref()
	}

	old.Unref()
}

// Silence returns the silence chunk without adding a reference
func (q *Queue) Silence() memblock.Chunk {
	return q.silence
}
