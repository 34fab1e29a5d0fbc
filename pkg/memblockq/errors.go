// ABOUTME: Error values returned by the block queue
// ABOUTME: Alignment/overflow are caller bugs, not-readable/empty are transient
package memblockq

import "errors"

var (
	// ErrAlignment is returned when a length or offset is not a multiple of the frame size
	ErrAlignment = errors.New("memblockq: not aligned to frame size")

	// ErrOverflow is returned when a single chunk is longer than maxlength
	ErrOverflow = errors.New("memblockq: chunk exceeds maxlength")

	// ErrNotReadable is returned by Peek while the queue is prebuffering
	ErrNotReadable = errors.New("memblockq: prebuffering")

	// ErrEmpty is returned by Peek when nothing is queued at the read index
	ErrEmpty = errors.New("memblockq: empty")
)

// IsTransient reports whether err is an expected condition a consumer
// should poll around rather than treat as a bug
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotReadable) || errors.Is(err, ErrEmpty)
}
