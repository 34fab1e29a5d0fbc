// ABOUTME: Chunk views into shared memory blocks
// ABOUTME: Provides copy and silence-fill helpers bracketed by Acquire/Release
package memblock

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned when writing into a read-only block
var ErrReadOnly = errors.New("block is read-only")

// Chunk is a view of Length bytes starting at Index inside Block.
// Several chunks may reference the same block.
type Chunk struct {
	Block  *Block
	Index  int
	Length int
}

// NewChunk wraps a whole block in a chunk without taking a reference
func NewChunk(b *Block) Chunk {
	return Chunk{Block: b, Length: b.Len()}
}

// ChunkFromBytes copies data into a new block and returns a chunk over it.
// The chunk owns the block's only reference.
func ChunkFromBytes(data []byte) Chunk {
	return NewChunk(FromBytes(data))
}

// IsZero reports whether the chunk references no block
func (c Chunk) IsZero() bool {
	return c.Block == nil
}

// Ref adds a reference to the chunk's block and returns the chunk
func (c Chunk) Ref() Chunk {
	if c.Block != nil {
		c.Block.Ref()
	}
	return c
}

// Unref drops the chunk's reference to its block
func (c Chunk) Unref() {
	if c.Block != nil {
		c.Block.Unref()
	}
}

// Validate checks that the view lies inside its block
func (c Chunk) Validate() error {
	if c.Block == nil {
		return fmt.Errorf("chunk has no block")
	}
	if c.Index < 0 || c.Length < 0 || c.Index+c.Length > c.Block.Len() {
		return fmt.Errorf("chunk [%d,+%d) outside block of %d bytes", c.Index, c.Length, c.Block.Len())
	}
	return nil
}

// Bytes returns a copy of the chunk's bytes
func (c Chunk) Bytes() []byte {
	out := make([]byte, c.Length)
	if c.Length == 0 {
		return out
	}

	src := c.Block.Acquire()
	copy(out, src[c.Index:c.Index+c.Length])
	c.Block.Release()
	return out
}

// Copy copies min(dst.Length, src.Length) bytes from src into dst and
// returns the number of bytes copied
func Copy(dst, src Chunk) (int, error) {
	if err := dst.writable(); err != nil {
		return 0, err
	}
	n := min(dst.Length, src.Length)
	if n == 0 {
		return 0, nil
	}

	d := dst.Block.Acquire()
	s := src.Block.Acquire()
	copy(d[dst.Index:dst.Index+n], s[src.Index:src.Index+n])
	src.Block.Release()
	dst.Block.Release()
	return n, nil
}

// FillPattern fills dst by repeating the bytes of pattern
func FillPattern(dst, pattern Chunk) error {
	if err := dst.writable(); err != nil {
		return err
	}
	if dst.Length == 0 || pattern.Length == 0 {
		return nil
	}

	d := dst.Block.Acquire()
	p := pattern.Block.Acquire()
	src := p[pattern.Index : pattern.Index+pattern.Length]
	out := d[dst.Index : dst.Index+dst.Length]
	for off := 0; off < len(out); {
		off += copy(out[off:], src)
	}
	pattern.Block.Release()
	dst.Block.Release()
	return nil
}

func (c Chunk) writable() error {
	if c.Block != nil && c.Block.IsReadOnly() {
		return fmt.Errorf("write %d bytes: %w", c.Length, ErrReadOnly)
	}
	return nil
}
