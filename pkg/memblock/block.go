// ABOUTME: Reference-counted memory blocks with scoped byte access
// ABOUTME: Blocks are shared by queues, chunks and callers and freed on last Unref
package memblock

import (
	"fmt"
	"sync/atomic"
)

// Type describes where a block's memory comes from
type Type int

const (
	// TypePool blocks are carved from a Pool and returned to it when freed
	TypePool Type = iota
	// TypeAppended blocks own a private heap slice
	TypeAppended
	// TypeFixed blocks wrap caller-owned memory
	TypeFixed
)

// String returns a human-readable block type
func (t Type) String() string {
	switch t {
	case TypePool:
		return "pool"
	case TypeAppended:
		return "appended"
	case TypeFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Block is a fixed-size byte buffer shared through reference counting.
//
// Every holder (a queue entry, a chunk handed to a caller, an in-flight
// Acquire) owns one reference. The underlying memory is recycled when the
// last reference is dropped. Reference counting is atomic so blocks can be
// handed between goroutines; the bytes themselves are not synchronized.
type Block struct {
	data     []byte
	typ      Type
	readOnly bool
	pool     *Pool

	refs     atomic.Int32
	acquired atomic.Int32
}

// NewFixed wraps data in a block without copying it. The caller must not
// modify data while the block is alive if readOnly is set.
func NewFixed(data []byte, readOnly bool) *Block {
	b := &Block{
		data:     data,
		typ:      TypeFixed,
		readOnly: readOnly,
	}
	b.refs.Store(1)
	return b
}

// NewAppended allocates a private block of the given size
func NewAppended(size int) *Block {
	b := &Block{
		data: make([]byte, size),
		typ:  TypeAppended,
	}
	b.refs.Store(1)
	return b
}

// FromBytes allocates a block holding a copy of data
func FromBytes(data []byte) *Block {
	b := NewAppended(len(data))
	copy(b.data, data)
	return b
}

// Len returns the size of the block in bytes
func (b *Block) Len() int {
	return len(b.data)
}

// Type returns the block's memory type
func (b *Block) Type() Type {
	return b.typ
}

// IsReadOnly reports whether the block's bytes must not be written
func (b *Block) IsReadOnly() bool {
	return b.readOnly
}

// RefCount returns the current number of references
func (b *Block) RefCount() int {
	return int(b.refs.Load())
}

// Ref adds a reference and returns the block for chaining
func (b *Block) Ref() *Block {
	if b.refs.Add(1) <= 1 {
		panic("memblock: Ref on freed block")
	}
	return b
}

// Unref drops a reference. The block is freed when none remain.
func (b *Block) Unref() {
	n := b.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic(fmt.Sprintf("memblock: Unref on freed %s block", b.typ))
	}
	b.free()
}

// Acquire grants access to the block's bytes until the matching Release.
// An acquired block holds its own reference, so it cannot be freed while
// the returned slice is in use.
func (b *Block) Acquire() []byte {
	b.Ref()
	b.acquired.Add(1)
	return b.data
}

// Release ends an access started by Acquire
func (b *Block) Release() {
	if b.acquired.Add(-1) < 0 {
		panic("memblock: Release without Acquire")
	}
	b.Unref()
}

// IsAcquired reports whether any Acquire is outstanding
func (b *Block) IsAcquired() bool {
	return b.acquired.Load() > 0
}

func (b *Block) free() {
	if b.typ == TypePool && b.pool != nil {
		b.pool.put(b.data)
	}
	b.data = nil
}
