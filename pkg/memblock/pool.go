// ABOUTME: Block pool recycling fixed-size slots between blocks
// ABOUTME: Tracks allocation statistics for observability
package memblock

import (
	"sync"
	"sync/atomic"
)

// DefaultSlotSize matches a typical audio period for 48kHz stereo 24-bit
const DefaultSlotSize = 64 * 1024

// Pool hands out blocks backed by recycled slots of SlotSize bytes.
// Requests larger than a slot fall back to appended blocks.
type Pool struct {
	slotSize int
	slots    sync.Pool

	allocated atomic.Int64
	freed     atomic.Int64
	tooLarge  atomic.Int64
	inUse     atomic.Int64
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	Allocated int64 // Blocks handed out from slots
	Freed     int64 // Slots returned
	TooLarge  int64 // Requests served by appended blocks
	InUse     int64 // Slots currently referenced
}

// NewPool creates a pool with the given slot size (DefaultSlotSize if <= 0)
func NewPool(slotSize int) *Pool {
	if slotSize <= 0 {
		slotSize = DefaultSlotSize
	}

	p := &Pool{slotSize: slotSize}
	p.slots.New = func() any {
		buf := make([]byte, p.slotSize)
		return &buf
	}
	return p
}

// SlotSize returns the size of a pool slot
func (p *Pool) SlotSize() int {
	return p.slotSize
}

// Alloc returns a block of exactly size bytes with one reference.
// The contents of a recycled slot are not cleared.
func (p *Pool) Alloc(size int) *Block {
	if size > p.slotSize {
		p.tooLarge.Add(1)
		return NewAppended(size)
	}

	buf := p.slots.Get().(*[]byte)
	b := &Block{
		data: (*buf)[:size],
		typ:  TypePool,
		pool: p,
	}
	b.refs.Store(1)

	p.allocated.Add(1)
	p.inUse.Add(1)
	return b
}

// AllocZeroed is Alloc with the returned bytes cleared
func (p *Pool) AllocZeroed(size int) *Block {
	b := p.Alloc(size)
	clear(b.data)
	return b
}

// Stats returns the pool counters
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Freed:     p.freed.Load(),
		TooLarge:  p.tooLarge.Load(),
		InUse:     p.inUse.Load(),
	}
}

func (p *Pool) put(data []byte) {
	buf := data[:cap(data)]
	p.slots.Put(&buf)
	p.freed.Add(1)
	p.inUse.Add(-1)
}
