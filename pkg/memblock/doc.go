// ABOUTME: Shared memory block package
// ABOUTME: Reference-counted buffers, pools and chunk views used by the block queue
// Package memblock provides reference-counted memory blocks and chunk views.
//
// A Block is a fixed buffer whose lifetime is shared by every holder:
//
//	pool := memblock.NewPool(0)
//	b := pool.Alloc(4096)      // one reference, owned by the caller
//	c := memblock.NewChunk(b)  // a view, no extra reference
//	q.Push(c)                  // the queue takes its own reference
//	b.Unref()                  // caller is done; the queue keeps the data alive
//
// Raw bytes are only touched between Acquire and Release. An acquired block
// holds a reference, so it is never recycled while a slice is in use.
package memblock
