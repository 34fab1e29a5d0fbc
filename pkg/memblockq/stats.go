// ABOUTME: Cumulative queue statistics
// ABOUTME: Always collected, independent of Prometheus export
package memblockq

// Stats is a snapshot of a queue's lifetime counters
type Stats struct {
	Pushes       int64 // Successful Push calls
	BytesPushed  int64
	BytesDropped int64 // Bytes consumed through Drop
	BytesRewound int64
	BytesFlushed int64 // Unread bytes discarded by FlushRead

	Overruns     int64 // Pushes that grew the queue past maxlength
	BytesOverrun int64 // Unread bytes discarded by overruns
	Underruns    int64 // Transitions back into prebuffering after data was readable
	ShortDrops   int64 // Drops clamped at the write index

	Merges         int64 // Pushes that extended the previous entry
	BlocksReleased int64 // Entries released by overwrite, eviction or flush
	MaxLength      int64 // High-water mark of Length
}
