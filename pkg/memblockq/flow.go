// ABOUTME: Flow control: missing byte accounting and prebuffer control
// ABOUTME: PopMissing hands out each shortfall once until the producer fills it
package memblockq

// Missing returns how many bytes are needed to refill the queue to tlength,
// or 0 when that is less than minreq
func (q *Queue) Missing() int {
	l := q.Length()
	if l >= q.tLength {
		return 0
	}
	if d := q.tLength - l; d >= q.minReq {
		return d
	}
	return 0
}

// PopMissing returns the bytes the producer should be asked for now and
// marks them as requested. Bytes already requested and not yet written
// are not reported again.
func (q *Queue) PopMissing() int {
	shortfall := int64(max(q.tLength-q.Length(), 0))
	m := shortfall - q.requested
	if m <= 0 {
		return 0
	}

	q.requested += m
	q.logf("requesting %d bytes (%d outstanding)", m, q.requested)
	return int(m)
}

// Requested returns the bytes handed out by PopMissing that have not been
// written yet
func (q *Queue) Requested() int64 {
	return q.requested
}

// PrebufActive reports whether reads are held back for prebuffering
func (q *Queue) PrebufActive() bool {
	return q.inPrebuf
}

// PrebufDisable makes the queue readable regardless of how much is queued.
// It prebuffers again after the next underrun.
func (q *Queue) PrebufDisable() {
	q.inPrebuf = false
	q.observe()
}

// PrebufForce holds reads back until prebuf bytes are queued again.
// It has no effect when prebuf is 0.
func (q *Queue) PrebufForce() {
	if q.prebuf > 0 {
		q.inPrebuf = true
	}
	q.updatePrebuf()
	q.observe()
}
