// ABOUTME: Moves the readable content of one queue onto the end of another
// ABOUTME: Gaps in the source become seeks in the destination
package memblockq

import "fmt"

// Splice appends everything readable in src at q's write index and
// consumes it from src. Data is pushed with PushAlign, gaps are skipped
// with an accounted relative seek. q stops prebuffering so spliced data is
// readable at once. Splicing stops early when src starts prebuffering.
func (q *Queue) Splice(src *Queue) error {
	q.PrebufDisable()

	for {
		if src.inPrebuf || src.readIndex >= src.writeIndex {
			return nil
		}
		// a piece never exceeds what q can hold in one push
		p, ok := src.run(src.readIndex, min(int64(q.maxLength), src.writeIndex-src.readIndex))
		if !ok {
			return nil
		}

		if p.silence {
			if err := q.Seek(p.length, SeekRelative, true); err != nil {
				return fmt.Errorf("splice %s: %w", src.name, err)
			}
		} else {
			c := p.chunk.Ref()
			err := q.PushAlign(c)
			c.Unref()
			if err != nil {
				return fmt.Errorf("splice %s: %w", src.name, err)
			}
		}

		if err := src.Drop(int(p.length)); err != nil {
			return fmt.Errorf("splice %s: %w", src.name, err)
		}
	}
}
