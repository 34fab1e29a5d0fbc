// ABOUTME: Sorted, non-overlapping list of queued chunks keyed by stream position
// ABOUTME: Handles overwrite-on-overlap, merging of adjacent views and backlog eviction
package memblockq

import (
	"slices"
	"sort"

	"github.com/Resonate-Protocol/blockq/pkg/memblock"
)

// entry is a chunk placed at an absolute stream position. The entry owns
// one reference to the chunk's block.
type entry struct {
	index int64
	chunk memblock.Chunk
}

func (e entry) end() int64 {
	return e.index + int64(e.chunk.Length)
}

// entryList keeps entries sorted by index. Entries never overlap, so their
// end positions are sorted as well and both can be binary searched.
type entryList struct {
	items []entry
}

func (l *entryList) len() int {
	return len(l.items)
}

// search returns the position of the first entry ending after pos
func (l *entryList) search(pos int64) int {
	return sort.Search(len(l.items), func(i int) bool {
		return l.items[i].end() > pos
	})
}

// at returns the entry covering pos, or the distance to the next entry.
// gap is -1 when nothing is stored at or after pos.
func (l *entryList) at(pos int64) (e *entry, gap int64) {
	i := l.search(pos)
	if i == len(l.items) {
		return nil, -1
	}
	if l.items[i].index <= pos {
		return &l.items[i], 0
	}
	return nil, l.items[i].index - pos
}

// write places c at index w, replacing whatever was stored in
// [w, w+c.Length). Partially covered neighbours are trimmed and kept.
// It returns whether c was merged into its predecessor and how many
// entries were released.
func (l *entryList) write(w int64, c memblock.Chunk) (merged bool, released int) {
	e := w + int64(c.Length)

	lo := l.search(w)
	hi := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].index >= e
	})

	var head, tail *entry
	if lo < hi {
		first := l.items[lo]
		last := l.items[hi-1]

		if first.index < w {
			h := first
			h.chunk.Length = int(w - first.index)
			head = &h
		}
		if last.end() > e {
			t := last
			d := int(e - last.index)
			t.index = e
			t.chunk.Index += d
			t.chunk.Length -= d
			tail = &t
		}

		for i := lo; i < hi; i++ {
			kept := (i == lo && head != nil) || (i == hi-1 && tail != nil)
			if !kept {
				l.items[i].chunk.Unref()
				released++
			}
		}

		// One entry split in two: both halves need a reference
		if lo == hi-1 && head != nil && tail != nil {
			tail.chunk.Ref()
		}
	}

	seg := make([]entry, 0, 3)
	switch {
	case head != nil && mergeable(*head, w, c):
		head.chunk.Length += c.Length
		seg = append(seg, *head)
		merged = true
	case head == nil && lo > 0 && mergeable(l.items[lo-1], w, c):
		l.items[lo-1].chunk.Length += c.Length
		merged = true
	default:
		if head != nil {
			seg = append(seg, *head)
		}
	}
	if !merged {
		seg = append(seg, entry{index: w, chunk: c.Ref()})
	}
	if tail != nil {
		seg = append(seg, *tail)
	}

	l.items = slices.Replace(l.items, lo, hi, seg...)
	return merged, released
}

// mergeable reports whether c continues prev both in the stream and
// inside the same block
func mergeable(prev entry, w int64, c memblock.Chunk) bool {
	return prev.chunk.Block == c.Block &&
		prev.end() == w &&
		prev.chunk.Index+prev.chunk.Length == c.Index
}

// dropBefore releases every entry that ends at or before boundary
func (l *entryList) dropBefore(boundary int64) int {
	n := l.search(boundary)
	if n == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		l.items[i].chunk.Unref()
	}
	clear(l.items[:n])
	l.items = l.items[n:]
	return n
}

// clear releases every entry
func (l *entryList) clear() int {
	n := len(l.items)
	for i := range l.items {
		l.items[i].chunk.Unref()
	}
	clear(l.items)
	l.items = l.items[:0]
	return n
}
