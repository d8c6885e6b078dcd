// Package timeline answers "which transcript segment is active at offset T"
// queries over an immutable, sorted segment sequence.
package timeline

import (
	"sort"
	"strings"

	"github.com/mfolsom/drivelog/internal/models"
)

// Index is a read-only lookup structure over transcript segments, ordered
// by StartOffset. Lookups run once per rendered frame, so both query paths
// are binary searches.
type Index struct {
	segments []models.TranscriptSegment
}

// New builds an Index. The input is sorted defensively by StartOffset;
// recognizers usually emit ordered segments but are not trusted to.
func New(segments []models.TranscriptSegment) *Index {
	sorted := append([]models.TranscriptSegment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartOffset < sorted[j].StartOffset
	})
	return &Index{segments: sorted}
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int {
	return len(ix.segments)
}

// SegmentAt returns the last segment whose StartOffset ≤ offset. A segment
// stays active until the next one starts, even past its nominal duration,
// which tolerates gaps in transcription coverage. Returns false when the
// offset precedes the first segment or the index is empty.
func (ix *Index) SegmentAt(offset float64) (models.TranscriptSegment, bool) {
	// First index with StartOffset > offset; the active segment sits just
	// before it.
	i := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].StartOffset > offset
	})
	if i == 0 {
		return models.TranscriptSegment{}, false
	}
	return ix.segments[i-1], true
}

// SegmentsWithin returns the contiguous subrange whose StartOffset falls in
// [offset-window, offset+window].
func (ix *Index) SegmentsWithin(offset, window float64) []models.TranscriptSegment {
	lo := offset - window
	hi := offset + window

	start := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].StartOffset >= lo
	})
	end := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].StartOffset > hi
	})
	if start >= end {
		return nil
	}
	return ix.segments[start:end]
}

// Snippet returns display text for a caption at the given offset: the
// joined text of segments within the window, falling back to the active
// segment, or "" when nothing qualifies.
func (ix *Index) Snippet(offset, window float64) string {
	within := ix.SegmentsWithin(offset, window)
	if len(within) == 0 {
		seg, ok := ix.SegmentAt(offset)
		if !ok {
			return ""
		}
		return strings.TrimSpace(seg.Text)
	}

	parts := make([]string, 0, len(within))
	for _, seg := range within {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
