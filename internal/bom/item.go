// Package bom holds the extracted line-item model shared by the extraction
// pipeline, the review surfaces and the form generator.
package bom

// Item is one Bill-of-Materials row recovered by OCR.
//
// Items leave the extraction pipeline with NeedsReview set and at least one
// review note. Only a reviewer flips NeedsReview back to false.
type Item struct {
	LineNo      int    `json:"line_no"`
	Description string `json:"description"`
	NSN         string `json:"nsn"`
	Qty         int    `json:"qty"`

	// Confidence scores (0-100)
	DescriptionConfidence float64 `json:"description_confidence"`
	NSNConfidence         float64 `json:"nsn_confidence"`
	QtyConfidence         float64 `json:"qty_confidence"`

	NeedsReview bool     `json:"needs_review"`
	ReviewNotes []string `json:"review_notes"`
}

// OverallConfidence is the mean of the three field confidences.
func (it *Item) OverallConfidence() float64 {
	return (it.DescriptionConfidence + it.NSNConfidence + it.QtyConfidence) / 3
}

// AddReviewNote records why the item needs review and marks it pending.
func (it *Item) AddReviewNote(note string) {
	it.ReviewNotes = append(it.ReviewNotes, note)
	it.NeedsReview = true
}

// Verify marks the item as checked by a reviewer.
func (it *Item) Verify() {
	it.NeedsReview = false
}

// Items is the working list owned by a single extraction/review session.
type Items []Item

// PendingCount returns how many items still need review.
func (l Items) PendingCount() int {
	n := 0
	for i := range l {
		if l[i].NeedsReview {
			n++
		}
	}
	return n
}

// AllPending reports whether every item still needs review. An empty list
// reports true, matching the upload response of the review surface.
func (l Items) AllPending() bool {
	for i := range l {
		if !l[i].NeedsReview {
			return false
		}
	}
	return true
}

// AverageConfidence returns the mean overall confidence, or 0 for an empty list.
func (l Items) AverageConfidence() float64 {
	if len(l) == 0 {
		return 0
	}
	var sum float64
	for i := range l {
		sum += l[i].OverallConfidence()
	}
	return sum / float64(len(l))
}

// Clone returns a deep copy so a reviewer can edit without touching the
// pipeline's output.
func (l Items) Clone() Items {
	if l == nil {
		return nil
	}
	out := make(Items, len(l))
	for i, it := range l {
		out[i] = it
		if it.ReviewNotes != nil {
			out[i].ReviewNotes = append([]string(nil), it.ReviewNotes...)
		}
	}
	return out
}
