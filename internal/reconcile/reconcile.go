// Package reconcile merges listing records with document records into one
// logical record per entity.
package reconcile

import "github.com/tkummer/hrfetch/internal/model"

// Merge pairs listing and document records positionally: listings[i] with
// documents[i], overlapping prefix only, anything past the shorter sequence
// dropped. The listing contributes the grid fields, the document overlays
// its own; DocumentsAvailable and History do not survive the merge.
//
// Positional pairing leans on the single-entity-per-query norm. Callers
// must not feed it multi-entity listings and documents of differing order.
func Merge(listings []model.ListingRecord, documents []model.DocumentRecord) []model.MergedRecord {
	n := len(listings)
	if len(documents) < n {
		n = len(documents)
	}

	merged := make([]model.MergedRecord, 0, n)
	for i := 0; i < n; i++ {
		merged = append(merged, model.MergedRecord{
			Name:           listings[i].Name,
			Court:          listings[i].Court,
			Seat:           listings[i].Seat,
			Status:         listings[i].Status,
			DocumentRecord: documents[i],
		})
	}
	return merged
}
