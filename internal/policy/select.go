package policy

import "github.com/NedPK/ai-retrieval-audit/internal/models"

// SelectHits walks the rank-ordered candidates and admits a bounded subset:
// at most maxChunks in total and at most perDocumentCap from any one source
// document. Input order is preserved among survivors. Non-positive caps
// yield an empty selection, not an error.
func SelectHits(hits []models.ChunkHit, perDocumentCap, maxChunks int) []models.ChunkHit {
	selected := make([]models.ChunkHit, 0, len(hits))
	if perDocumentCap <= 0 || maxChunks <= 0 {
		return selected
	}

	perDoc := map[int64]int{}
	for _, h := range hits {
		if perDoc[h.DocumentID] >= perDocumentCap {
			continue
		}
		selected = append(selected, h)
		perDoc[h.DocumentID]++
		if len(selected) >= maxChunks {
			break
		}
	}
	return selected
}
