package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

func hit(chunkID, documentID int64) models.ChunkHit {
	return models.ChunkHit{ChunkID: chunkID, DocumentID: documentID, Content: "c"}
}

func TestSelectHitsPerDocumentCapAndMaxChunks(t *testing.T) {
	hits := []models.ChunkHit{hit(1, 10), hit(2, 10), hit(3, 11), hit(4, 12)}

	selected := SelectHits(hits, 1, 3)

	require.Len(t, selected, 3)
	assert.Equal(t, int64(1), selected[0].ChunkID)
	assert.Equal(t, int64(3), selected[1].ChunkID)
	assert.Equal(t, int64(4), selected[2].ChunkID)
}

func TestSelectHitsBounds(t *testing.T) {
	hits := []models.ChunkHit{
		hit(1, 1), hit(2, 1), hit(3, 1), hit(4, 2), hit(5, 2), hit(6, 3), hit(7, 4),
	}

	selected := SelectHits(hits, 2, 4)

	assert.LessOrEqual(t, len(selected), 4)
	assert.LessOrEqual(t, len(selected), len(hits))

	perDoc := map[int64]int{}
	for _, h := range selected {
		perDoc[h.DocumentID]++
		assert.LessOrEqual(t, perDoc[h.DocumentID], 2)
	}
}

func TestSelectHitsPreservesOrder(t *testing.T) {
	hits := []models.ChunkHit{hit(5, 1), hit(3, 2), hit(9, 3), hit(1, 4)}

	selected := SelectHits(hits, 2, 10)

	require.Len(t, selected, 4)
	for i := range selected {
		assert.Equal(t, hits[i].ChunkID, selected[i].ChunkID)
	}
}

func TestSelectHitsNonPositiveCaps(t *testing.T) {
	hits := []models.ChunkHit{hit(1, 1), hit(2, 2)}

	assert.Empty(t, SelectHits(hits, 0, 5))
	assert.Empty(t, SelectHits(hits, 2, 0))
	assert.Empty(t, SelectHits(hits, -1, -1))
}

func TestSelectHitsEmptyInput(t *testing.T) {
	assert.Empty(t, SelectHits(nil, 2, 5))
}
