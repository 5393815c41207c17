package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

func contentHit(chunkID, documentID int64, content string) models.ChunkHit {
	return models.ChunkHit{
		ChunkID:    chunkID,
		DocumentID: documentID,
		ChunkIndex: int(chunkID),
		Score:      0.25,
		Content:    content,
	}
}

func defaultOpts() Options {
	return Options{
		MaxContextTokens:  1000,
		MaxTokensPerChunk: 200,
		MaxChunksExposed:  5,
		PerDocumentCap:    2,
	}
}

func TestBuildExposureRedactsEmailInContext(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "1")
	t.Setenv(config.EnvDLPBlockOnHigh, "0")

	hits := []models.ChunkHit{
		contentHit(1, 10, "reach the owner at demo.user@example.com for access"),
	}

	res, err := BuildExposure(hits, "who owns this?", defaultOpts())
	require.NoError(t, err)

	assert.Contains(t, res.Context, "[REDACTED:EMAIL]")
	assert.NotContains(t, res.Context, "demo.user@example.com")
	require.Len(t, res.ExposedHits, 1)
	assert.Contains(t, res.ExposedHits[0].Content, "[REDACTED:EMAIL]")
	assert.GreaterOrEqual(t, res.Redaction.Categories["email"], 1)
}

func TestBuildExposureAppliesSelectionLimits(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "0")

	hits := []models.ChunkHit{
		contentHit(1, 10, "first"),
		contentHit(2, 10, "second, same document"),
		contentHit(3, 11, "third"),
		contentHit(4, 12, "fourth"),
	}

	opts := defaultOpts()
	opts.PerDocumentCap = 1
	opts.MaxChunksExposed = 3

	res, err := BuildExposure(hits, "q", opts)
	require.NoError(t, err)

	require.Len(t, res.ExposedHits, 3)
	assert.Equal(t, int64(1), res.ExposedHits[0].ChunkID)
	assert.Equal(t, int64(3), res.ExposedHits[1].ChunkID)
	assert.Equal(t, int64(4), res.ExposedHits[2].ChunkID)
	assert.Equal(t, 3, res.Policy["exposed_chunks"])
	assert.Equal(t, 4, res.Policy["retrieved_candidates"])
}

func TestBuildExposurePerChunkTruncation(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "0")

	long := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	opts := defaultOpts()
	opts.MaxTokensPerChunk = 10

	res, err := BuildExposure([]models.ChunkHit{contentHit(1, 10, long)}, "q", opts)
	require.NoError(t, err)
	require.Len(t, res.ExposedHits, 1)

	n, err := CountTokens(res.ExposedHits[0].Content)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 10)
}

func TestBuildExposureHonorsGlobalBudget(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "0")

	long := strings.Repeat("retrieval exposure policy packing test sentence ", 60)
	hits := []models.ChunkHit{
		contentHit(1, 10, long),
		contentHit(2, 11, long),
		contentHit(3, 12, long),
		contentHit(4, 13, long),
	}

	opts := defaultOpts()
	opts.MaxContextTokens = 120

	res, err := BuildExposure(hits, "q", opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.Context)

	n, err := CountTokens(res.Context)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 120)
}

func TestBuildExposureBlocksOnHighSeverityChunk(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "1")
	t.Setenv(config.EnvDLPBlockOnHigh, "1")

	hits := []models.ChunkHit{
		contentHit(1, 10, "harmless passage"),
		contentHit(2, 11, "contains "+highSeverityMarker+" inside"),
	}

	_, err := BuildExposure(hits, "q", defaultOpts())
	require.Error(t, err)

	var block *PolicyBlockError
	require.True(t, errors.As(err, &block))
	require.NotNil(t, block.BlockedHit)
	assert.Equal(t, int64(2), block.BlockedHit.ChunkID)
	assert.Empty(t, block.BlockedHit.Content)
	assert.True(t, block.Stats.Blocked)
}

func TestBuildExposureEmptyHits(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "1")

	res, err := BuildExposure(nil, "anything", defaultOpts())
	require.NoError(t, err)

	assert.Empty(t, res.Context)
	assert.Empty(t, res.ExposedHits)
	assert.False(t, res.Redaction.Blocked)
	assert.Equal(t, 0, res.Policy["exposed_chunks"])
}

func TestBuildExposureContextUsesSeparator(t *testing.T) {
	t.Setenv(config.EnvDLPOnSend, "0")

	hits := []models.ChunkHit{
		contentHit(1, 10, "first passage"),
		contentHit(2, 11, "second passage"),
	}

	res, err := BuildExposure(hits, "q", defaultOpts())
	require.NoError(t, err)

	blocks := strings.Split(res.Context, models.ContextSeparator)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0], "chunk_id=1")
	assert.Contains(t, blocks[0], "first passage")
	assert.Contains(t, blocks[1], "chunk_id=2")
	assert.Contains(t, blocks[1], "second passage")
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(config.EnvMaxContextTokens, "")
	t.Setenv(config.EnvMaxTokensPerChunk, "")
	t.Setenv(config.EnvMaxChunksExposed, "7")
	t.Setenv(config.EnvPerDocumentCap, "3")

	opts, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxContextTokens, opts.MaxContextTokens)
	assert.Equal(t, config.DefaultMaxTokensPerChunk, opts.MaxTokensPerChunk)
	assert.Equal(t, 7, opts.MaxChunksExposed)
	assert.Equal(t, 3, opts.PerDocumentCap)

	t.Setenv(config.EnvMaxContextTokens, "not-a-number")
	_, err = OptionsFromEnv()
	require.Error(t, err)

	var invalid *ValidationError
	assert.True(t, errors.As(err, &invalid))
}
