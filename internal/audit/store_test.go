package audit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	store := NewStore(bun.NewDB(sqldb, sqlitedialect.New()))
	require.NoError(t, store.InitTables(context.Background()))
	return store
}

func testHits(n int) []models.ChunkHit {
	hits := make([]models.ChunkHit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, models.ChunkHit{
			ChunkID:    int64(i + 1),
			DocumentID: int64(100 + i),
			ChunkIndex: i,
			Score:      float64(i) * 0.1,
			Content:    fmt.Sprintf("passage %d", i+1),
		})
	}
	return hits
}

func testRequestParams(hits []models.ChunkHit) RequestParams {
	return RequestParams{
		UserID:         "u1",
		Feature:        "qa",
		Source:         "test",
		Query:          "what is the refund policy?",
		K:              5,
		EmbeddingModel: "text-embedding-3-small",
		QueryEmbedding: "[0.1,0.2,0.3]",
		Candidates:     hits,
	}
}

func TestRecordRequestAndGetDetails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hits := testHits(3)
	id, err := store.RecordRequest(ctx, testRequestParams(hits))
	require.NoError(t, err)
	require.Positive(t, id)

	details, err := store.GetDetails(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, details.Request.ID)
	assert.Equal(t, "what is the refund policy?", details.Request.Query)
	assert.Equal(t, "u1", details.Request.UserID)
	assert.Equal(t, 3, details.Request.CandidatesReturned)
	assert.Empty(t, details.Request.QueryEmbedding)
	assert.False(t, details.Request.CreatedAt.IsZero())

	require.Len(t, details.Candidates, 3)
	for i, c := range details.Candidates {
		assert.Equal(t, i+1, c.Rank)
		assert.Equal(t, hits[i].ChunkID, c.ChunkID)
		assert.Equal(t, hits[i].Content, c.Content)
	}
	assert.Empty(t, details.Exposures)
}

func TestRecordRequestValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []RequestParams{
		func(p RequestParams) RequestParams { p.Query = "  "; return p }(testRequestParams(nil)),
		func(p RequestParams) RequestParams { p.K = 0; return p }(testRequestParams(nil)),
		func(p RequestParams) RequestParams { p.EmbeddingModel = ""; return p }(testRequestParams(nil)),
		func(p RequestParams) RequestParams { p.QueryEmbedding = ""; return p }(testRequestParams(nil)),
	}
	for _, p := range cases {
		_, err := store.RecordRequest(ctx, p)
		require.ErrorIs(t, err, ErrValidation)
	}

	reqs, err := store.ListRecentRequests(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRecordExposureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hits := testHits(2)
	reqID, err := store.RecordRequest(ctx, testRequestParams(hits))
	require.NoError(t, err)

	expID, err := store.RecordExposure(ctx, reqID, models.ExposureKindLLMContext, "assembled context", hits)
	require.NoError(t, err)
	require.Positive(t, expID)

	_, err = store.RecordExposure(ctx, reqID, models.ExposureKindPolicyDecision, `{"exposed_chunks":2}`, nil)
	require.NoError(t, err)

	details, err := store.GetDetails(ctx, reqID)
	require.NoError(t, err)
	require.Len(t, details.Exposures, 2)
	assert.Equal(t, models.ExposureKindLLMContext, details.Exposures[0].Kind)
	assert.Equal(t, 2, details.Exposures[0].ChunksExposed)
	assert.Equal(t, models.ExposureKindPolicyDecision, details.Exposures[1].Kind)
	assert.Equal(t, 0, details.Exposures[1].ChunksExposed)
}

func TestRecordExposureValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordExposure(ctx, 0, models.ExposureKindLLMContext, "c", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = store.RecordExposure(ctx, 1, "", "c", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = store.RecordExposure(ctx, 1, models.ExposureKindLLMContext, "   ", nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestListRecentRequestsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		p := testRequestParams(nil)
		p.Query = fmt.Sprintf("question %d", i)
		id, err := store.RecordRequest(ctx, p)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	reqs, err := store.ListRecentRequests(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, ids[2], reqs[0].ID)
	assert.Equal(t, ids[1], reqs[1].ID)

	_, err = store.ListRecentRequests(ctx, 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = store.ListRecentRequests(ctx, 101)
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetDetailsLatestAndMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetDetails(ctx, 0)
	require.ErrorIs(t, err, ErrValidation)

	first, err := store.RecordRequest(ctx, testRequestParams(nil))
	require.NoError(t, err)
	second, err := store.RecordRequest(ctx, testRequestParams(nil))
	require.NoError(t, err)

	details, err := store.GetDetails(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, second, details.Request.ID)

	details, err = store.GetDetails(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, details.Request.ID)

	_, err = store.GetDetails(ctx, second+1000)
	require.ErrorIs(t, err, ErrValidation)

	_, err = store.GetDetails(ctx, -1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestEnabledFollowsEnvironment(t *testing.T) {
	t.Setenv(config.EnvAuditSearches, "")
	assert.False(t, Enabled())

	for _, v := range []string{"1", "true", "yes", "on"} {
		t.Setenv(config.EnvAuditSearches, v)
		assert.True(t, Enabled())
	}

	t.Setenv(config.EnvAuditSearches, "0")
	assert.False(t, Enabled())
}
