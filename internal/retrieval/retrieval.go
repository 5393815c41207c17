package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"github.com/NedPK/ai-retrieval-audit/internal/audit"
	"github.com/NedPK/ai-retrieval-audit/internal/chromemdb"
	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/db"
	"github.com/NedPK/ai-retrieval-audit/internal/embedding"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
	"github.com/NedPK/ai-retrieval-audit/internal/policy"
)

// Params identifies one search: the (already sanitized) query, the result
// count, and the optional audit attribution fields.
type Params struct {
	Query   string
	K       int
	UserID  string
	Feature string
	Source  string
}

// Result carries the ranked hits plus the audit request id, 0 when the
// search was not audited.
type Result struct {
	RequestID int64
	Hits      []models.ChunkHit
}

// SearchChunks runs a similarity search over the chunks table, best score
// (lowest cosine distance) first, and records the request plus its full
// candidate list when auditing is enabled. An audit failure never drops the
// already-computed hits unless strict mode is on.
func SearchChunks(ctx context.Context, bdb *bun.DB, store *audit.Store, embedder *embeddings.EmbedderImpl, embeddingModel string, p Params) (*Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, &policy.ValidationError{Message: "query must not be empty"}
	}
	if p.K <= 0 {
		return nil, &policy.ValidationError{Message: "k must be > 0"}
	}

	vec, err := embedding.EmbedQuery(ctx, embedder, p.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding returned empty vector")
	}
	vecText := embedding.VectorLiteral(vec)

	var chunks []db.Chunk
	err = bdb.NewSelect().
		Model(&chunks).
		Column("id", "document_id", "chunk_index", "content").
		ColumnExpr("c.embedding <=> ?::vector AS score", vecText).
		OrderExpr("score ASC").
		Limit(p.K).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]models.ChunkHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, models.ChunkHit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Score:      c.Score,
			Content:    c.Content,
		})
	}

	res := &Result{Hits: hits}

	if audit.Enabled() && store != nil {
		requestID, err := store.RecordRequest(ctx, audit.RequestParams{
			UserID:         p.UserID,
			Feature:        p.Feature,
			Source:         p.Source,
			Query:          p.Query,
			K:              p.K,
			EmbeddingModel: embeddingModel,
			QueryEmbedding: vecText,
			Candidates:     hits,
		})
		if err != nil {
			if config.AuditStrict() {
				return nil, err
			}
			log.Warn().Err(err).Msg("Audit record failed, returning unaudited result")
		} else {
			res.RequestID = requestID
		}
	}

	return res, nil
}

// SearchLocal runs the same similarity search against the embedded chromem
// collection. Local mode has no SQL store, so it is never audited; chromem
// similarities are converted to lower-is-closer distances.
func SearchLocal(ctx context.Context, mgr *chromemdb.Manager, embedder *embeddings.EmbedderImpl, p Params) (*Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, &policy.ValidationError{Message: "query must not be empty"}
	}
	if p.K <= 0 {
		return nil, &policy.ValidationError{Message: "k must be > 0"}
	}

	vec, err := embedding.EmbedQuery(ctx, embedder, p.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := mgr.Query(ctx, vec, p.K)
	if err != nil {
		return nil, fmt.Errorf("query local store: %w", err)
	}

	hits := make([]models.ChunkHit, 0, len(results))
	for _, r := range results {
		chunkID, _ := strconv.ParseInt(r.ID, 10, 64)
		documentID, _ := strconv.ParseInt(r.Metadata["document_id"], 10, 64)
		chunkIndex, _ := strconv.Atoi(r.Metadata["chunk_index"])
		hits = append(hits, models.ChunkHit{
			ChunkID:    chunkID,
			DocumentID: documentID,
			ChunkIndex: chunkIndex,
			Score:      1 - float64(r.Similarity),
			Content:    r.Content,
		})
	}

	log.Debug().Int("hits", len(hits)).Msg("Local search complete (unaudited)")
	return &Result{Hits: hits}, nil
}
