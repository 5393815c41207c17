package audit

import (
	"time"

	"github.com/uptrace/bun"
)

// Audit rows are append-only: created exactly once, never mutated, never
// deleted by this engine. They are the compliance record of what left the
// system.

// RetrievalRequest is one row per search.
type RetrievalRequest struct {
	bun.BaseModel `bun:"table:retrieval_requests,alias:rr"`

	ID                 int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID             string    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	Feature            string    `bun:"feature,nullzero" json:"feature,omitempty"`
	Source             string    `bun:"source,nullzero" json:"source,omitempty"`
	Query              string    `bun:"query,notnull" json:"query"`
	K                  int       `bun:"k,notnull" json:"k"`
	EmbeddingModel     string    `bun:"embedding_model,notnull" json:"embedding_model"`
	QueryEmbedding     string    `bun:"query_embedding,notnull" json:"query_embedding,omitempty"`
	CandidatesReturned int       `bun:"candidates_returned,notnull" json:"candidates_returned"`
	CreatedAt          time.Time `bun:"created_at,notnull,nullzero,default:current_timestamp" json:"created_at"`
}

// RetrievalCandidate is one row per retrieved passage per request, stored
// pre-redaction. Rank is 1-based, dense, and unique within a request.
type RetrievalCandidate struct {
	bun.BaseModel `bun:"table:retrieval_candidates,alias:rc"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	RequestID  int64   `bun:"request_id,notnull" json:"request_id"`
	Rank       int     `bun:"rank,notnull" json:"rank"`
	ChunkID    int64   `bun:"chunk_id,notnull" json:"chunk_id"`
	Score      float64 `bun:"score,notnull" json:"score"`
	DocumentID int64   `bun:"document_id,notnull" json:"document_id"`
	ChunkIndex int     `bun:"chunk_index,notnull" json:"chunk_index"`
	Content    string  `bun:"content" json:"content"`
}

// RetrievalExposure is one row per thing shown or decided for a request.
type RetrievalExposure struct {
	bun.BaseModel `bun:"table:retrieval_exposures,alias:re"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	RequestID     int64     `bun:"request_id,notnull" json:"request_id"`
	Kind          string    `bun:"kind,notnull" json:"kind"`
	ChunksExposed int       `bun:"chunks_exposed,notnull" json:"chunks_exposed"`
	Content       string    `bun:"content,notnull" json:"content"`
	CreatedAt     time.Time `bun:"created_at,notnull,nullzero,default:current_timestamp" json:"created_at"`
}

// ExposureChunk records, per exposure, exactly which passage left the trust
// boundary, with its post-redaction text.
type ExposureChunk struct {
	bun.BaseModel `bun:"table:retrieval_exposure_chunks,alias:rec"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	ExposureID int64   `bun:"exposure_id,notnull" json:"exposure_id"`
	RequestID  int64   `bun:"request_id,notnull" json:"request_id"`
	Rank       int     `bun:"rank,notnull" json:"rank"`
	ChunkID    int64   `bun:"chunk_id,notnull" json:"chunk_id"`
	Score      float64 `bun:"score,notnull" json:"score"`
	DocumentID int64   `bun:"document_id,notnull" json:"document_id"`
	ChunkIndex int     `bun:"chunk_index,notnull" json:"chunk_index"`
	Content    string  `bun:"content" json:"content"`
}
