package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

// ErrValidation marks malformed audit input; nothing is written when a
// wrapped ErrValidation is returned.
var ErrValidation = errors.New("invalid audit input")

// AuditError wraps a datastore failure while writing or reading audit rows.
// Whether it aborts the caller's flow is governed by config.AuditStrict.
type AuditError struct {
	Op  string
	Err error
}

func (e *AuditError) Error() string { return fmt.Sprintf("audit %s: %v", e.Op, e.Err) }
func (e *AuditError) Unwrap() error { return e.Err }

// Enabled reports whether the record-request step runs at all. Absence of
// an audit record never blocks or alters the retrieval result.
func Enabled() bool { return config.AuditSearches() }

// Store appends audit rows under an existing bun connection. It holds no
// state of its own and is safe for unlimited concurrent use.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// InitTables creates the four audit tables when missing.
func (s *Store) InitTables(ctx context.Context) error {
	for _, model := range []any{
		(*RetrievalRequest)(nil),
		(*RetrievalCandidate)(nil),
		(*RetrievalExposure)(nil),
		(*ExposureChunk)(nil),
	} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return &AuditError{Op: "init", Err: err}
		}
	}
	return nil
}

// RequestParams carries everything recorded for one search.
type RequestParams struct {
	UserID         string
	Feature        string
	Source         string
	Query          string
	K              int
	EmbeddingModel string
	QueryEmbedding string
	Candidates     []models.ChunkHit
}

// RecordRequest inserts one request row plus one candidate row per supplied
// passage, atomically, and returns the generated request id.
func (s *Store) RecordRequest(ctx context.Context, p RequestParams) (int64, error) {
	if strings.TrimSpace(p.Query) == "" {
		return 0, fmt.Errorf("%w: query must not be empty", ErrValidation)
	}
	if p.K <= 0 {
		return 0, fmt.Errorf("%w: k must be > 0", ErrValidation)
	}
	if strings.TrimSpace(p.EmbeddingModel) == "" {
		return 0, fmt.Errorf("%w: embedding_model must not be empty", ErrValidation)
	}
	if strings.TrimSpace(p.QueryEmbedding) == "" {
		return 0, fmt.Errorf("%w: query_embedding must not be empty", ErrValidation)
	}

	req := &RetrievalRequest{
		UserID:             p.UserID,
		Feature:            p.Feature,
		Source:             p.Source,
		Query:              p.Query,
		K:                  p.K,
		EmbeddingModel:     p.EmbeddingModel,
		QueryEmbedding:     p.QueryEmbedding,
		CandidatesReturned: len(p.Candidates),
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(req).Exec(ctx); err != nil {
			return err
		}
		if len(p.Candidates) == 0 {
			return nil
		}
		rows := make([]RetrievalCandidate, 0, len(p.Candidates))
		for i, h := range p.Candidates {
			rows = append(rows, RetrievalCandidate{
				RequestID:  req.ID,
				Rank:       i + 1,
				ChunkID:    h.ChunkID,
				Score:      h.Score,
				DocumentID: h.DocumentID,
				ChunkIndex: h.ChunkIndex,
				Content:    h.Content,
			})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, &AuditError{Op: "record request", Err: err}
	}
	return req.ID, nil
}

// RecordExposure inserts one exposure row and one chunk row per supplied
// passage, atomically, and returns the generated exposure id. Chunk rows
// are required whenever the kind implies passages actually left the system.
func (s *Store) RecordExposure(ctx context.Context, requestID int64, kind, content string, chunks []models.ChunkHit) (int64, error) {
	if requestID <= 0 {
		return 0, fmt.Errorf("%w: request_id must be > 0", ErrValidation)
	}
	if strings.TrimSpace(kind) == "" {
		return 0, fmt.Errorf("%w: kind must not be empty", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("%w: content must not be empty", ErrValidation)
	}

	exp := &RetrievalExposure{
		RequestID:     requestID,
		Kind:          kind,
		ChunksExposed: len(chunks),
		Content:       content,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(exp).Exec(ctx); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]ExposureChunk, 0, len(chunks))
		for i, h := range chunks {
			rows = append(rows, ExposureChunk{
				ExposureID: exp.ID,
				RequestID:  requestID,
				Rank:       i + 1,
				ChunkID:    h.ChunkID,
				Score:      h.Score,
				DocumentID: h.DocumentID,
				ChunkIndex: h.ChunkIndex,
				Content:    h.Content,
			})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, &AuditError{Op: "record exposure", Err: err}
	}
	return exp.ID, nil
}

// ListRecentRequests returns up to limit requests, newest first.
func (s *Store) ListRecentRequests(ctx context.Context, limit int) ([]RetrievalRequest, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0", ErrValidation)
	}
	if limit > 100 {
		return nil, fmt.Errorf("%w: limit must be <= 100", ErrValidation)
	}

	var reqs []RetrievalRequest
	err := s.db.NewSelect().
		Model(&reqs).
		ExcludeColumn("query_embedding").
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, &AuditError{Op: "list requests", Err: err}
	}
	return reqs, nil
}

// Details is the full audit picture for one request.
type Details struct {
	Request    RetrievalRequest     `json:"request"`
	Candidates []RetrievalCandidate `json:"candidates"`
	Exposures  []RetrievalExposure  `json:"exposures"`
}

// GetDetails returns the request, its candidates in rank order, and its
// exposures in creation order. requestID 0 resolves to the most recently
// created request.
func (s *Store) GetDetails(ctx context.Context, requestID int64) (*Details, error) {
	if requestID < 0 {
		return nil, fmt.Errorf("%w: request_id must be > 0", ErrValidation)
	}

	if requestID == 0 {
		latest := new(RetrievalRequest)
		err := s.db.NewSelect().Model(latest).Column("id").OrderExpr("id DESC").Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no audit requests found", ErrValidation)
		}
		if err != nil {
			return nil, &AuditError{Op: "resolve latest request", Err: err}
		}
		requestID = latest.ID
	}

	details := &Details{}
	err := s.db.NewSelect().
		Model(&details.Request).
		ExcludeColumn("query_embedding").
		Where("rr.id = ?", requestID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request_id not found: %d", ErrValidation, requestID)
	}
	if err != nil {
		return nil, &AuditError{Op: "get request", Err: err}
	}

	if err := s.db.NewSelect().
		Model(&details.Candidates).
		Where("request_id = ?", requestID).
		OrderExpr("rank ASC").
		Scan(ctx); err != nil {
		return nil, &AuditError{Op: "get candidates", Err: err}
	}

	if err := s.db.NewSelect().
		Model(&details.Exposures).
		Where("request_id = ?", requestID).
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, &AuditError{Op: "get exposures", Err: err}
	}

	return details, nil
}
