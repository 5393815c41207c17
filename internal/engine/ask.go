package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"github.com/NedPK/ai-retrieval-audit/internal/audit"
	"github.com/NedPK/ai-retrieval-audit/internal/chromemdb"
	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/llmservice"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
	"github.com/NedPK/ai-retrieval-audit/internal/policy"
	"github.com/NedPK/ai-retrieval-audit/internal/retrieval"
)

// Engine ties the full ask flow together: sanitize the question, retrieve
// candidates, build the policy-bounded exposure, call the chat model, and
// record every exposure under the originating request. It holds no mutable
// state and is safe for unlimited concurrent use.
type Engine struct {
	db       *bun.DB
	store    *audit.Store
	local    *chromemdb.Manager
	embedder *embeddings.EmbedderImpl
	cfg      *config.Config
}

// New builds an engine backed by the SQL chunk store and audit trail.
func New(bdb *bun.DB, store *audit.Store, embedder *embeddings.EmbedderImpl, cfg *config.Config) *Engine {
	return &Engine{db: bdb, store: store, embedder: embedder, cfg: cfg}
}

// NewLocal builds an engine backed by the embedded chromem store. Local
// mode has no audit trail.
func NewLocal(mgr *chromemdb.Manager, embedder *embeddings.EmbedderImpl, cfg *config.Config) *Engine {
	return &Engine{local: mgr, embedder: embedder, cfg: cfg}
}

type AskParams struct {
	Question string
	K        int
	UserID   string
	Feature  string
	Source   string
}

type AskResult struct {
	RequestID int64             `json:"request_id,omitempty"`
	Answer    string            `json:"answer"`
	K         int               `json:"k"`
	Chunks    []models.ChunkHit `json:"chunks"`
}

// Ask answers a question from retrieved context. The sanitized question and
// the assembled context are the only things ever handed to the chat
// provider.
func (e *Engine) Ask(ctx context.Context, p AskParams) (*AskResult, error) {
	if p.K <= 0 {
		p.K = 5
	}
	if p.Source == "" {
		p.Source = "engine:ask"
	}

	sanitizedQuestion, questionStats, err := policy.SanitizeQuestion(p.Question)
	if err != nil {
		return nil, err
	}

	searchParams := retrieval.Params{
		Query:   sanitizedQuestion,
		K:       p.K,
		UserID:  p.UserID,
		Feature: p.Feature,
		Source:  p.Source,
	}

	var res *retrieval.Result
	if e.local != nil {
		res, err = retrieval.SearchLocal(ctx, e.local, e.embedder, searchParams)
	} else {
		res, err = retrieval.SearchChunks(ctx, e.db, e.store, e.embedder, e.cfg.EmbedLLM.Model, searchParams)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, fmt.Errorf("no chunks found; ingest documents first")
	}

	opts, err := policy.OptionsFromEnv()
	if err != nil {
		return nil, err
	}

	exposure, err := policy.BuildExposure(res.Hits, sanitizedQuestion, opts)
	if err != nil {
		var block *policy.PolicyBlockError
		if errors.As(err, &block) {
			e.recordPolicyBlock(ctx, res.RequestID, sanitizedQuestion, questionStats, block)
		}
		return nil, err
	}
	exposure.Policy["question_dlp_hits_total"] = questionStats.HitsTotal
	exposure.Policy["question_dlp_categories"] = questionStats.Categories

	log.Debug().
		Int("exposed_chunks", len(exposure.ExposedHits)).
		Int("context_chars", len(exposure.Context)).
		Int("dlp_hits", exposure.Redaction.HitsTotal).
		Msg("Exposure built")

	answer, err := llmservice.AnswerWithContext(ctx, &e.cfg.ChatLLM, sanitizedQuestion, exposure.Context)
	if err != nil {
		return nil, err
	}

	if res.RequestID != 0 {
		if err := e.recordExposures(ctx, res.RequestID, exposure, answer); err != nil {
			return nil, err
		}
	}

	return &AskResult{
		RequestID: res.RequestID,
		Answer:    answer,
		K:         p.K,
		Chunks:    exposure.ExposedHits,
	}, nil
}

// recordPolicyBlock persists a policy_decision exposure describing a block.
// Best effort only: its own failure is swallowed so it can never mask the
// original block.
func (e *Engine) recordPolicyBlock(ctx context.Context, requestID int64, question string, questionStats policy.RedactionStats, block *policy.PolicyBlockError) {
	if requestID == 0 || e.store == nil {
		return
	}

	decision := map[string]any{
		"blocked":                 true,
		"block_reason":            block.Message,
		"question_len":            len(question),
		"question_dlp_hits_total": questionStats.HitsTotal,
		"question_dlp_categories": questionStats.Categories,
		"dlp_hits_total":          block.Stats.HitsTotal,
		"dlp_categories":          block.Stats.Categories,
	}
	if block.BlockedHit != nil {
		decision["blocked_hit"] = map[string]any{
			"chunk_id":    block.BlockedHit.ChunkID,
			"document_id": block.BlockedHit.DocumentID,
			"chunk_index": block.BlockedHit.ChunkIndex,
			"score":       block.BlockedHit.Score,
		}
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if _, err := e.store.RecordExposure(ctx, requestID, models.ExposureKindPolicyDecision, string(payload), nil); err != nil {
		log.Debug().Err(err).Msg("Failed to record policy block decision")
	}
}

// recordExposures writes the compliance trail for a successful answer:
// the candidate snapshot, the exact context handed to the model, the policy
// decision, and the model's answer. Strict mode propagates failures;
// otherwise they are logged and the answer still flows to the caller.
func (e *Engine) recordExposures(ctx context.Context, requestID int64, exposure *policy.ExposureResult, answer string) error {
	chunksJSON, err := json.Marshal(exposure.ExposedHits)
	if err != nil {
		return err
	}
	policyJSON, err := json.Marshal(exposure.Policy)
	if err != nil {
		return err
	}

	records := []struct {
		kind    string
		content string
		chunks  []models.ChunkHit
	}{
		{models.ExposureKindCandidates, string(chunksJSON), exposure.ExposedHits},
		{models.ExposureKindLLMContext, exposure.Context, exposure.ExposedHits},
		{models.ExposureKindPolicyDecision, string(policyJSON), exposure.ExposedHits},
		{models.ExposureKindLLMAnswer, answer, nil},
	}

	for _, r := range records {
		if _, err := e.store.RecordExposure(ctx, requestID, r.kind, r.content, r.chunks); err != nil {
			if config.AuditStrict() {
				return err
			}
			log.Warn().Err(err).Str("kind", r.kind).Msg("Exposure record failed")
		}
	}
	return nil
}
