package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

// headerSafetyMargin is reserved on a refit pass so header formatting can
// never push a re-truncated block past the remaining budget.
const headerSafetyMargin = 10

// Options are the four exposure limits, snapshotted once per assembly so a
// single context is never built against mixed budgets. DLP flags stay
// per-call (see RedactText).
type Options struct {
	MaxContextTokens  int
	MaxTokensPerChunk int
	MaxChunksExposed  int
	PerDocumentCap    int
}

// OptionsFromEnv resolves the limits from the environment, falling back to
// the documented defaults.
func OptionsFromEnv() (Options, error) {
	var opts Options
	var err error
	if opts.MaxContextTokens, err = config.MaxContextTokens(); err != nil {
		return opts, &ValidationError{Message: err.Error()}
	}
	if opts.MaxTokensPerChunk, err = config.MaxTokensPerChunk(); err != nil {
		return opts, &ValidationError{Message: err.Error()}
	}
	if opts.MaxChunksExposed, err = config.MaxChunksExposed(); err != nil {
		return opts, &ValidationError{Message: err.Error()}
	}
	if opts.PerDocumentCap, err = config.PerDocumentCap(); err != nil {
		return opts, &ValidationError{Message: err.Error()}
	}
	return opts, nil
}

// ExposureResult is what the engine hands to downstream collaborators: the
// assembled context, the exact post-redaction passages it contains, merged
// redaction stats across every scan, and a policy metadata record suitable
// for direct audit persistence.
type ExposureResult struct {
	Context     string
	ExposedHits []models.ChunkHit
	Redaction   RedactionStats
	Policy      map[string]any
}

func blockHeader(h models.ChunkHit) string {
	return fmt.Sprintf(
		"chunk_id=%d\ndocument_id=%d\nchunk_index=%d\nscore=%s\ncontent:\n",
		h.ChunkID, h.DocumentID, h.ChunkIndex, strconv.FormatFloat(h.Score, 'g', -1, 64),
	)
}

// BuildExposure builds an LLM-safe context string from retrieved hits:
// select a bounded subset, truncate and redact each passage, pack blocks
// under the global token budget, then re-scan the exact final bytes.
// Empty input short-circuits to an empty, unblocked result.
func BuildExposure(hits []models.ChunkHit, question string, opts Options) (*ExposureResult, error) {
	exposedRaw := SelectHits(hits, opts.PerDocumentCap, opts.MaxChunksExposed)

	// Truncate and redact per chunk so what we record as "exposed" matches
	// what was actually exposed.
	perChunkStats := make([]RedactionStats, 0, len(exposedRaw))
	exposed := make([]models.ChunkHit, 0, len(exposedRaw))
	for _, h := range exposedRaw {
		truncated, err := TruncateTokens(h.Content, opts.MaxTokensPerChunk)
		if err != nil {
			return nil, err
		}
		redacted, stats := RedactText(truncated)
		perChunkStats = append(perChunkStats, stats)
		if stats.Blocked {
			blocked := h
			blocked.Content = ""
			return nil, &PolicyBlockError{
				Message:    "blocked by DLP policy (high-severity sensitive content detected in retrieved context)",
				Stats:      MergeRedactionStats(perChunkStats),
				BlockedHit: &blocked,
			}
		}
		sanitized := h
		sanitized.Content = redacted
		exposed = append(exposed, sanitized)
	}

	// Pack blocks in admission order under the global budget, charging the
	// joining separator against the budget too so the assembled context can
	// never exceed it. A block that cannot fit even after one refit pass
	// ends the assembly; partial blocks are never included.
	budget := opts.MaxContextTokens
	var parts []string
	for _, h := range exposed {
		prefix := ""
		if len(parts) > 0 {
			prefix = models.ContextSeparator
		}
		header := blockHeader(h)
		block := header + h.Content

		pieceTokens, err := CountTokens(prefix + block)
		if err != nil {
			return nil, err
		}
		if pieceTokens > budget {
			overheadTokens, err := CountTokens(prefix + header)
			if err != nil {
				return nil, err
			}
			remaining := budget - overheadTokens - headerSafetyMargin
			if remaining <= 0 {
				break
			}
			refit, err := TruncateTokens(h.Content, remaining)
			if err != nil {
				return nil, err
			}
			block = header + refit
			if pieceTokens, err = CountTokens(prefix + block); err != nil {
				return nil, err
			}
			if pieceTokens <= 0 || pieceTokens > budget {
				break
			}
		}

		parts = append(parts, block)
		budget -= pieceTokens
		if budget <= 0 {
			break
		}
	}

	context := strings.Join(parts, models.ContextSeparator)

	// Scan the exact final bytes once more. Concatenation and headers can
	// juxtapose content in ways a per-chunk scan would miss.
	redactedContext, contextStats := RedactText(context)
	merged := MergeRedactionStats(append(perChunkStats, contextStats))
	if contextStats.Blocked {
		return nil, &PolicyBlockError{
			Message: "blocked by DLP policy (high-severity sensitive content detected in retrieved context)",
			Stats:   merged,
		}
	}

	policy := map[string]any{
		"question_len":         len(question),
		"retrieved_candidates": len(hits),
		"exposed_chunks":       len(exposed),
		"max_context_tokens":   opts.MaxContextTokens,
		"max_tokens_per_chunk": opts.MaxTokensPerChunk,
		"max_chunks_exposed":   opts.MaxChunksExposed,
		"per_document_cap":     opts.PerDocumentCap,
		"dlp_on_send":          config.DLPOnSend(),
		"dlp_block_on_high":    config.DLPBlockOnHigh(),
		"dlp_hits_total":       merged.HitsTotal,
		"dlp_categories":       merged.Categories,
	}

	return &ExposureResult{
		Context:     redactedContext,
		ExposedHits: exposed,
		Redaction:   merged,
		Policy:      policy,
	}, nil
}
