package embedding

import (
	"context"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
)

// NewEmbedder builds an OpenAI-compatible embedder from config.
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// VectorLiteral renders a vector as the bracketed text form persisted in
// the audit trail, e.g. "[0.25,-0.5]".
func VectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, x := range vec {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', 10, 64))
	}
	sb.WriteString("]")
	return sb.String()
}

// EmbedQuery embeds a single query string.
func EmbedQuery(ctx context.Context, embedder *embeddings.EmbedderImpl, text string) ([]float32, error) {
	return embedder.EmbedQuery(ctx, text)
}

// EmbedDocuments embeds a batch of chunk texts.
func EmbedDocuments(ctx context.Context, embedder *embeddings.EmbedderImpl, texts []string) ([][]float32, error) {
	return embedder.EmbedDocuments(ctx, texts)
}
