package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/models"
)

const dontKnow = "I don't know - the provided context does not contain the answer."

// AnswerWithContext asks the chat model to answer strictly from the
// assembled context. The question and context must already be sanitized;
// this is the only place they leave the process.
func AnswerWithContext(ctx context.Context, llmConfig *config.LLMConfig, question, contextText string) (string, error) {
	log.Debug().Str("model", llmConfig.Model).Int("context_chars", len(contextText)).Msg("Generating answer")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.AnswerSystemPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: fmt.Sprintf(models.ContextQuestionTemplate, contextText, question)}},
		},
	}

	res, err := llm.GenerateContent(ctx, messages, llms.WithTemperature(0.2))
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return dontKnow, nil
	}

	text := strings.TrimSpace(res.Choices[0].Content)
	switch strings.ToLower(text) {
	case "", "i don't know", "i do not know", "unknown", "n/a", "not sure":
		return dontKnow, nil
	}
	return text, nil
}
