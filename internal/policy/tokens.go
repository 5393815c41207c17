package policy

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Token budgets must be bit-accurate with respect to what the provider
// charges, so counting uses the cl100k_base encoding shared by the target
// embedding and chat models. The encoding is built once per process.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
		if encErr != nil {
			encErr = fmt.Errorf("tokenizer: get encoding %s: %w", encodingName, encErr)
		}
	})
	return enc, encErr
}

// CountTokens returns the number of tokens in text.
func CountTokens(text string) (int, error) {
	e, err := encoding()
	if err != nil {
		return 0, err
	}
	return len(e.Encode(text, nil, nil)), nil
}

// TruncateTokens returns a prefix of text holding at most maxTokens tokens,
// re-decoded to valid text. maxTokens <= 0 yields the empty string.
func TruncateTokens(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	e, err := encoding()
	if err != nil {
		return "", err
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return e.Decode(tokens[:maxTokens]), nil
}

// ChunkByTokens splits text into overlapping token windows of chunkTokens
// tokens, stepping by chunkTokens-overlapTokens. Used by ingestion so that
// stored chunks line up with the same token accounting the budgeter uses.
func ChunkByTokens(text string, chunkTokens, overlapTokens int) ([]string, error) {
	if chunkTokens <= 0 {
		return nil, &ValidationError{Message: "chunk_tokens must be > 0"}
	}
	if overlapTokens < 0 {
		return nil, &ValidationError{Message: "overlap_tokens must be >= 0"}
	}
	if overlapTokens >= chunkTokens {
		return nil, &ValidationError{Message: "overlap_tokens must be < chunk_tokens"}
	}

	e, err := encoding()
	if err != nil {
		return nil, err
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	var chunks []string
	step := chunkTokens - overlapTokens
	for i := 0; i < len(tokens); i += step {
		end := i + chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, e.Decode(tokens[i:end]))
	}
	return chunks, nil
}
