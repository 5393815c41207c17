package models

const (
	ContextSeparator = "\n\n---\n\n"

	// Exposure kinds recorded in the audit trail.
	ExposureKindCandidates     = "candidates_json"
	ExposureKindLLMContext     = "llm_context"
	ExposureKindPolicyDecision = "policy_decision"
	ExposureKindLLMAnswer      = "llm_answer"
)

var (
	AnswerSystemPrompt = `You are a careful assistant. Answer the user's question using ONLY the provided context. If the context does not contain the answer, respond in ONE LINE with brief justification, in the format: 'I don't know - <reason based on the missing context>'.`

	ContextQuestionTemplate = `Context:
%s

Question:
%s`
)
