package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Policy and audit flags are read from the environment at call time, not at
// construction time, so an operator can toggle them within one process
// lifetime.
const (
	EnvDLPOnSend         = "AI_AUDIT_DLP_ON_SEND"
	EnvDLPBlockOnHigh    = "AI_AUDIT_DLP_BLOCK_ON_HIGH"
	EnvMaxContextTokens  = "AI_AUDIT_MAX_CONTEXT_TOKENS"
	EnvMaxTokensPerChunk = "AI_AUDIT_MAX_TOKENS_PER_CHUNK"
	EnvMaxChunksExposed  = "AI_AUDIT_MAX_CHUNKS_EXPOSED"
	EnvPerDocumentCap    = "AI_AUDIT_PER_DOCUMENT_CAP"
	EnvAuditSearches     = "AI_AUDIT_SEARCHES"
	EnvAuditStrict       = "AI_AUDIT_STRICT"
)

const (
	DefaultMaxContextTokens  = 2500
	DefaultMaxTokensPerChunk = 600
	DefaultMaxChunksExposed  = 5
	DefaultPerDocumentCap    = 2
)

func boolEnv(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}

// DLPOnSend reports whether outbound text is scanned and redacted.
func DLPOnSend() bool { return boolEnv(EnvDLPOnSend, true) }

// DLPBlockOnHigh reports whether a high-severity hit aborts the request.
func DLPBlockOnHigh() bool { return boolEnv(EnvDLPBlockOnHigh, false) }

// AuditSearches reports whether retrieval requests are recorded.
func AuditSearches() bool { return boolEnv(EnvAuditSearches, false) }

// AuditStrict reports whether audit persistence failures abort the caller.
func AuditStrict() bool { return boolEnv(EnvAuditStrict, false) }

func MaxContextTokens() (int, error) {
	return intEnv(EnvMaxContextTokens, DefaultMaxContextTokens)
}

func MaxTokensPerChunk() (int, error) {
	return intEnv(EnvMaxTokensPerChunk, DefaultMaxTokensPerChunk)
}

func MaxChunksExposed() (int, error) {
	return intEnv(EnvMaxChunksExposed, DefaultMaxChunksExposed)
}

func PerDocumentCap() (int, error) {
	return intEnv(EnvPerDocumentCap, DefaultPerDocumentCap)
}
