package policy

import "github.com/NedPK/ai-retrieval-audit/internal/models"

// ValidationError reports malformed caller input. Nothing has been written
// or sent when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PolicyBlockError is returned when DLP blocks content from leaving the
// process. It is a policy decision, not a transport failure; callers must
// not treat it as a normal result.
type PolicyBlockError struct {
	Message    string
	Stats      RedactionStats
	BlockedHit *models.ChunkHit
}

func (e *PolicyBlockError) Error() string { return e.Message }
