package policy

import (
	"regexp"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
)

// RedactionStats summarizes one DLP scan. Stats from multiple scans merge
// by summing counts and OR-ing Blocked.
type RedactionStats struct {
	HitsTotal  int            `json:"hits_total"`
	Categories map[string]int `json:"categories"`
	Blocked    bool           `json:"blocked"`
}

var (
	emailRe  = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phoneRe  = regexp.MustCompile(`\b(?:\+?\d{1,3}[\s.-]?)?(?:\(?\d{2,4}\)?[\s.-]?)?\d{3}[\s.-]?\d{4}\b`)
	awsKeyRe = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	jwtRe    = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)
	// The high-severity marker. A demo stand-in for a private-key detector;
	// detecting it can abort the whole request when blocking is enabled.
	privateKeyRe = regexp.MustCompile(`\bDEMO_DLP_BLOCK_MARKER__NOT_A_REAL_SECRET__DO_NOT_USE\b`)
)

// RedactText scans text against the fixed category set and replaces every
// match with the category placeholder. DLP flags are looked up per call.
// When scanning is disabled it is the identity function with zero stats.
func RedactText(text string) (string, RedactionStats) {
	if !config.DLPOnSend() {
		return text, RedactionStats{Categories: map[string]int{}}
	}

	categories := map[string]int{}

	sub := func(rx *regexp.Regexp, category, repl string) {
		matches := rx.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			return
		}
		categories[category] += len(matches)
		text = rx.ReplaceAllString(text, repl)
	}

	sub(emailRe, "email", "[REDACTED:EMAIL]")
	sub(phoneRe, "phone", "[REDACTED:PHONE]")
	sub(awsKeyRe, "aws_key", "[REDACTED:AWS_KEY]")
	sub(jwtRe, "jwt", "[REDACTED:JWT]")

	// High severity is evaluated last so we can tell whether it alone
	// produced new hits.
	highBefore := len(categories)
	sub(privateKeyRe, "private_key", "[REDACTED:PRIVATE_KEY]")
	blocked := config.DLPBlockOnHigh() && len(categories) > highBefore

	total := 0
	for _, n := range categories {
		total += n
	}

	return text, RedactionStats{HitsTotal: total, Categories: categories, Blocked: blocked}
}

// SanitizeQuestion scans an inbound user question before it is sent to any
// embedding or chat provider. On a block the caller must abort the whole
// request: no search, no LLM call.
func SanitizeQuestion(question string) (string, RedactionStats, error) {
	text, stats := RedactText(question)
	if stats.Blocked {
		return "", stats, &PolicyBlockError{
			Message: "blocked by DLP policy (high-severity sensitive content detected in user question)",
			Stats:   stats,
		}
	}
	return text, stats, nil
}

// MergeRedactionStats folds per-scan stats into one record.
func MergeRedactionStats(items []RedactionStats) RedactionStats {
	merged := RedactionStats{Categories: map[string]int{}}
	for _, s := range items {
		merged.HitsTotal += s.HitsTotal
		merged.Blocked = merged.Blocked || s.Blocked
		for k, v := range s.Categories {
			merged.Categories[k] += v
		}
	}
	return merged
}
