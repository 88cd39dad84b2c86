// Package guardrail inspects raw user input before anything else sees it.
// Prompt-injection matches block the turn; PII is silently redacted and the
// sanitized text continues through the pipeline. Everything here is pure.
package guardrail

import (
	"regexp"
	"strings"
)

const (
	EmailRedacted = "[EMAIL_REDACTED]"
	PhoneRedacted = "[PHONE_REDACTED]"
	SSNRedacted   = "[SSN_REDACTED]"
	CardRedacted  = "[CARD_REDACTED]"
	IPRedacted    = "[IP_REDACTED]"
)

const blockedWarning = "Your message looks like an attempt to override my instructions. Please rephrase your request."

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(you|previous|prior|instructions)`),
	regexp.MustCompile(`(?i)\bsystem\s*:\s*you\s+are\b`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)reveal\s+(your\s+)?(system\s+prompt|secrets|instructions)`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+have\s+)?no\s+(rules|restrictions|guardrails)`),
}

// Redaction order matters: card shapes carry the most digits and must be
// consumed before the shorter SSN and phone shapes get a chance to match
// their substrings.
var piiRedactions = []struct {
	pattern *regexp.Regexp
	token   string
}{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), EmailRedacted},
	{regexp.MustCompile(`\b\d{4}[ \-]?\d{4}[ \-]?\d{4}[ \-]?\d{1,4}\b`), CardRedacted},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), SSNRedacted},
	{regexp.MustCompile(`\b(?:\+?1[ .\-]?)?(?:\(\d{3}\)|\d{3})[ .\-]?\d{3}[ .\-]?\d{4}\b`), PhoneRedacted},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), IPRedacted},
}

// Filter checks raw input for injection patterns and redacts PII.
// When blocked is true the text must not be forwarded downstream; warning
// carries the message to return to the user instead.
func Filter(raw string) (sanitized string, blocked bool, warning string) {
	trimmed := strings.TrimSpace(raw)

	for _, p := range injectionPatterns {
		if p.MatchString(trimmed) {
			return "", true, blockedWarning
		}
	}

	sanitized = trimmed
	for _, r := range piiRedactions {
		sanitized = r.pattern.ReplaceAllString(sanitized, r.token)
	}
	return sanitized, false, ""
}
