package nodes

import (
	"github.com/rs/zerolog/log"

	guardrailx "github.com/tanpawarit/bizlens/agent/guardrail"
)

// ApplyGuardrail sanitizes the raw text and short-circuits blocked turns.
// Blocked turns never reach the classifier or the session store.
func ApplyGuardrail(in *GraphState) (*GraphState, error) {
	sanitized, blocked, warning := guardrailx.Filter(in.RawText)
	if blocked {
		log.Warn().
			Str("session_id", in.SessionID).
			Msg("guardrail blocked message")

		in.Route = RouteBlocked
		in.Warning = warning
		in.Reply = warning
		return in, nil
	}

	in.Text = sanitized
	if sanitized != in.RawText {
		log.Debug().
			Str("session_id", in.SessionID).
			Msg("guardrail redacted pii")
	}
	return in, nil
}
