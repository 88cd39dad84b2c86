package nodes

import (
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// ApplyClassification turns the classifier's decision into a route and
// updates the search context on the session. Clarification is bounded:
// once the round budget is spent the turn proceeds with defaults instead
// of asking again.
func ApplyClassification(in *GraphState, maxClarificationRounds int) (*GraphState, error) {
	if in.Route == RouteBlocked || in.Route == RouteFault {
		return in, nil
	}

	dec := in.Decision
	st := in.Session

	if dec.Intent == contractx.IntentGeneralChat {
		in.Route = RouteChat
		return in, nil
	}

	if dec.NeedClarification {
		if st.ClarificationRounds < maxClarificationRounds {
			st.ClarificationRounds++
			in.Route = RouteClarify
			in.Reply = dec.Question
			return in, nil
		}

		// Round budget exhausted. Take what we have and run with it.
		log.Debug().
			Str("session_id", in.SessionID).
			Int("rounds", st.ClarificationRounds).
			Msg("clarification budget spent, proceeding with defaults")

		if dec.Query == "" {
			dec.Query = in.Text
		}
		if dec.DetailLevel == "" {
			dec.DetailLevel = contractx.DetailLevelGeneral
		}
	}

	level := contractx.ParseDetailLevel(string(dec.DetailLevel))

	// A follow-up like "tell me more" carries no query of its own; keep
	// the active search context instead of resetting it to an empty one.
	if dec.Query == "" && st.SearchQuery != "" {
		st.FollowUp(level, in.Now)
		in.Route = RouteSearch
		return in, nil
	}

	if st.IsNewSearch(dec.Query, dec.Location) {
		st.ResetSearch(dec.Query, dec.Location, level, in.Now)
	} else {
		st.FollowUp(level, in.Now)
	}

	in.Route = RouteSearch
	return in, nil
}
