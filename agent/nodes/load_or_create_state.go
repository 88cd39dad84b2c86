package nodes

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/bizlens/agent/state"
)

// LoadOrCreateState fetches the conversation state for the session, creating
// a fresh one on first contact, and records the sanitized user message.
func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.SessionStore) (*GraphState, error) {
	if in.Route == RouteBlocked {
		return in, nil
	}

	st, err := store.Load(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrStateNotFound):
		st = statex.NewConversationState(in.SessionID, in.Now)
		log.Debug().Str("session_id", in.SessionID).Msg("created new conversation state")
	default:
		return nil, err
	}

	st.EnsureCounters()
	st.AppendMessage(statex.RoleUser, in.Text, in.Now)
	in.Session = st
	return in, nil
}
