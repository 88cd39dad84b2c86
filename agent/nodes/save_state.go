package nodes

import (
	"context"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/bizlens/agent/state"
)

// SaveState persists the session after the turn. A store failure is logged
// but does not eat the reply the user is owed.
func SaveState(ctx context.Context, in *GraphState, store statex.SessionStore) (*GraphState, error) {
	if in.Session == nil {
		return in, nil
	}

	if err := in.Session.Validate(); err != nil {
		return nil, err
	}

	in.Session.Touch(in.Now)
	if err := store.Save(ctx, in.Session); err != nil {
		log.Error().Err(err).
			Str("session_id", in.SessionID).
			Msg("failed to persist conversation state")
	}
	return in, nil
}
