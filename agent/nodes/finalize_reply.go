package nodes

import (
	"github.com/rs/zerolog/log"
)

// FinalizeReply shapes the outbound payload for the caller.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	log.Info().
		Str("session_id", in.SessionID).
		Str("route", string(in.Route)).
		Int("steps", len(in.Trace)).
		Msg("turn finished")

	return GraphOutput{
		Reply:   in.Reply,
		Blocked: in.Route == RouteBlocked,
	}, nil
}
